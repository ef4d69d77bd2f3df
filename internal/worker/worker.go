// Package worker drains the Postgres job queue with bounded concurrency.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/jobs"
	"github.com/dukerupert/ledgerly/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// Queues to process, in claim order. Empty means every registered queue.
	Queues []string

	// ShutdownTimeout bounds how long Start waits for in-flight jobs.
	ShutdownTimeout time.Duration
}

// HandlerFunc processes one claimed job. A returned error schedules a retry.
type HandlerFunc func(ctx context.Context, job *jobs.Job) error

// Worker processes background jobs
type Worker struct {
	config   Config
	store    jobs.Store
	clock    clock.Clock
	metrics  *telemetry.BusinessMetrics
	logger   zerolog.Logger
	handlers map[string]HandlerFunc
	inflight sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(store jobs.Store, clk clock.Clock, metrics *telemetry.BusinessMetrics, config Config, logger zerolog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if len(config.Queues) == 0 {
		config.Queues = []string{jobs.QueueInvoicing, jobs.QueueEmail, jobs.QueueCleanup}
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &Worker{
		config:   config,
		store:    store,
		clock:    clk,
		metrics:  metrics,
		logger:   logger.With().Str("component", "worker").Str("worker_id", config.WorkerID).Logger(),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for a job type. Call before Start.
func (w *Worker) Handle(jobType string, h HandlerFunc) {
	w.handlers[jobType] = h
}

// Start processes jobs until ctx is cancelled, then waits for in-flight jobs.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().
		Strs("queues", w.config.Queues).
		Dur("poll_interval", w.config.PollInterval).
		Int("max_concurrency", w.config.MaxConcurrency).
		Msg("worker starting")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker shutting down")
			w.waitInflight()
			return ctx.Err()

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				w.inflight.Add(1)
				go func() {
					defer func() {
						<-sem
						w.inflight.Done()
					}()
					// Jobs finish even when shutdown starts mid-run.
					w.claimAndProcess(context.WithoutCancel(ctx))
				}()
			default:
				// At max concurrency, skip this poll
			}
		}
	}
}

func (w *Worker) waitInflight() {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn().Dur("timeout", w.config.ShutdownTimeout).Msg("in-flight jobs still running at shutdown")
	}
}

// RunOnce claims and processes at most one job. Returns false when no job was due.
func (w *Worker) RunOnce(ctx context.Context) bool {
	return w.claimAndProcess(ctx)
}

func (w *Worker) claimAndProcess(ctx context.Context) bool {
	for _, queue := range w.config.Queues {
		job, err := w.store.ClaimNextJob(ctx, queue, w.config.WorkerID, w.clock.Now())
		if err != nil {
			w.logger.Error().Err(err).Str("queue", queue).Msg("failed to claim job")
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
		return true
	}
	return false
}

func (w *Worker) process(ctx context.Context, job *jobs.Job) {
	log := w.logger.With().
		Str("job_id", job.ID.String()).
		Str("job_type", job.JobType).
		Int("attempt", job.Attempts).
		Logger()
	log.Info().Msg("processing job")

	start := time.Now()
	err := w.processJob(log.WithContext(ctx), job)
	w.metrics.JobFinished(job.JobType, err, time.Since(start))

	if err != nil {
		log.Error().Err(err).Msg("job failed")
		retryAt := w.clock.Now().Add(jobs.RetryBackoff(job.Attempts))
		if ferr := w.store.FailJob(ctx, job.ID, err.Error(), retryAt); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record job failure")
		}
		return
	}

	if cerr := w.store.CompleteJob(ctx, job.ID, w.clock.Now()); cerr != nil {
		log.Error().Err(cerr).Msg("failed to mark job completed")
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("job completed")
}

func (w *Worker) processJob(ctx context.Context, job *jobs.Job) (err error) {
	h, ok := w.handlers[job.JobType]
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}

	timeout := time.Duration(job.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return h(jobCtx, job)
}
