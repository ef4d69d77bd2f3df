// Package scheduler fires daily tasks at a fixed UTC time. Tasks only
// enqueue jobs; the worker does the actual work, and job dedup keys keep
// overlapping processes from scheduling a day twice.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/clock"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

// Daily is a once-a-day slot in UTC.
type Daily struct {
	Hour   int
	Minute int
}

// Slot returns the slot time on the UTC day of t.
func (d Daily) Slot(t time.Time) time.Time {
	y, m, day := t.UTC().Date()
	return time.Date(y, m, day, d.Hour, d.Minute, 0, 0, time.UTC)
}

// Next returns the first slot strictly after t.
func (d Daily) Next(t time.Time) time.Time {
	slot := d.Slot(t)
	if !slot.After(t) {
		slot = slot.AddDate(0, 0, 1)
	}
	return slot
}

// Task is one scheduled action. Run receives the slot time it fires for.
type Task struct {
	Name     string
	Schedule Daily
	Timeout  time.Duration
	Run      func(ctx context.Context, slot time.Time) error
}

type scheduled struct {
	task Task
	next time.Time
}

// Config controls the polling loop.
type Config struct {
	// TickInterval is how often the clock is compared with pending slots.
	TickInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	return c
}

type Scheduler struct {
	cfg   Config
	clock clock.Clock
	log   zerolog.Logger
	tasks []*scheduled
}

func New(clk clock.Clock, cfg Config, log zerolog.Logger, tasks ...Task) (*Scheduler, error) {
	if clk == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		cfg:   cfg.withDefaults(),
		clock: clk,
		log:   log.With().Str("component", "scheduler").Logger(),
	}

	now := clk.Now()
	for _, t := range tasks {
		if t.Run == nil || t.Name == "" {
			return nil, ErrInvalidConfig
		}
		if t.Timeout <= 0 {
			t.Timeout = time.Minute
		}
		// Start from today's slot so a process booted after it still fires once today.
		s.tasks = append(s.tasks, &scheduled{task: t, next: t.Schedule.Slot(now)})
	}
	return s, nil
}

// Start ticks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info().Int("tasks", len(s.tasks)).Dur("tick", s.cfg.TickInterval).Msg("scheduler starting")

	s.Tick(ctx)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every task whose slot has been reached and returns how many ran.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.clock.Now()
	fired := 0
	for _, st := range s.tasks {
		if now.Before(st.next) {
			continue
		}
		slot := st.next
		st.next = st.task.Schedule.Next(now)
		s.runTask(ctx, st.task, slot)
		fired++
	}
	return fired
}

func (s *Scheduler) runTask(parent context.Context, t Task, slot time.Time) {
	ctx, cancel := context.WithTimeout(parent, t.Timeout)
	defer cancel()

	log := s.log.With().Str("task", t.Name).Time("slot", slot).Logger()
	start := time.Now()
	if err := t.Run(ctx, slot); err != nil {
		// The slot is not retried until the next day; the task's own job
		// retries cover transient failures after a successful enqueue.
		log.Error().Err(err).Msg("scheduled task failed")
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("scheduled task fired")
}

// NextRun reports when the named task fires next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	for _, st := range s.tasks {
		if st.task.Name == name {
			return st.next, true
		}
	}
	return time.Time{}, false
}
