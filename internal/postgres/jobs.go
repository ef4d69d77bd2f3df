package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/ledgerly/internal/jobs"
)

// JobStore implements jobs.Store on the jobs table.
type JobStore struct {
	db DBTX
}

var _ jobs.Store = (*JobStore)(nil)

func NewJobStore(db DBTX) *JobStore {
	return &JobStore{db: db}
}

// EnqueueJob inserts the job unless a job with the same dedup key exists.
func (s *JobStore) EnqueueJob(ctx context.Context, p jobs.EnqueueParams) (bool, error) {
	var dedup *string
	if p.DedupKey != "" {
		dedup = &p.DedupKey
	}
	scheduledAt := p.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now().UTC()
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO jobs (id, job_type, queue, payload, status, priority, max_retries,
			timeout_seconds, dedup_key, scheduled_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8, $9)
		ON CONFLICT (dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING`,
		uuid.New(), p.JobType, p.Queue, []byte(p.Payload), p.Priority, p.MaxRetries,
		p.TimeoutSeconds, dedup, scheduledAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job %s: %w", p.JobType, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimNextJob locks the highest-priority due job in queue. Jobs stuck in
// processing for twice their timeout are reclaimed, covering crashed workers.
func (s *JobStore) ClaimNextJob(ctx context.Context, queue, workerID string, now time.Time) (*jobs.Job, error) {
	var (
		j       jobs.Job
		payload []byte
	)
	err := s.db.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'processing', attempts = attempts + 1, worker_id = $2, started_at = $3
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = $1
			  AND (
				(status = 'pending' AND scheduled_at <= $3)
				OR (status = 'processing' AND started_at < $3 - make_interval(secs => timeout_seconds * 2))
			  )
			ORDER BY priority DESC, scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_type, queue, payload, status, priority, attempts, max_retries,
			timeout_seconds, dedup_key, scheduled_at, created_at`,
		queue, workerID, now,
	).Scan(&j.ID, &j.JobType, &j.Queue, &payload, &j.Status, &j.Priority, &j.Attempts,
		&j.MaxRetries, &j.TimeoutSeconds, &j.DedupKey, &j.ScheduledAt, &j.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	j.Payload = payload
	return &j, nil
}

func (s *JobStore) CompleteJob(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = 'completed', completed_at = $2, last_error = NULL
		WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// FailJob returns the job to pending at retryAt while attempts < max_retries.
func (s *JobStore) FailJob(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET last_error = $2,
			worker_id = NULL,
			status = CASE WHEN attempts < max_retries THEN 'pending' ELSE 'failed' END,
			scheduled_at = CASE WHEN attempts < max_retries THEN $3 ELSE scheduled_at END,
			completed_at = CASE WHEN attempts < max_retries THEN NULL ELSE $3 END
		WHERE id = $1`,
		id, errMsg, retryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

func (s *JobStore) DeleteFinishedJobsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed') AND completed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
