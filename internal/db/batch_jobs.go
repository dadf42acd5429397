package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// CreateBatchJob creates a new batch job row and returns it
func (db *DB) CreateBatchJob(ctx context.Context, totalItems, concurrencyLimit int, policy types.FailurePolicy) (*types.BatchJob, error) {
	var job types.BatchJob
	err := db.pool.QueryRow(ctx,
		`INSERT INTO batch_jobs (total_items, concurrency_limit, failure_policy, status)
		 VALUES ($1, $2, $3, 'queued')
		 RETURNING id, total_items, completed_items, successful_items, failed_items,
		           status, concurrency_limit, failure_policy, started_at, completed_at`,
		totalItems, concurrencyLimit, policy,
	).Scan(&job.ID, &job.TotalItems, &job.CompletedItems, &job.SuccessfulItems, &job.FailedItems,
		&job.Status, &job.ConcurrencyLimit, &job.FailurePolicy, &job.StartedAt, &job.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch job: %w", err)
	}
	return &job, nil
}

// GetBatchJob retrieves a batch job by ID. Returns nil when not found.
func (db *DB) GetBatchJob(ctx context.Context, jobID uuid.UUID) (*types.BatchJob, error) {
	var job types.BatchJob
	err := db.pool.QueryRow(ctx,
		`SELECT id, total_items, completed_items, successful_items, failed_items,
		        status, concurrency_limit, failure_policy, started_at, completed_at,
		        estimated_remaining_seconds
		 FROM batch_jobs WHERE id = $1`,
		jobID,
	).Scan(&job.ID, &job.TotalItems, &job.CompletedItems, &job.SuccessfulItems, &job.FailedItems,
		&job.Status, &job.ConcurrencyLimit, &job.FailurePolicy, &job.StartedAt, &job.CompletedAt,
		&job.EstimatedRemainingSeconds)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch job: %w", err)
	}
	return &job, nil
}

// SetBatchStatus transitions a batch job's status
func (db *DB) SetBatchStatus(ctx context.Context, jobID uuid.UUID, status types.BatchStatus) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE batch_jobs SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to set batch status: %w", err)
	}
	return nil
}

// MarkBatchStarted records the processing start time
func (db *DB) MarkBatchStarted(ctx context.Context, jobID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE batch_jobs SET status = 'processing', started_at = NOW(), updated_at = NOW()
		 WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark batch started: %w", err)
	}
	return nil
}

// MarkBatchFinished records the terminal status and completion time
func (db *DB) MarkBatchFinished(ctx context.Context, jobID uuid.UUID, status types.BatchStatus) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE batch_jobs
		 SET status = $1, completed_at = NOW(), estimated_remaining_seconds = NULL, updated_at = NOW()
		 WHERE id = $2`,
		status, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark batch finished: %w", err)
	}
	return nil
}

// RecordItemOutcome atomically increments the batch progress counters for one
// completed item. The arithmetic runs inside the UPDATE so concurrent
// completions never race on the counters.
func (db *DB) RecordItemOutcome(ctx context.Context, jobID uuid.UUID, succeeded bool, etaSeconds *float64) error {
	success := 0
	failure := 0
	if succeeded {
		success = 1
	} else {
		failure = 1
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE batch_jobs
		 SET completed_items = completed_items + 1,
		     successful_items = successful_items + $1,
		     failed_items = failed_items + $2,
		     estimated_remaining_seconds = $3,
		     updated_at = NOW()
		 WHERE id = $4 AND completed_items < total_items`,
		success, failure, etaSeconds, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to record item outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch %s already has all items recorded", jobID)
	}
	return nil
}
