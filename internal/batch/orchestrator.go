// Package batch runs generation work items through a bounded worker pool
// with pause, resume, and cancel controls and durable progress counters.
package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/dialogue-forge/internal/generation"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// ErrJobNotRunning is returned by lifecycle operations addressed at a job
// this orchestrator is not currently executing.
var ErrJobNotRunning = errors.New("batch job is not running")

// ErrJobNotFound is returned when a job ID matches no known batch.
var ErrJobNotFound = errors.New("batch job not found")

// Store is the relational surface the orchestrator needs. Implemented by *db.DB.
type Store interface {
	CreateBatchJob(ctx context.Context, totalItems, concurrencyLimit int, policy types.FailurePolicy) (*types.BatchJob, error)
	GetBatchJob(ctx context.Context, jobID uuid.UUID) (*types.BatchJob, error)
	SetBatchStatus(ctx context.Context, jobID uuid.UUID, status types.BatchStatus) error
	MarkBatchStarted(ctx context.Context, jobID uuid.UUID) error
	MarkBatchFinished(ctx context.Context, jobID uuid.UUID, status types.BatchStatus) error
	RecordItemOutcome(ctx context.Context, jobID uuid.UUID, succeeded bool, etaSeconds *float64) error
	CreateWorkItems(ctx context.Context, batchID uuid.UUID, specs []types.WorkItemSpec) ([]types.WorkItem, error)
	SetWorkItemStatus(ctx context.Context, itemID uuid.UUID, status types.ItemStatus, resultRef *uuid.UUID, errorMessage *string) error
	CancelQueuedItems(ctx context.Context, batchID uuid.UUID) (int, error)
}

// Runner executes one work item. Implemented by *generation.Pipeline.
type Runner interface {
	Run(ctx context.Context, item types.WorkItem) (*generation.Result, error)
}

// control carries the in-memory lifecycle state of one running job.
// Dispatch checks it before every item; in-flight items are never interrupted.
type control struct {
	mu   sync.Mutex
	gate chan struct{} // non-nil while paused; closed on resume

	cancelled  chan struct{}
	cancelOnce sync.Once
	// userCancelled distinguishes an explicit cancel from a
	// failure-policy halt when picking the terminal status.
	userCancelled atomic.Bool

	completed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	done chan struct{}
}

func newControl() *control {
	return &control{
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (c *control) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate == nil {
		c.gate = make(chan struct{})
	}
}

func (c *control) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate != nil {
		close(c.gate)
		c.gate = nil
	}
}

func (c *control) pauseGate() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate
}

func (c *control) cancel(byUser bool) {
	if byUser {
		c.userCancelled.Store(true)
	}
	c.cancelOnce.Do(func() { close(c.cancelled) })
}

func (c *control) isCancelled() bool {
	select {
	case <-c.cancelled:
		return true
	default:
		return false
	}
}

func (c *control) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Orchestrator dispatches batches of work items into a shared Runner and
// keeps durable progress in the Store. One orchestrator can execute many
// batches; each gets its own worker pool and control block.
type Orchestrator struct {
	store  Store
	runner Runner
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[uuid.UUID]*control
}

// NewOrchestrator wires an orchestrator from its collaborators
func NewOrchestrator(store Store, runner Runner, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:  store,
		runner: runner,
		logger: logger,
		jobs:   make(map[uuid.UUID]*control),
	}
}

// StartBatch persists the job and its items, then begins executing in the
// background. The returned job ID addresses all later lifecycle operations.
func (o *Orchestrator) StartBatch(ctx context.Context, specs []types.WorkItemSpec, concurrencyLimit int, policy types.FailurePolicy) (uuid.UUID, error) {
	if len(specs) == 0 {
		return uuid.Nil, errors.New("batch must contain at least one item")
	}
	if concurrencyLimit < 1 {
		concurrencyLimit = 1
	}

	job, err := o.store.CreateBatchJob(ctx, len(specs), concurrencyLimit, policy)
	if err != nil {
		return uuid.Nil, err
	}
	items, err := o.store.CreateWorkItems(ctx, job.ID, specs)
	if err != nil {
		return uuid.Nil, err
	}
	if err := o.store.MarkBatchStarted(ctx, job.ID); err != nil {
		return uuid.Nil, err
	}

	ctl := newControl()
	o.mu.Lock()
	o.jobs[job.ID] = ctl
	o.mu.Unlock()

	o.logger.Info("batch started",
		zap.String("job_id", job.ID.String()),
		zap.Int("total_items", len(items)),
		zap.Int("concurrency_limit", concurrencyLimit),
		zap.String("failure_policy", string(policy)))

	// The run loop outlives the submission call: an HTTP request context
	// ends when the 202 is written, and that must not abandon the batch.
	// Cancellation goes through the control block instead.
	go o.run(context.WithoutCancel(ctx), job, items, ctl)
	return job.ID, nil
}

// GetBatchStatus returns the durable progress snapshot for a job
func (o *Orchestrator) GetBatchStatus(ctx context.Context, jobID uuid.UUID) (*types.BatchProgress, error) {
	job, err := o.store.GetBatchJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return &types.BatchProgress{
		Status:                    job.Status,
		TotalItems:                job.TotalItems,
		CompletedItems:            job.CompletedItems,
		SuccessfulItems:           job.SuccessfulItems,
		FailedItems:               job.FailedItems,
		EstimatedRemainingSeconds: job.EstimatedRemainingSeconds,
	}, nil
}

// PauseBatch stops dispatch of further items. In-flight items finish and
// record their outcome.
func (o *Orchestrator) PauseBatch(ctx context.Context, jobID uuid.UUID) error {
	ctl, err := o.running(jobID)
	if err != nil {
		return err
	}
	ctl.pause()
	return o.store.SetBatchStatus(ctx, jobID, types.BatchPaused)
}

// ResumeBatch reopens dispatch for a paused job
func (o *Orchestrator) ResumeBatch(ctx context.Context, jobID uuid.UUID) error {
	ctl, err := o.running(jobID)
	if err != nil {
		return err
	}
	if err := o.store.SetBatchStatus(ctx, jobID, types.BatchProcessing); err != nil {
		return err
	}
	ctl.resume()
	return nil
}

// CancelBatch stops dispatch and marks not-yet-started items cancelled.
// In-flight items still finish and record their outcome.
func (o *Orchestrator) CancelBatch(_ context.Context, jobID uuid.UUID) error {
	ctl, err := o.running(jobID)
	if err != nil {
		return err
	}
	ctl.cancel(true)
	return nil
}

// Wait blocks until the job's run loop has finished and its terminal status
// is recorded. Returns immediately for unknown jobs.
func (o *Orchestrator) Wait(jobID uuid.UUID) {
	o.mu.Lock()
	ctl, ok := o.jobs[jobID]
	o.mu.Unlock()
	if !ok {
		return
	}
	<-ctl.done
}

func (o *Orchestrator) running(jobID uuid.UUID) (*control, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ctl, ok := o.jobs[jobID]
	if !ok || ctl.isDone() {
		return nil, ErrJobNotRunning
	}
	return ctl, nil
}

// run is the dispatch loop: items are handed to the worker pool in position
// order, bounded by a semaphore sized to the concurrency limit. Pause and
// cancel are observed only between dispatches.
func (o *Orchestrator) run(ctx context.Context, job *types.BatchJob, items []types.WorkItem, ctl *control) {
	defer close(ctl.done)

	sem := make(chan struct{}, job.ConcurrencyLimit)
	var wg sync.WaitGroup
	startedAt := time.Now()

dispatch:
	for _, item := range items {
		if err := o.awaitDispatch(ctx, ctl); err != nil {
			break dispatch
		}
		select {
		case sem <- struct{}{}:
		case <-ctl.cancelled:
			break dispatch
		case <-ctx.Done():
			break dispatch
		}

		wg.Add(1)
		go func(item types.WorkItem) {
			defer wg.Done()
			defer func() { <-sem }()
			o.processItem(ctx, job, item, ctl, startedAt)
		}(item)
	}

	wg.Wait()
	o.finish(ctx, job, ctl)
}

// awaitDispatch blocks while the job is paused and returns an error once the
// job is cancelled or the context ends.
func (o *Orchestrator) awaitDispatch(ctx context.Context, ctl *control) error {
	for {
		if ctl.isCancelled() {
			return context.Canceled
		}
		gate := ctl.pauseGate()
		if gate == nil {
			return nil
		}
		select {
		case <-gate:
		case <-ctl.cancelled:
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) processItem(ctx context.Context, job *types.BatchJob, item types.WorkItem, ctl *control, startedAt time.Time) {
	if err := o.store.SetWorkItemStatus(ctx, item.ID, types.ItemProcessing, nil, nil); err != nil {
		o.logger.Error("failed to mark item processing", zap.Error(err))
	}

	result, err := o.runner.Run(ctx, item)
	succeeded := err == nil && result.Succeeded()

	if succeeded {
		if err := o.store.SetWorkItemStatus(ctx, item.ID, types.ItemCompleted, &result.ConversationID, nil); err != nil {
			o.logger.Error("failed to mark item completed", zap.Error(err))
		}
	} else {
		var resultRef *uuid.UUID
		msg := "parse failed, conversation needs manual review"
		if err != nil {
			msg = err.Error()
		} else {
			// Needs-review items keep their conversation reference so the
			// raw artifact stays reachable from the item.
			resultRef = &result.ConversationID
		}
		if err := o.store.SetWorkItemStatus(ctx, item.ID, types.ItemFailed, resultRef, &msg); err != nil {
			o.logger.Error("failed to mark item failed", zap.Error(err))
		}
	}

	completed := ctl.completed.Add(1)
	if succeeded {
		ctl.succeeded.Add(1)
	} else {
		ctl.failed.Add(1)
	}

	// Recomputed on every completion from actual elapsed time; never cached.
	remaining := int64(job.TotalItems) - completed
	eta := time.Since(startedAt).Seconds() / float64(completed) * float64(remaining)
	if err := o.store.RecordItemOutcome(ctx, job.ID, succeeded, &eta); err != nil {
		o.logger.Error("failed to record item outcome", zap.Error(err))
	}

	if !succeeded && job.FailurePolicy == types.FailureStop {
		o.logger.Warn("halting dispatch on first failure",
			zap.String("job_id", job.ID.String()),
			zap.String("item_id", item.ID.String()))
		ctl.cancel(false)
	}
}

// finish picks the terminal status: an explicit cancel wins over a
// failure-policy halt; otherwise the batch completed, regardless of how many
// individual items failed under the continue policy.
func (o *Orchestrator) finish(ctx context.Context, job *types.BatchJob, ctl *control) {
	status := types.BatchCompleted
	if ctl.isCancelled() {
		if ctl.userCancelled.Load() {
			status = types.BatchCancelled
		} else {
			status = types.BatchFailed
		}
		if n, err := o.store.CancelQueuedItems(ctx, job.ID); err != nil {
			o.logger.Error("failed to cancel queued items", zap.Error(err))
		} else if n > 0 {
			o.logger.Info("cancelled queued items",
				zap.String("job_id", job.ID.String()), zap.Int("count", n))
		}
	}

	if err := o.store.MarkBatchFinished(ctx, job.ID, status); err != nil {
		o.logger.Error("failed to record terminal batch status", zap.Error(err))
	}

	o.logger.Info("batch finished",
		zap.String("job_id", job.ID.String()),
		zap.String("status", string(status)),
		zap.Int64("completed", ctl.completed.Load()),
		zap.Int64("succeeded", ctl.succeeded.Load()),
		zap.Int64("failed", ctl.failed.Load()))
}
