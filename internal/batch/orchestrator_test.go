package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/generation"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// memStore mirrors the relational store: counter updates happen under one
// lock, the way the real store does them inside a single UPDATE.
type memStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*types.BatchJob
	items map[uuid.UUID]*types.WorkItem
}

func newMemStore() *memStore {
	return &memStore{
		jobs:  make(map[uuid.UUID]*types.BatchJob),
		items: make(map[uuid.UUID]*types.WorkItem),
	}
}

func (s *memStore) CreateBatchJob(_ context.Context, totalItems, concurrencyLimit int, policy types.FailurePolicy) (*types.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &types.BatchJob{
		ID:               uuid.New(),
		TotalItems:       totalItems,
		Status:           types.BatchQueued,
		ConcurrencyLimit: concurrencyLimit,
		FailurePolicy:    policy,
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *memStore) GetBatchJob(_ context.Context, jobID uuid.UUID) (*types.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	snapshot := *job
	return &snapshot, nil
}

func (s *memStore) SetBatchStatus(_ context.Context, jobID uuid.UUID, status types.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID].Status = status
	return nil
}

func (s *memStore) MarkBatchStarted(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.jobs[jobID].Status = types.BatchProcessing
	s.jobs[jobID].StartedAt = &now
	return nil
}

func (s *memStore) MarkBatchFinished(_ context.Context, jobID uuid.UUID, status types.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.jobs[jobID].Status = status
	s.jobs[jobID].CompletedAt = &now
	return nil
}

func (s *memStore) RecordItemOutcome(_ context.Context, jobID uuid.UUID, succeeded bool, etaSeconds *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[jobID]
	if job.CompletedItems >= job.TotalItems {
		return errors.New("counter overflow")
	}
	job.CompletedItems++
	if succeeded {
		job.SuccessfulItems++
	} else {
		job.FailedItems++
	}
	job.EstimatedRemainingSeconds = etaSeconds
	return nil
}

func (s *memStore) CreateWorkItems(_ context.Context, batchID uuid.UUID, specs []types.WorkItemSpec) ([]types.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]types.WorkItem, 0, len(specs))
	for i, spec := range specs {
		item := types.WorkItem{
			ID:         uuid.New(),
			BatchID:    batchID,
			Position:   i,
			Topic:      spec.Topic,
			TemplateID: spec.TemplateID,
			Status:     types.ItemQueued,
		}
		s.items[item.ID] = &item
		items = append(items, item)
	}
	return items, nil
}

func (s *memStore) SetWorkItemStatus(_ context.Context, itemID uuid.UUID, status types.ItemStatus, resultRef *uuid.UUID, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.items[itemID]
	item.Status = status
	if resultRef != nil {
		item.ResultRef = resultRef
	}
	if errorMessage != nil {
		item.ErrorMessage = errorMessage
	}
	return nil
}

func (s *memStore) CancelQueuedItems(_ context.Context, batchID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		if item.BatchID == batchID && item.Status == types.ItemQueued {
			item.Status = types.ItemCancelled
			n++
		}
	}
	return n, nil
}

func (s *memStore) itemStatusCounts(batchID uuid.UUID) map[types.ItemStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[types.ItemStatus]int)
	for _, item := range s.items {
		if item.BatchID == batchID {
			counts[item.Status]++
		}
	}
	return counts
}

// scriptedRunner simulates the generation pipeline with a fixed per-item
// delay and an optional failure predicate keyed by topic.
type scriptedRunner struct {
	delay    time.Duration
	failWhen func(item types.WorkItem) bool
}

func (r *scriptedRunner) Run(_ context.Context, item types.WorkItem) (*generation.Result, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.failWhen != nil && r.failWhen(item) {
		return nil, errors.New("synthetic generation failure")
	}
	return &generation.Result{
		ConversationID: uuid.New(),
		ParseMethod:    types.ParseMethodDirect,
		Status:         db.ConversationCompleted,
	}, nil
}

func specs(n int) []types.WorkItemSpec {
	out := make([]types.WorkItemSpec, n)
	for i := range out {
		out[i] = types.WorkItemSpec{Topic: fmt.Sprintf("topic-%d", i), TemplateID: uuid.New()}
	}
	return out
}

func TestStartBatch_CounterInvariantUnderConcurrency(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, &scriptedRunner{delay: time.Millisecond}, nil)

	jobID, err := orch.StartBatch(context.Background(), specs(100), 5, types.FailureContinue)
	require.NoError(t, err)
	orch.Wait(jobID)

	progress, err := orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.BatchCompleted, progress.Status)
	assert.Equal(t, 100, progress.TotalItems)
	assert.Equal(t, 100, progress.CompletedItems)
	assert.Equal(t, progress.CompletedItems, progress.SuccessfulItems+progress.FailedItems)
	assert.Equal(t, 100, progress.SuccessfulItems)

	counts := store.itemStatusCounts(jobID)
	assert.Equal(t, 100, counts[types.ItemCompleted])
}

// A batch must keep running after the submitting caller's context ends, the
// way an HTTP handler's request context does once the response is written.
func TestStartBatch_SurvivesSubmissionContextCancel(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, &scriptedRunner{delay: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	jobID, err := orch.StartBatch(ctx, specs(3), 1, types.FailureContinue)
	require.NoError(t, err)
	cancel()
	orch.Wait(jobID)

	progress, err := orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.BatchCompleted, progress.Status)
	assert.Equal(t, 3, progress.CompletedItems, "all items must run despite the caller context ending")
	assert.Equal(t, 3, progress.SuccessfulItems)

	counts := store.itemStatusCounts(jobID)
	assert.Equal(t, 3, counts[types.ItemCompleted])
}

func TestStartBatch_ContinuePolicyRecordsFailures(t *testing.T) {
	store := newMemStore()
	runner := &scriptedRunner{failWhen: func(item types.WorkItem) bool {
		return item.Topic == "topic-3" || item.Topic == "topic-7"
	}}
	orch := NewOrchestrator(store, runner, nil)

	jobID, err := orch.StartBatch(context.Background(), specs(10), 3, types.FailureContinue)
	require.NoError(t, err)
	orch.Wait(jobID)

	progress, err := orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.BatchCompleted, progress.Status)
	assert.Equal(t, 10, progress.CompletedItems)
	assert.Equal(t, 8, progress.SuccessfulItems)
	assert.Equal(t, 2, progress.FailedItems)
}

func TestStartBatch_StopPolicyHaltsDispatch(t *testing.T) {
	store := newMemStore()
	runner := &scriptedRunner{
		delay:    5 * time.Millisecond,
		failWhen: func(item types.WorkItem) bool { return item.Topic == "topic-2" },
	}
	orch := NewOrchestrator(store, runner, nil)

	// Concurrency 1 so the failing item halts dispatch deterministically.
	jobID, err := orch.StartBatch(context.Background(), specs(10), 1, types.FailureStop)
	require.NoError(t, err)
	orch.Wait(jobID)

	progress, err := orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.BatchFailed, progress.Status)
	assert.Equal(t, 1, progress.FailedItems)
	assert.Equal(t, progress.CompletedItems, progress.SuccessfulItems+progress.FailedItems)
	assert.Less(t, progress.CompletedItems, 10, "dispatch must halt before the tail of the batch")

	counts := store.itemStatusCounts(jobID)
	assert.Equal(t, 10-progress.CompletedItems, counts[types.ItemCancelled])
}

func TestPauseResume(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, &scriptedRunner{delay: 100 * time.Millisecond}, nil)

	jobID, err := orch.StartBatch(context.Background(), specs(10), 1, types.FailureContinue)
	require.NoError(t, err)

	// Wait until the third item has completed.
	waitForCompleted(t, orch, jobID, 3)
	require.NoError(t, orch.PauseBatch(context.Background(), jobID))

	progress, err := orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.BatchPaused, progress.Status)
	pausedAtCount := progress.CompletedItems

	// The single in-flight item may finish, but nothing new is dispatched.
	time.Sleep(350 * time.Millisecond)
	progress, err = orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.LessOrEqual(t, progress.CompletedItems, pausedAtCount+1,
		"at most the one in-flight item may complete while paused")

	require.NoError(t, orch.ResumeBatch(context.Background(), jobID))
	orch.Wait(jobID)

	progress, err = orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.BatchCompleted, progress.Status)
	assert.Equal(t, 10, progress.CompletedItems)
	assert.Equal(t, 10, progress.SuccessfulItems)
}

func TestCancelBatch(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, &scriptedRunner{delay: 50 * time.Millisecond}, nil)

	jobID, err := orch.StartBatch(context.Background(), specs(10), 1, types.FailureContinue)
	require.NoError(t, err)

	waitForCompleted(t, orch, jobID, 2)
	require.NoError(t, orch.CancelBatch(context.Background(), jobID))
	orch.Wait(jobID)

	progress, err := orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.BatchCancelled, progress.Status)
	assert.Less(t, progress.CompletedItems, 10)
	assert.Equal(t, progress.CompletedItems, progress.SuccessfulItems+progress.FailedItems)

	counts := store.itemStatusCounts(jobID)
	assert.Equal(t, 10, counts[types.ItemCompleted]+counts[types.ItemCancelled])
}

func TestLifecycleOpsOnUnknownJob(t *testing.T) {
	orch := NewOrchestrator(newMemStore(), &scriptedRunner{}, nil)
	unknown := uuid.New()

	assert.ErrorIs(t, orch.PauseBatch(context.Background(), unknown), ErrJobNotRunning)
	assert.ErrorIs(t, orch.ResumeBatch(context.Background(), unknown), ErrJobNotRunning)
	assert.ErrorIs(t, orch.CancelBatch(context.Background(), unknown), ErrJobNotRunning)

	_, err := orch.GetBatchStatus(context.Background(), unknown)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestEstimatedRemainingRecomputed(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, &scriptedRunner{delay: 10 * time.Millisecond}, nil)

	jobID, err := orch.StartBatch(context.Background(), specs(5), 1, types.FailureContinue)
	require.NoError(t, err)
	orch.Wait(jobID)

	progress, err := orch.GetBatchStatus(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, progress.EstimatedRemainingSeconds)
	assert.Equal(t, float64(0), *progress.EstimatedRemainingSeconds,
		"final completion projects zero remaining work")
}

func waitForCompleted(t *testing.T, orch *Orchestrator, jobID uuid.UUID, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		progress, err := orch.GetBatchStatus(context.Background(), jobID)
		require.NoError(t, err)
		if progress.CompletedItems >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("batch %s never reached %d completed items", jobID, n)
}
