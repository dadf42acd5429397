package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/dialogue-forge/internal/blob"
	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/llm"
	"github.com/jonathan/dialogue-forge/internal/types"
	"github.com/jonathan/dialogue-forge/internal/validation"
)

// fakeLLM returns a scripted response and counts invocations
type fakeLLM struct {
	resp  *llm.Response
	err   error
	calls int
}

func (f *fakeLLM) Generate(_ context.Context, _ string, _ llm.ModelTier) (*llm.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeLLM) GetModel(llm.ModelTier) string { return "fake-model" }
func (f *fakeLLM) Close() error                  { return nil }

// fakeResolver returns a fixed prompt
type fakeResolver struct{ prompt string }

func (f *fakeResolver) Resolve(context.Context, uuid.UUID, types.Params) (string, error) {
	return f.prompt, nil
}

// fakeStore is an in-memory Store implementation
type fakeStore struct {
	conversations map[uuid.UUID]*db.ConversationRow // keyed by work item
	failures      []*types.FailedGenerationRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: make(map[uuid.UUID]*db.ConversationRow)}
}

func (f *fakeStore) GetConversationByWorkItem(_ context.Context, workItemID uuid.UUID) (*db.ConversationRow, error) {
	return f.conversations[workItemID], nil
}

func (f *fakeStore) CreateConversation(_ context.Context, row *db.ConversationRow) error {
	f.conversations[row.WorkItemID] = row
	return nil
}

func (f *fakeStore) MarkConversationParsed(_ context.Context, id uuid.UUID, status string, finalBlobKey *string, method types.ParseMethod) error {
	for _, row := range f.conversations {
		if row.ID == id {
			row.Status = status
			row.FinalBlobKey = finalBlobKey
			row.ParseMethod = method
			return nil
		}
	}
	return errors.New("conversation not found")
}

func (f *fakeStore) CreateFailedGeneration(_ context.Context, rec *types.FailedGenerationRecord) error {
	f.failures = append(f.failures, rec)
	return nil
}

func newTestPipeline(client llm.Client, store *fakeStore, blobs blob.Store) *Pipeline {
	return NewPipeline(client, &fakeResolver{prompt: "generate a dialogue"}, store, blobs,
		validation.NewValidator(nil), zap.NewNop())
}

func workItem() types.WorkItem {
	return types.WorkItem{
		ID:         uuid.New(),
		BatchID:    uuid.New(),
		Topic:      "career anxiety",
		TemplateID: uuid.New(),
	}
}

const validConversation = `{"turns": [` +
	`{"turn_number": 1, "role": "user", "content": "I can't sleep before interviews."},` +
	`{"turn_number": 2, "role": "assistant", "content": "That sounds exhausting. What part worries you most?"}]}`

func TestRun_SuccessDirectParse(t *testing.T) {
	store := newFakeStore()
	blobs := blob.NewMemory()
	client := &fakeLLM{resp: &llm.Response{
		Content:    validConversation,
		StopReason: types.StopReasonStop,
		ModelID:    "fake-model",
		TokenUsage: types.TokenUsage{InputTokens: 10, OutputTokens: 50, TotalTokens: 60},
	}}

	result, err := newTestPipeline(client, store, blobs).Run(context.Background(), workItem())
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	assert.Equal(t, types.ParseMethodDirect, result.ParseMethod)

	// Raw and final artifacts both stored
	raw, err := blobs.Get(context.Background(), blob.RawKey(result.ConversationID))
	require.NoError(t, err)
	assert.Equal(t, validConversation, string(raw))
	_, err = blobs.Get(context.Background(), blob.FinalKey(result.ConversationID))
	assert.NoError(t, err)
}

func TestRun_RepairedParse(t *testing.T) {
	store := newFakeStore()
	client := &fakeLLM{resp: &llm.Response{
		// Trailing comma inside, balanced brackets, proper ending
		Content:    `{"turns": [{"turn_number": 1, "role": "assistant", "content": "All done here.",}]}`,
		StopReason: types.StopReasonStop,
		ModelID:    "fake-model",
	}}

	result, err := newTestPipeline(client, store, blob.NewMemory()).Run(context.Background(), workItem())
	require.NoError(t, err)
	assert.Equal(t, types.ParseMethodRepaired, result.ParseMethod)
	assert.True(t, result.Succeeded())
}

func TestRun_FailFastOnMaxTokens(t *testing.T) {
	store := newFakeStore()
	blobs := blob.NewMemory()
	client := &fakeLLM{resp: &llm.Response{
		Content:    validConversation,
		StopReason: types.StopReasonMaxTokens,
	}}

	item := workItem()
	_, err := newTestPipeline(client, store, blobs).Run(context.Background(), item)

	var rejected *RejectedResponseError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, types.FailureTruncation, rejected.Record.FailureType)

	// Production-storage protection: nothing reached the conversation store
	assert.Empty(t, store.conversations)
	require.Len(t, store.failures, 1)
	assert.Equal(t, types.StopReasonMaxTokens, store.failures[0].StopReason)

	// No raw artifact was trusted; only the error report blob exists
	exists, err := blobs.Exists(context.Background(), blob.ErrorReportKey(store.failures[0].ID))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, blobs.Len())
}

func TestRun_TruncatedContentRejected(t *testing.T) {
	store := newFakeStore()
	client := &fakeLLM{resp: &llm.Response{
		Content:    `{"turns": [{"turn_number": 1, "role": "assistant", "content": "And then`,
		StopReason: types.StopReasonStop,
	}}

	_, err := newTestPipeline(client, store, blob.NewMemory()).Run(context.Background(), workItem())

	var rejected *RejectedResponseError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, types.FailureTruncation, rejected.Record.FailureType)
	assert.NotEmpty(t, rejected.Record.TruncationPattern)
	assert.Empty(t, store.conversations)
}

func TestRun_ParseFailureNeedsReview(t *testing.T) {
	store := newFakeStore()
	blobs := blob.NewMemory()
	// Passes validation (proper ending, not JSON so inner checks are skipped)
	// but can never be parsed or repaired into a conversation.
	client := &fakeLLM{resp: &llm.Response{
		Content:    "Here is the story you asked about. It was a quiet evening.",
		StopReason: types.StopReasonStop,
	}}

	item := workItem()
	result, err := newTestPipeline(client, store, blobs).Run(context.Background(), item)
	require.NoError(t, err, "parse failure must not propagate past the pipeline")
	assert.Equal(t, types.ParseMethodFailed, result.ParseMethod)
	assert.False(t, result.Succeeded())

	// Raw artifact retained, no final artifact written
	row := store.conversations[item.ID]
	require.NotNil(t, row)
	assert.Equal(t, db.ConversationNeedsReview, row.Status)
	assert.Nil(t, row.FinalBlobKey)
	_, err = blobs.Get(context.Background(), row.RawBlobKey)
	assert.NoError(t, err, "raw artifact must remain retrievable")

	// Parse failure recorded for diagnosis
	require.Len(t, store.failures, 1)
	assert.Equal(t, types.FailureParseError, store.failures[0].FailureType)
}

// A document can parse cleanly and still be structurally invalid; the schema
// recheck must catch it before a final artifact is written.
func TestRun_SchemaViolationNeedsReview(t *testing.T) {
	store := newFakeStore()
	blobs := blob.NewMemory()
	client := &fakeLLM{resp: &llm.Response{
		Content:    `{"turns": [{"turn_number": 1, "role": "narrator", "content": "Once upon a time."}]}`,
		StopReason: types.StopReasonStop,
	}}

	item := workItem()
	result, err := newTestPipeline(client, store, blobs).Run(context.Background(), item)
	require.NoError(t, err, "schema rejection must not propagate past the pipeline")
	assert.Equal(t, types.ParseMethodDirect, result.ParseMethod)
	assert.False(t, result.Succeeded())

	row := store.conversations[item.ID]
	require.NotNil(t, row)
	assert.Equal(t, db.ConversationNeedsReview, row.Status)
	assert.Nil(t, row.FinalBlobKey)
	_, err = blobs.Get(context.Background(), row.RawBlobKey)
	assert.NoError(t, err, "raw artifact must remain retrievable")

	require.Len(t, store.failures, 1)
	assert.Equal(t, types.FailureParseError, store.failures[0].FailureType)
	assert.Contains(t, store.failures[0].ErrorMessage, "conversation schema")
}

func TestRun_RetryReusesRawArtifact(t *testing.T) {
	store := newFakeStore()
	blobs := blob.NewMemory()
	client := &fakeLLM{resp: &llm.Response{
		Content:    validConversation,
		StopReason: types.StopReasonStop,
	}}

	item := workItem()
	conversationID := uuid.New()
	rawKey := blob.RawKey(conversationID)
	require.NoError(t, blobs.Put(context.Background(), rawKey, []byte(validConversation)))
	store.conversations[item.ID] = &db.ConversationRow{
		ID:         conversationID,
		WorkItemID: item.ID,
		Status:     db.ConversationPendingParse,
		RawBlobKey: rawKey,
	}

	result, err := newTestPipeline(client, store, blobs).Run(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 0, client.calls, "provider must not be called when a raw artifact exists")
	assert.Equal(t, conversationID, result.ConversationID)
	assert.True(t, result.Succeeded())
}

func TestRun_CompletedItemIsIdempotent(t *testing.T) {
	store := newFakeStore()
	client := &fakeLLM{resp: &llm.Response{Content: validConversation, StopReason: types.StopReasonStop}}

	item := workItem()
	conversationID := uuid.New()
	store.conversations[item.ID] = &db.ConversationRow{
		ID:          conversationID,
		WorkItemID:  item.ID,
		Status:      db.ConversationCompleted,
		ParseMethod: types.ParseMethodDirect,
	}

	result, err := newTestPipeline(client, store, blob.NewMemory()).Run(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 0, client.calls)
	assert.True(t, result.Succeeded())
	assert.Equal(t, conversationID, result.ConversationID)
}

func TestRun_APIErrorRecorded(t *testing.T) {
	store := newFakeStore()
	client := &fakeLLM{err: errors.New("rate limited")}

	_, err := newTestPipeline(client, store, blob.NewMemory()).Run(context.Background(), workItem())

	var apiErr *APICallError
	require.ErrorAs(t, err, &apiErr)
	require.Len(t, store.failures, 1)
	assert.Equal(t, types.FailureAPIError, store.failures[0].FailureType)
	assert.Empty(t, store.conversations)
}
