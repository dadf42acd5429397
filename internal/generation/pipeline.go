package generation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/dialogue-forge/internal/blob"
	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/jsonrepair"
	"github.com/jonathan/dialogue-forge/internal/llm"
	"github.com/jonathan/dialogue-forge/internal/schemas"
	"github.com/jonathan/dialogue-forge/internal/types"
	"github.com/jonathan/dialogue-forge/internal/validation"
)

// Store is the relational surface the pipeline needs. Implemented by *db.DB.
type Store interface {
	GetConversationByWorkItem(ctx context.Context, workItemID uuid.UUID) (*db.ConversationRow, error)
	CreateConversation(ctx context.Context, row *db.ConversationRow) error
	MarkConversationParsed(ctx context.Context, id uuid.UUID, status string, finalBlobKey *string, method types.ParseMethod) error
	CreateFailedGeneration(ctx context.Context, rec *types.FailedGenerationRecord) error
}

// Resolver produces the final prompt for a work item. Implemented by
// *templates.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, templateID uuid.UUID, params types.Params) (string, error)
}

// Result is the outcome of one pipeline run
type Result struct {
	ConversationID uuid.UUID
	ParseMethod    types.ParseMethod
	Status         string
}

// Succeeded reports whether the item produced a trusted final artifact
func (r *Result) Succeeded() bool {
	return r.Status == db.ConversationCompleted
}

// Pipeline runs the generation state machine for individual work items.
// All collaborators are injected; the pipeline itself holds no mutable state
// and is safe for concurrent use.
type Pipeline struct {
	llm       llm.Client
	resolver  Resolver
	store     Store
	blobs     blob.Store
	validator *validation.Validator
	logger    *zap.Logger
}

// NewPipeline wires a generation pipeline from its collaborators
func NewPipeline(client llm.Client, resolver Resolver, store Store, blobs blob.Store, validator *validation.Validator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		llm:       client,
		resolver:  resolver,
		store:     store,
		blobs:     blobs,
		validator: validator,
		logger:    logger,
	}
}

// Run executes the pipeline for one work item.
//
// A rejected response never reaches the conversation store: validation runs
// before the first trusted write, and rejections are recorded as
// FailedGenerationRecords plus a diagnostic blob. Parse failures after a
// trusted raw write downgrade the conversation to needs_review without
// deleting anything, and are not surfaced as errors.
//
// Run is retry-safe: when a conversation with a raw artifact already exists
// for the item, the stored raw text is re-parsed instead of calling the
// provider again.
func (p *Pipeline) Run(ctx context.Context, item types.WorkItem) (*Result, error) {
	existing, err := p.store.GetConversationByWorkItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return p.resume(ctx, item, existing)
	}

	prompt, err := p.resolver.Resolve(ctx, item.TemplateID, item.Parameters)
	if err != nil {
		return nil, err
	}

	resp, err := p.llm.Generate(ctx, prompt, llm.ModelTier(item.Tier))
	if err != nil {
		p.recordFailure(ctx, item.ID, prompt, &llm.Response{}, types.FailureAPIError, "", err.Error())
		return nil, &APICallError{Message: "provider call failed", Cause: err}
	}

	if err := p.validator.Validate(resp); err != nil {
		failureType, pattern := classifyRejection(resp, err)
		rec := p.recordFailure(ctx, item.ID, prompt, resp, failureType, pattern, err.Error())
		return nil, &RejectedResponseError{Record: rec, Cause: err}
	}

	// The response is trusted from here on: persist the raw artifact first,
	// immutably, so parsing can always be retried from storage.
	conversationID := uuid.New()
	rawKey := blob.RawKey(conversationID)
	if err := p.blobs.Put(ctx, rawKey, []byte(resp.Content)); err != nil {
		return nil, err
	}

	row := &db.ConversationRow{
		ID:         conversationID,
		WorkItemID: item.ID,
		Topic:      item.Topic,
		Status:     db.ConversationPendingParse,
		RawBlobKey: rawKey,
		ModelID:    resp.ModelID,
		StopReason: resp.StopReason,
		TokenUsage: resp.TokenUsage,
	}
	if err := p.store.CreateConversation(ctx, row); err != nil {
		return nil, err
	}

	return p.parseAndFinalize(ctx, item, conversationID, resp.Content)
}

// resume continues a previous run from its persisted raw artifact
func (p *Pipeline) resume(ctx context.Context, item types.WorkItem, row *db.ConversationRow) (*Result, error) {
	if row.Status == db.ConversationCompleted {
		return &Result{ConversationID: row.ID, ParseMethod: row.ParseMethod, Status: row.Status}, nil
	}

	p.logger.Info("reusing stored raw artifact",
		zap.String("work_item_id", item.ID.String()),
		zap.String("conversation_id", row.ID.String()))

	raw, err := p.blobs.Get(ctx, row.RawBlobKey)
	if err != nil {
		return nil, err
	}
	return p.parseAndFinalize(ctx, item, row.ID, string(raw))
}

// parseAndFinalize runs the three-tier parse over raw text, rechecks the
// parsed document against the conversation schema, and persists the outcome.
// Raw data is never deleted on downstream failure.
func (p *Pipeline) parseAndFinalize(ctx context.Context, item types.WorkItem, conversationID uuid.UUID, raw string) (*Result, error) {
	conv, method := jsonrepair.ParseConversation(raw)
	if method == types.ParseMethodFailed {
		return p.needsReview(ctx, item, conversationID, raw, method,
			"structural repair exhausted without valid output")
	}

	// A document can decode into the conversation shape and still be
	// structurally invalid (wrong role, zero turns). Recheck before the
	// final artifact is written.
	convDoc, err := json.Marshal(conv)
	if err != nil {
		return nil, err
	}
	if err := schemas.ValidateConversation(convDoc); err != nil {
		return p.needsReview(ctx, item, conversationID, raw, method,
			"parsed output violates conversation schema: "+err.Error())
	}

	final := types.FinalArtifact{
		ConversationID: conversationID,
		Turns:          conv.Turns,
		ParseMethod:    method,
		CreatedAt:      time.Now().UTC(),
	}
	data, err := json.Marshal(final)
	if err != nil {
		return nil, err
	}

	finalKey := blob.FinalKey(conversationID)
	if err := p.blobs.Put(ctx, finalKey, data); err != nil {
		return nil, err
	}
	if err := p.store.MarkConversationParsed(ctx, conversationID, db.ConversationCompleted, &finalKey, method); err != nil {
		return nil, err
	}

	p.logger.Info("work item completed",
		zap.String("work_item_id", item.ID.String()),
		zap.String("conversation_id", conversationID.String()),
		zap.String("parse_method", string(method)))
	return &Result{ConversationID: conversationID, ParseMethod: method, Status: db.ConversationCompleted}, nil
}

// needsReview downgrades the conversation without deleting its raw artifact
// and records the diagnostic. Not surfaced as an error to the caller.
func (p *Pipeline) needsReview(ctx context.Context, item types.WorkItem, conversationID uuid.UUID, raw string, method types.ParseMethod, message string) (*Result, error) {
	p.recordFailure(ctx, item.ID, "", &llm.Response{Content: raw}, types.FailureParseError, "", message)
	if err := p.store.MarkConversationParsed(ctx, conversationID, db.ConversationNeedsReview, nil, method); err != nil {
		return nil, err
	}
	p.logger.Warn("conversation needs manual review",
		zap.String("conversation_id", conversationID.String()),
		zap.String("reason", message))
	return &Result{ConversationID: conversationID, ParseMethod: method, Status: db.ConversationNeedsReview}, nil
}

// recordFailure appends the diagnostic record and writes the error-report
// blob. Failures here are logged but do not mask the original rejection.
func (p *Pipeline) recordFailure(ctx context.Context, itemID uuid.UUID, prompt string, resp *llm.Response, failureType types.FailureType, pattern, message string) *types.FailedGenerationRecord {
	rec := &types.FailedGenerationRecord{
		ID:                uuid.New(),
		WorkItemID:        itemID,
		Prompt:            prompt,
		RawResponse:       resp.Content,
		StopReason:        resp.StopReason,
		TokenUsage:        resp.TokenUsage,
		FailureType:       failureType,
		TruncationPattern: pattern,
		ErrorMessage:      message,
		CreatedAt:         time.Now().UTC(),
	}

	if err := p.store.CreateFailedGeneration(ctx, rec); err != nil {
		p.logger.Error("failed to store failure record", zap.Error(err))
	}
	if data, err := json.Marshal(rec); err == nil {
		if err := p.blobs.Put(ctx, blob.ErrorReportKey(rec.ID), data); err != nil {
			p.logger.Error("failed to store error report blob", zap.Error(err))
		}
	}
	return rec
}

// classifyRejection maps a validation error onto the diagnostic taxonomy.
// A length-limit stop and any detected truncation both classify as
// truncation; other abnormal stop reasons are validation errors.
func classifyRejection(resp *llm.Response, err error) (types.FailureType, string) {
	var truncErr *validation.TruncatedResponseError
	if errors.As(err, &truncErr) {
		return types.FailureTruncation, string(truncErr.Pattern)
	}

	var stopErr *validation.UnexpectedStopReasonError
	if errors.As(err, &stopErr) {
		if stopErr.StopReason == types.StopReasonMaxTokens {
			return types.FailureTruncation, ""
		}
		return types.FailureValidationError, ""
	}

	return types.FailureValidationError, ""
}
