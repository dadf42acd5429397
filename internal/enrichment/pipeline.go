// Package enrichment runs the staged enrichment state machine over trusted
// conversations: validate, enrich, normalize, persist. Each stage transition
// is durably recorded before the next stage starts, so a crash resumes from
// the last completed stage rather than recomputing everything.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/dialogue-forge/internal/blob"
	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// Stage names, in pipeline order
const (
	StageValidate  = "validate"
	StageEnrich    = "enrich"
	StageNormalize = "normalize"
	StagePersist   = "persist"
)

// ErrConversationNotFound is returned when the conversation ID matches no
// trusted conversation row.
var ErrConversationNotFound = errors.New("conversation not found")

// Store is the relational surface the pipeline needs. Implemented by *db.DB.
type Store interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*db.ConversationRow, error)
	GetEnrichmentRecord(ctx context.Context, conversationID uuid.UUID) (*types.EnrichmentRecord, error)
	SetEnrichmentStatus(ctx context.Context, conversationID uuid.UUID, status types.EnrichmentStatus, report *types.ValidationReport, lastError *string) error
	ResetEnrichment(ctx context.Context, conversationID uuid.UUID) error
	GetReference(ctx context.Context, kind, id string) (*db.ReferenceRow, error)
}

// Pipeline executes the enrichment state machine for one conversation at a
// time. It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	store  Store
	blobs  blob.Store
	logger *zap.Logger

	normalize func(*types.EnrichedConversation) ([]byte, error)
}

// NewPipeline wires an enrichment pipeline from its collaborators
func NewPipeline(store Store, blobs blob.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		blobs:     blobs,
		logger:    logger,
		normalize: normalizeArtifact,
	}
}

// Run advances the state machine from its persisted cursor to a terminal
// state. Stage failures land in the result, not the error return; the error
// return is reserved for infrastructure faults (store unavailable, missing
// conversation).
func (p *Pipeline) Run(ctx context.Context, conversationID uuid.UUID) (*types.EnrichmentResult, error) {
	record, err := p.store.GetEnrichmentRecord(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	switch record.Status {
	case types.EnrichmentCompleted:
		return &types.EnrichmentResult{
			Success:         true,
			FinalStatus:     types.EnrichmentCompleted,
			StagesCompleted: []string{StageValidate, StageEnrich, StageNormalize, StagePersist},
		}, nil
	case types.EnrichmentValidationFailed, types.EnrichmentNormalizationFailed:
		// Terminal failure states require the explicit retry operation.
		return &types.EnrichmentResult{
			Success:     false,
			FinalStatus: record.Status,
			Error:       fmt.Sprintf("pipeline previously halted at %s, retry to reprocess", record.Status),
		}, nil
	}

	row, err := p.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrConversationNotFound
	}

	var stages []string
	var enriched *types.EnrichedConversation

	if record.Status == types.EnrichmentEnriched {
		// Enrichment already succeeded in a previous attempt; resume from
		// the stored enriched artifact without recomputing it.
		enriched, err = p.loadEnriched(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		stages = append(stages, StageValidate, StageEnrich)
	} else {
		enriched, stages, err = p.validateAndEnrich(ctx, row)
		if err != nil {
			return nil, err
		}
		if enriched == nil {
			return &types.EnrichmentResult{
				Success:         false,
				FinalStatus:     types.EnrichmentValidationFailed,
				StagesCompleted: stages,
				Error:           "validation blockers present",
			}, nil
		}
	}

	canonical, err := p.normalize(enriched)
	if err != nil {
		msg := err.Error()
		if serr := p.store.SetEnrichmentStatus(ctx, conversationID, types.EnrichmentNormalizationFailed, nil, &msg); serr != nil {
			return nil, serr
		}
		p.logger.Warn("normalization failed",
			zap.String("conversation_id", conversationID.String()), zap.Error(err))
		return &types.EnrichmentResult{
			Success:         false,
			FinalStatus:     types.EnrichmentNormalizationFailed,
			StagesCompleted: stages,
			Error:           msg,
		}, nil
	}
	stages = append(stages, StageNormalize)

	if err := p.persist(ctx, conversationID, canonical); err != nil {
		// Enrichment itself succeeded; storage can be retried without
		// recomputing it, so the cursor stays at enriched.
		msg := err.Error()
		if serr := p.store.SetEnrichmentStatus(ctx, conversationID, types.EnrichmentEnriched, nil, &msg); serr != nil {
			return nil, serr
		}
		return &types.EnrichmentResult{
			Success:         false,
			FinalStatus:     types.EnrichmentEnriched,
			StagesCompleted: stages,
			Error:           msg,
		}, nil
	}
	stages = append(stages, StagePersist)

	if err := p.store.SetEnrichmentStatus(ctx, conversationID, types.EnrichmentCompleted, nil, nil); err != nil {
		return nil, err
	}

	p.logger.Info("enrichment completed",
		zap.String("conversation_id", conversationID.String()),
		zap.Int("training_pairs", len(enriched.TrainingPairs)))
	return &types.EnrichmentResult{
		Success:         true,
		FinalStatus:     types.EnrichmentCompleted,
		StagesCompleted: stages,
	}, nil
}

// Retry resets the state machine to not_started and runs the pipeline again
// from validation. The raw artifact is never touched.
func (p *Pipeline) Retry(ctx context.Context, conversationID uuid.UUID) (*types.EnrichmentResult, error) {
	if err := p.store.ResetEnrichment(ctx, conversationID); err != nil {
		return nil, err
	}
	p.logger.Info("enrichment reset for retry",
		zap.String("conversation_id", conversationID.String()))
	return p.Run(ctx, conversationID)
}

// validateAndEnrich runs the first two stages. A nil enriched result with a
// nil error means validation blocked.
func (p *Pipeline) validateAndEnrich(ctx context.Context, row *db.ConversationRow) (*types.EnrichedConversation, []string, error) {
	raw, err := p.blobs.Get(ctx, row.RawBlobKey)
	if err != nil {
		return nil, nil, err
	}

	conv, report := validateRaw(string(raw))
	if report.HasBlockers() {
		msg := fmt.Sprintf("%d validation blockers", len(report.Blockers))
		if err := p.store.SetEnrichmentStatus(ctx, row.ID, types.EnrichmentValidationFailed, report, &msg); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	if err := p.store.SetEnrichmentStatus(ctx, row.ID, types.EnrichmentValidated, report, nil); err != nil {
		return nil, nil, err
	}
	stages := []string{StageValidate}

	if err := p.store.SetEnrichmentStatus(ctx, row.ID, types.EnrichmentInProgress, nil, nil); err != nil {
		return nil, stages, err
	}
	enriched, err := p.enrich(ctx, row, conv)
	if err != nil {
		return nil, stages, err
	}

	// Store the enriched artifact before advancing the cursor so a resume
	// from `enriched` never recomputes this stage.
	data, err := json.Marshal(enriched)
	if err != nil {
		return nil, stages, err
	}
	if err := p.blobs.Put(ctx, blob.EnrichedKey(row.ID), data); err != nil {
		return nil, stages, err
	}
	if err := p.store.SetEnrichmentStatus(ctx, row.ID, types.EnrichmentEnriched, nil, nil); err != nil {
		return nil, stages, err
	}
	return enriched, append(stages, StageEnrich), nil
}

func (p *Pipeline) loadEnriched(ctx context.Context, conversationID uuid.UUID) (*types.EnrichedConversation, error) {
	data, err := p.blobs.Get(ctx, blob.EnrichedKey(conversationID))
	if err != nil {
		return nil, err
	}
	var enriched types.EnrichedConversation
	if err := json.Unmarshal(data, &enriched); err != nil {
		return nil, err
	}
	return &enriched, nil
}

// persist writes the normalized artifact, retrying once on failure before
// surfacing the error.
func (p *Pipeline) persist(ctx context.Context, conversationID uuid.UUID, data []byte) error {
	key := blob.EnrichedKey(conversationID)
	err := p.blobs.Put(ctx, key, data)
	if err == nil {
		return nil
	}
	p.logger.Warn("artifact write failed, retrying once",
		zap.String("key", key), zap.Error(err))
	return p.blobs.Put(ctx, key, data)
}
