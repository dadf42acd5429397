package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// GetEnrichmentRecord retrieves the enrichment cursor for a conversation.
// A conversation with no record yet is reported as not_started.
func (db *DB) GetEnrichmentRecord(ctx context.Context, conversationID uuid.UUID) (*types.EnrichmentRecord, error) {
	var rec types.EnrichmentRecord
	var reportJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT conversation_id, status, validation_report, last_error, updated_at
		 FROM enrichment_records WHERE conversation_id = $1`,
		conversationID,
	).Scan(&rec.ConversationID, &rec.Status, &reportJSON, &rec.LastError, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &types.EnrichmentRecord{
				ConversationID: conversationID,
				Status:         types.EnrichmentNotStarted,
			}, nil
		}
		return nil, fmt.Errorf("failed to get enrichment record: %w", err)
	}
	if reportJSON != nil {
		rec.Report = &types.ValidationReport{}
		_ = json.Unmarshal(reportJSON, rec.Report)
	}
	return &rec, nil
}

// SetEnrichmentStatus durably records a stage transition before the next
// stage runs. The report and error are written when provided, preserved
// otherwise.
func (db *DB) SetEnrichmentStatus(ctx context.Context, conversationID uuid.UUID, status types.EnrichmentStatus, report *types.ValidationReport, lastError *string) error {
	var reportJSON []byte
	if report != nil {
		var err error
		reportJSON, err = json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal validation report: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO enrichment_records (conversation_id, status, validation_report, last_error)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (conversation_id) DO UPDATE
		 SET status = $2,
		     validation_report = COALESCE($3, enrichment_records.validation_report),
		     last_error = $4,
		     updated_at = NOW()`,
		conversationID, status, reportJSON, lastError,
	)
	if err != nil {
		return fmt.Errorf("failed to set enrichment status: %w", err)
	}
	return nil
}

// ResetEnrichment implements the explicit retry operation: the cursor returns
// to not_started and stale findings are cleared. The raw artifact is not
// touched.
func (db *DB) ResetEnrichment(ctx context.Context, conversationID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO enrichment_records (conversation_id, status)
		 VALUES ($1, 'not_started')
		 ON CONFLICT (conversation_id) DO UPDATE
		 SET status = 'not_started', validation_report = NULL, last_error = NULL, updated_at = NOW()`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to reset enrichment record: %w", err)
	}
	return nil
}
