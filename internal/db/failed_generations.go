package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// CreateFailedGeneration appends one diagnostic record. Records are
// append-only and never updated.
func (db *DB) CreateFailedGeneration(ctx context.Context, rec *types.FailedGenerationRecord) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO failed_generations
		   (id, work_item_id, prompt, raw_response, stop_reason,
		    input_tokens, output_tokens, total_tokens,
		    failure_type, truncation_pattern, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.WorkItemID, rec.Prompt, rec.RawResponse, rec.StopReason,
		rec.TokenUsage.InputTokens, rec.TokenUsage.OutputTokens, rec.TokenUsage.TotalTokens,
		rec.FailureType, rec.TruncationPattern, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create failure record: %w", err)
	}
	return nil
}

// ListFailedGenerations returns diagnostic records for a work item, newest first
func (db *DB) ListFailedGenerations(ctx context.Context, workItemID uuid.UUID) ([]types.FailedGenerationRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, work_item_id, prompt, raw_response, stop_reason,
		        input_tokens, output_tokens, total_tokens,
		        failure_type, truncation_pattern, error_message, created_at
		 FROM failed_generations
		 WHERE work_item_id = $1
		 ORDER BY created_at DESC`,
		workItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure records: %w", err)
	}
	defer rows.Close()

	var records []types.FailedGenerationRecord
	for rows.Next() {
		var rec types.FailedGenerationRecord
		if err := rows.Scan(&rec.ID, &rec.WorkItemID, &rec.Prompt, &rec.RawResponse,
			&rec.StopReason, &rec.TokenUsage.InputTokens, &rec.TokenUsage.OutputTokens,
			&rec.TokenUsage.TotalTokens, &rec.FailureType, &rec.TruncationPattern,
			&rec.ErrorMessage, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
