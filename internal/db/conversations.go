package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// CreateConversation records a conversation whose raw artifact passed
// validation and was persisted to the object store
func (db *DB) CreateConversation(ctx context.Context, row *ConversationRow) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO conversations
		   (id, work_item_id, topic, status, raw_blob_key, model_id, stop_reason,
		    input_tokens, output_tokens, total_tokens)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		row.ID, row.WorkItemID, row.Topic, row.Status, row.RawBlobKey, row.ModelID,
		row.StopReason, row.TokenUsage.InputTokens, row.TokenUsage.OutputTokens,
		row.TokenUsage.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation row by ID. Returns nil when not found.
func (db *DB) GetConversation(ctx context.Context, id uuid.UUID) (*ConversationRow, error) {
	var row ConversationRow
	var parseMethod *string
	err := db.pool.QueryRow(ctx,
		`SELECT id, work_item_id, topic, status, raw_blob_key, final_blob_key, model_id,
		        stop_reason, input_tokens, output_tokens, total_tokens, parse_method,
		        created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&row.ID, &row.WorkItemID, &row.Topic, &row.Status, &row.RawBlobKey,
		&row.FinalBlobKey, &row.ModelID, &row.StopReason, &row.TokenUsage.InputTokens,
		&row.TokenUsage.OutputTokens, &row.TokenUsage.TotalTokens, &parseMethod,
		&row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if parseMethod != nil {
		row.ParseMethod = types.ParseMethod(*parseMethod)
	}
	return &row, nil
}

// GetConversationByWorkItem finds the conversation generated for a work item,
// if one exists. Used for retry-safety: an existing raw artifact means the
// provider is not called again.
func (db *DB) GetConversationByWorkItem(ctx context.Context, workItemID uuid.UUID) (*ConversationRow, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM conversations WHERE work_item_id = $1`,
		workItemID,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up conversation for work item: %w", err)
	}
	return db.GetConversation(ctx, id)
}

// MarkConversationParsed records the parse outcome: the final blob key and
// parse method on success, or needs_review on parse failure. The raw blob key
// is never touched.
func (db *DB) MarkConversationParsed(ctx context.Context, id uuid.UUID, status string, finalBlobKey *string, method types.ParseMethod) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE conversations
		 SET status = $1, final_blob_key = $2, parse_method = $3, updated_at = NOW()
		 WHERE id = $4`,
		status, finalBlobKey, method, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark conversation parsed: %w", err)
	}
	return nil
}
