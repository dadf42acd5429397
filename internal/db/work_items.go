package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// CreateWorkItems inserts the work items for a batch at submission time.
// Items start queued; position preserves the caller's ordering.
func (db *DB) CreateWorkItems(ctx context.Context, batchID uuid.UUID, specs []types.WorkItemSpec) ([]types.WorkItem, error) {
	items := make([]types.WorkItem, 0, len(specs))
	for i, spec := range specs {
		var paramsJSON []byte
		if spec.Parameters != nil {
			var err error
			paramsJSON, err = json.Marshal(spec.Parameters)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal parameters for item %d: %w", i, err)
			}
		}

		var item types.WorkItem
		err := db.pool.QueryRow(ctx,
			`INSERT INTO work_items (batch_id, position, topic, tier, template_id, parameters, status)
			 VALUES ($1, $2, $3, $4, $5, $6, 'queued')
			 RETURNING id, batch_id, position, topic, tier, template_id, status`,
			batchID, i, spec.Topic, spec.Tier, spec.TemplateID, paramsJSON,
		).Scan(&item.ID, &item.BatchID, &item.Position, &item.Topic, &item.Tier, &item.TemplateID, &item.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to create work item %d: %w", i, err)
		}
		item.Parameters = spec.Parameters
		items = append(items, item)
	}
	return items, nil
}

// ListWorkItems returns all items of a batch ordered by position
func (db *DB) ListWorkItems(ctx context.Context, batchID uuid.UUID) ([]types.WorkItem, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, batch_id, position, topic, tier, template_id, parameters, status, result_ref, error_message
		 FROM work_items WHERE batch_id = $1 ORDER BY position`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	var items []types.WorkItem
	for rows.Next() {
		var item types.WorkItem
		var paramsJSON []byte
		if err := rows.Scan(&item.ID, &item.BatchID, &item.Position, &item.Topic, &item.Tier,
			&item.TemplateID, &paramsJSON, &item.Status, &item.ResultRef, &item.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		if paramsJSON != nil {
			_ = json.Unmarshal(paramsJSON, &item.Parameters)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetWorkItemStatus transitions one item's status, optionally attaching a
// result reference or error message
func (db *DB) SetWorkItemStatus(ctx context.Context, itemID uuid.UUID, status types.ItemStatus, resultRef *uuid.UUID, errorMessage *string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE work_items
		 SET status = $1, result_ref = COALESCE($2, result_ref),
		     error_message = COALESCE($3, error_message), updated_at = NOW()
		 WHERE id = $4`,
		status, resultRef, errorMessage, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to set work item status: %w", err)
	}
	return nil
}

// CancelQueuedItems marks all still-queued items of a batch cancelled and
// returns how many were affected. In-flight items are left to finish.
func (db *DB) CancelQueuedItems(ctx context.Context, batchID uuid.UUID) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE work_items SET status = 'cancelled', updated_at = NOW()
		 WHERE batch_id = $1 AND status = 'queued'`,
		batchID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel queued items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
