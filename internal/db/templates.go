package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateTemplate stores a prompt template and returns its ID
func (db *DB) CreateTemplate(ctx context.Context, name, body string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO templates (name, body) VALUES ($1, $2) RETURNING id`,
		name, body,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create template: %w", err)
	}
	return id, nil
}

// GetTemplateBody retrieves a template body by ID
func (db *DB) GetTemplateBody(ctx context.Context, id uuid.UUID) (string, error) {
	var body string
	err := db.pool.QueryRow(ctx,
		`SELECT body FROM templates WHERE id = $1`,
		id,
	).Scan(&body)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("template %s not found", id)
		}
		return "", fmt.Errorf("failed to get template: %w", err)
	}
	return body, nil
}

// GetReference retrieves one reference-data record (persona, emotional arc,
// topic) by kind and ID. Returns nil when not found.
func (db *DB) GetReference(ctx context.Context, kind, id string) (*ReferenceRow, error) {
	var row ReferenceRow
	err := db.pool.QueryRow(ctx,
		`SELECT id, kind, attributes FROM reference_data WHERE kind = $1 AND id = $2`,
		kind, id,
	).Scan(&row.ID, &row.Kind, &row.Attributes)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s reference %s: %w", kind, id, err)
	}
	return &row, nil
}
