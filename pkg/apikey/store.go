package apikey

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const apiKeyColumns = `id, project_id, key_hash, key_prefix, description, last_used, expires_at, created_at`

// Store provides database operations for API keys using the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an API key Store backed by the given global connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateParams holds parameters for creating an API key.
type CreateParams struct {
	ProjectID   uuid.UUID
	KeyHash     string
	KeyPrefix   string
	Description string
	ExpiresAt   pgtype.Timestamptz
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(
		&r.ID, &r.ProjectID, &r.KeyHash, &r.KeyPrefix, &r.Description,
		&r.LastUsed, &r.ExpiresAt, &r.CreatedAt,
	)
	return r, err
}

func scanRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	var items []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}
	return items, nil
}

// List returns all API keys for the given project.
func (s *Store) List(ctx context.Context, projectID uuid.UUID) ([]Row, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM public.api_keys WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	return scanRows(rows)
}

// Create inserts a new API key and returns the created row.
func (s *Store) Create(ctx context.Context, p CreateParams) (Row, error) {
	query := `INSERT INTO public.api_keys (project_id, key_hash, key_prefix, description, expires_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + apiKeyColumns

	row := s.pool.QueryRow(ctx, query, p.ProjectID, p.KeyHash, p.KeyPrefix, p.Description, p.ExpiresAt)
	return scanRow(row)
}

// Delete permanently removes an API key scoped to a project.
func (s *Store) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	query := `DELETE FROM public.api_keys WHERE id = $1 AND project_id = $2`
	tag, err := s.pool.Exec(ctx, query, id, projectID)
	if err != nil {
		return fmt.Errorf("deleting api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
