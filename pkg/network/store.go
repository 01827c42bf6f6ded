package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const networkColumns = `id, slug, name, chain_id, genesis_url, cluster_id, namespace, release_name, domain, web_replicas, api_replicas, validator_count, created_at, updated_at`

// Store is the Postgres-backed network registry, keyed by slug.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a network Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanNetwork(row pgx.Row) (Network, error) {
	var n Network
	var releaseName string
	err := row.Scan(
		&n.ID, &n.Slug, &n.Name, &n.ChainID, &n.GenesisURL, &n.ClusterID,
		&n.Namespace, &releaseName, &n.Domain, &n.WebReplicas, &n.APIReplicas,
		&n.ValidatorCount, &n.CreatedAt, &n.UpdatedAt,
	)
	return n, err
}

func scanNetworkWithCount(row pgx.Row) (Network, int, error) {
	var n Network
	var releaseName string
	var total int
	err := row.Scan(
		&n.ID, &n.Slug, &n.Name, &n.ChainID, &n.GenesisURL, &n.ClusterID,
		&n.Namespace, &releaseName, &n.Domain, &n.WebReplicas, &n.APIReplicas,
		&n.ValidatorCount, &n.CreatedAt, &n.UpdatedAt, &total,
	)
	return n, total, err
}

// CreateParams are the fields supplied when launching a new network.
type CreateParams struct {
	Slug           string
	Name           string
	ChainID        int64
	GenesisURL     string
	ClusterID      string
	Namespace      string
	Domain         string
	WebReplicas    int
	APIReplicas    int
	ValidatorCount int
}

// Create inserts a new network registry row. The caller renders and applies
// manifests separately; Create only persists the record. Returns
// ErrAlreadyExists if the slug is already registered.
func (s *Store) Create(ctx context.Context, p CreateParams) (Network, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO public.networks (slug, name, chain_id, genesis_url, cluster_id, namespace, release_name, domain, web_replicas, api_replicas, validator_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+networkColumns,
		p.Slug, p.Name, p.ChainID, p.GenesisURL, p.ClusterID, p.Namespace, ClientIDForSlug(p.Slug), p.Domain,
		p.WebReplicas, p.APIReplicas, p.ValidatorCount,
	)
	n, err := scanNetwork(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Network{}, ErrAlreadyExists
		}
		return Network{}, err
	}
	return n, nil
}

// GetBySlug looks up a network by slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (Network, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+networkColumns+` FROM public.networks WHERE slug = $1`, slug)
	n, err := scanNetwork(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Network{}, ErrNotFound
	}
	return n, err
}

// GetByID looks up a network by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Network, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+networkColumns+` FROM public.networks WHERE id = $1`, id)
	n, err := scanNetwork(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Network{}, ErrNotFound
	}
	return n, err
}

// List returns every registered network, newest first, paginated by limit and
// offset. It also returns the total row count so the caller can compute page
// totals without a second round trip.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Network, int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+networkColumns+`, count(*) OVER() AS total_count
		FROM public.networks ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing networks: %w", err)
	}
	defer rows.Close()

	var out []Network
	var total int
	for rows.Next() {
		n, t, err := scanNetworkWithCount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning network row: %w", err)
		}
		out = append(out, n)
		total = t
	}
	return out, total, rows.Err()
}

// UpdateWebReplicas applies a web-replica scale — the only dimension Scale
// currently touches.
func (s *Store) UpdateWebReplicas(ctx context.Context, slug string, webReplicas int) (Network, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE public.networks SET web_replicas = $2, updated_at = now()
		WHERE slug = $1 RETURNING `+networkColumns, slug, webReplicas)
	return scanNetwork(row)
}

// Delete removes a network's registry row. The caller is responsible for
// sweeping its Kubernetes resources first.
func (s *Store) Delete(ctx context.Context, slug string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM public.networks WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("deleting network: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ErrNotFound is returned when a network slug or id has no registry row.
var ErrNotFound = fmt.Errorf("network not found")

// ErrAlreadyExists is returned by Create when the slug is already registered.
var ErrAlreadyExists = fmt.Errorf("network already exists")
