package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrKeyNotFound is returned when no API key matches the given hash.
var ErrKeyNotFound = errors.New("api key not found")

// ErrKeyExpired is returned when a matched API key has passed its expiry.
var ErrKeyExpired = errors.New("api key expired")

// APIKeyAuthenticator validates raw API keys against public.api_keys.
type APIKeyAuthenticator struct {
	pool *pgxpool.Pool
}

// NewAPIKeyAuthenticator creates an authenticator backed by the global pool.
func NewAPIKeyAuthenticator(pool *pgxpool.Pool) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{pool: pool}
}

// Authenticate hashes the raw key, looks it up, and validates expiration.
// On success it touches last_used asynchronously and returns the resolved
// Identity.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, rawKey string) (*Identity, error) {
	if rawKey == "" {
		return nil, fmt.Errorf("empty API key")
	}

	hash := HashAPIKey(rawKey)

	var (
		id        uuid.UUID
		projectID uuid.UUID
		keyPrefix string
		expiresAt *time.Time
	)
	row := a.pool.QueryRow(ctx, `
		SELECT id, project_id, key_prefix, expires_at
		FROM public.api_keys
		WHERE key_hash = $1`, hash)

	if err := row.Scan(&id, &projectID, &keyPrefix, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("looking up api key: %w", err)
	}

	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, ErrKeyExpired
	}

	go func() {
		_, _ = a.pool.Exec(context.Background(),
			`UPDATE public.api_keys SET last_used = now() WHERE id = $1`, id)
	}()

	return &Identity{
		ProjectID: projectID,
		APIKeyID:  id,
		KeyPrefix: keyPrefix,
	}, nil
}
