package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Identity represents the project an authenticated request acts as. Bootnode
// has no user accounts or roles — every request is scoped to a project
// through its API key.
type Identity struct {
	ProjectID uuid.UUID
	APIKeyID  uuid.UUID
	KeyPrefix string
}

type contextKey string

const identityKey contextKey = "identity"

// NewContext returns a context carrying the given identity.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity stored by NewContext, or nil if none.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// HashAPIKey returns the SHA-256 hex digest of a raw API key. Only the hash
// is ever persisted; the raw key is shown to the caller once, at creation.
func HashAPIKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
