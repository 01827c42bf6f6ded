package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestHashAPIKey(t *testing.T) {
	h1 := HashAPIKey("test-key-123")
	h2 := HashAPIKey("test-key-123")
	if h1 != h2 {
		t.Fatalf("same key produced different hashes: %q vs %q", h1, h2)
	}

	h3 := HashAPIKey("different-key")
	if h1 == h3 {
		t.Fatal("different keys produced the same hash")
	}

	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h1))
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	if id := FromContext(ctx); id != nil {
		t.Fatalf("expected nil, got %+v", id)
	}

	identity := &Identity{
		ProjectID: uuid.New(),
		APIKeyID:  uuid.New(),
		KeyPrefix: "bn_abc123",
	}
	ctx = NewContext(ctx, identity)

	got := FromContext(ctx)
	if got == nil {
		t.Fatal("expected identity, got nil")
	}
	if got.ProjectID != identity.ProjectID {
		t.Errorf("ProjectID = %v, want %v", got.ProjectID, identity.ProjectID)
	}
	if got.KeyPrefix != "bn_abc123" {
		t.Errorf("KeyPrefix = %q, want %q", got.KeyPrefix, "bn_abc123")
	}
}
