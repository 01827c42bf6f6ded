package apikey

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestRowToResponse(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	row := Row{
		ID:          id,
		KeyPrefix:   "bn_abc123de",
		Description: "CI deploy key",
		CreatedAt:   created,
	}
	resp := row.ToResponse()

	if resp.ID != id || resp.KeyPrefix != "bn_abc123de" || resp.Description != "CI deploy key" {
		t.Errorf("ToResponse() = %+v, unexpected", resp)
	}
	if resp.LastUsed != nil {
		t.Errorf("LastUsed = %v, want nil for an invalid timestamptz", resp.LastUsed)
	}
	if resp.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil for an invalid timestamptz", resp.ExpiresAt)
	}
}

func TestRowToResponseWithOptionalFields(t *testing.T) {
	lastUsed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	row := Row{
		ID:        uuid.New(),
		LastUsed:  pgtype.Timestamptz{Time: lastUsed, Valid: true},
		ExpiresAt: pgtype.Timestamptz{Time: expires, Valid: true},
	}
	resp := row.ToResponse()

	if resp.LastUsed == nil || !resp.LastUsed.Equal(lastUsed) {
		t.Errorf("LastUsed = %v, want %v", resp.LastUsed, lastUsed)
	}
	if resp.ExpiresAt == nil || !resp.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", resp.ExpiresAt, expires)
	}
}
