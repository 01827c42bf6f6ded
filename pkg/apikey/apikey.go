package apikey

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateRequest is the JSON body for POST /api/v1/api-keys.
type CreateRequest struct {
	Description string `json:"description" validate:"required"`
}

// Response is the JSON response for a single API key (without the raw key).
type Response struct {
	ID          uuid.UUID  `json:"id"`
	KeyPrefix   string     `json:"key_prefix"`
	Description string     `json:"description"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateResponse includes the raw key (only shown once at creation).
type CreateResponse struct {
	Response
	RawKey string `json:"raw_key"`
}

// Row represents a row returned from the public.api_keys table.
type Row struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	KeyHash     string
	KeyPrefix   string
	Description string
	LastUsed    pgtype.Timestamptz
	ExpiresAt   pgtype.Timestamptz
	CreatedAt   time.Time
}

// ToResponse converts a Row to a Response DTO.
func (r *Row) ToResponse() Response {
	resp := Response{
		ID:          r.ID,
		KeyPrefix:   r.KeyPrefix,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
	if r.LastUsed.Valid {
		t := r.LastUsed.Time
		resp.LastUsed = &t
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	return resp
}
