// Package subscription holds the SQL-authoritative Subscription record and
// its store. It backs both the Commerce webhook handler (which writes it)
// and the usage sync worker (which reads it to know which projects are PAYG
// and which Commerce subscription to report usage against).
package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanzoai/bootnode/pkg/billing/tiers"
)

// Row is a row of public.subscriptions.
type Row struct {
	ID                  uuid.UUID
	ProjectID           uuid.UUID
	Tier                tiers.Tier
	ScheduledTier       *tiers.Tier
	HanzoCustomerID     *string
	HanzoSubscriptionID *string
	BillingCycleStart   *time.Time
	BillingCycleEnd     *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Store provides database operations for subscriptions using the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a subscription Store backed by the given global pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const columns = `id, project_id, tier, scheduled_tier, hanzo_customer_id, hanzo_subscription_id, billing_cycle_start, billing_cycle_end, created_at, updated_at`

func scan(row pgx.Row) (Row, error) {
	var (
		r                   Row
		tier                string
		scheduledTier       *string
		hanzoCustomerID     *string
		hanzoSubscriptionID *string
	)
	err := row.Scan(
		&r.ID, &r.ProjectID, &tier, &scheduledTier, &hanzoCustomerID, &hanzoSubscriptionID,
		&r.BillingCycleStart, &r.BillingCycleEnd, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return Row{}, err
	}
	r.Tier = tiers.Tier(tier)
	r.HanzoCustomerID = hanzoCustomerID
	r.HanzoSubscriptionID = hanzoSubscriptionID
	if scheduledTier != nil {
		t := tiers.Tier(*scheduledTier)
		r.ScheduledTier = &t
	}
	return r, nil
}

// GetByProjectID looks up a project's subscription.
func (s *Store) GetByProjectID(ctx context.Context, projectID uuid.UUID) (Row, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM public.subscriptions WHERE project_id = $1`, projectID)
	return scan(row)
}

// GetByHanzoSubscriptionID looks up a subscription by its Commerce ID.
func (s *Store) GetByHanzoSubscriptionID(ctx context.Context, hanzoSubscriptionID string) (Row, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM public.subscriptions WHERE hanzo_subscription_id = $1`, hanzoSubscriptionID)
	return scan(row)
}

// UpsertParams are the fields set when a webhook creates or updates a
// project's subscription.
type UpsertParams struct {
	ProjectID           uuid.UUID
	Tier                tiers.Tier
	HanzoCustomerID     *string
	HanzoSubscriptionID *string
	BillingCycleEnd     *time.Time
}

// Upsert creates or updates the subscription row for a project, keyed by
// project_id.
func (s *Store) Upsert(ctx context.Context, p UpsertParams) (Row, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO public.subscriptions (project_id, tier, hanzo_customer_id, hanzo_subscription_id, billing_cycle_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (project_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			hanzo_customer_id = COALESCE(EXCLUDED.hanzo_customer_id, public.subscriptions.hanzo_customer_id),
			hanzo_subscription_id = COALESCE(EXCLUDED.hanzo_subscription_id, public.subscriptions.hanzo_subscription_id),
			billing_cycle_end = EXCLUDED.billing_cycle_end,
			updated_at = now()
		RETURNING `+columns,
		p.ProjectID, string(p.Tier), p.HanzoCustomerID, p.HanzoSubscriptionID, p.BillingCycleEnd,
	)
	return scan(row)
}

// UpdateTier sets the tier and, when clearHanzoSubscriptionID is true, also
// clears hanzo_subscription_id and scheduled_tier; used on immediate
// cancellation to reset a project back to free.
func (s *Store) UpdateTier(ctx context.Context, projectID uuid.UUID, tier tiers.Tier, clearHanzoSubscriptionID bool) (Row, error) {
	var row pgx.Row
	if clearHanzoSubscriptionID {
		row = s.pool.QueryRow(ctx, `
			UPDATE public.subscriptions SET tier = $2, hanzo_subscription_id = NULL, scheduled_tier = NULL, updated_at = now()
			WHERE project_id = $1 RETURNING `+columns, projectID, string(tier))
	} else {
		row = s.pool.QueryRow(ctx, `
			UPDATE public.subscriptions SET tier = $2, updated_at = now()
			WHERE project_id = $1 RETURNING `+columns, projectID, string(tier))
	}
	return scan(row)
}

// ScheduleTierChange sets scheduled_tier, applied at the next billing cycle
// boundary (e.g. a cancel-at-period-end event schedules a drop to free).
func (s *Store) ScheduleTierChange(ctx context.Context, projectID uuid.UUID, scheduled tiers.Tier) (Row, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE public.subscriptions SET scheduled_tier = $2, updated_at = now()
		WHERE project_id = $1 RETURNING `+columns, projectID, string(scheduled))
	return scan(row)
}

// ListPAYGWithCommerceID returns every PAYG subscription that has both a
// Commerce subscription ID and a Commerce customer ID on file — the set the
// usage sync worker reports against. A subscription that merely retains a
// stale hanzo_subscription_id from a prior PAYG period but has since moved
// to another tier must not re-enter the PAYG billing loop.
func (s *Store) ListPAYGWithCommerceID(ctx context.Context) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+columns+` FROM public.subscriptions
		WHERE tier = $1 AND hanzo_subscription_id IS NOT NULL AND hanzo_customer_id IS NOT NULL
		ORDER BY project_id`, string(tiers.PayAsYouGo))
	if err != nil {
		return nil, fmt.Errorf("listing payg subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
