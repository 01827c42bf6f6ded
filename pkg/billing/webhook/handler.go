// Package webhook handles inbound webhooks from Hanzo Commerce: order,
// subscription, invoice, and payment lifecycle events.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hanzoai/bootnode/internal/telemetry"
	"github.com/hanzoai/bootnode/pkg/billing/subscription"
	"github.com/hanzoai/bootnode/pkg/billing/tiers"
)

// planToTier maps Commerce plan slugs to internal pricing tiers.
var planToTier = map[string]tiers.Tier{
	"bootnode-free":       tiers.Free,
	"bootnode-payg":       tiers.PayAsYouGo,
	"bootnode-growth":     tiers.Growth,
	"bootnode-enterprise": tiers.Enterprise,
}

func tierForPlan(planSlug string) tiers.Tier {
	if t, ok := planToTier[planSlug]; ok {
		return t
	}
	return tiers.Free
}

// ErrBadSignature is returned by VerifySignature when the payload's HMAC
// does not match the X-Commerce-Signature header.
var ErrBadSignature = fmt.Errorf("webhook signature verification failed")

// Event is a parsed Commerce webhook payload.
type Event struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Result is the outcome of dispatching a single webhook event.
type Result struct {
	Handled   bool           `json:"handled"`
	EventType string         `json:"event_type"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// Handler verifies and dispatches Commerce webhook events.
type Handler struct {
	secret  string
	subs    *subscription.Store
	redis   *redis.Client
	logger  *slog.Logger
}

// NewHandler creates a webhook Handler. An empty secret disables signature
// verification, matching Commerce's own dev-mode behavior.
func NewHandler(secret string, subs *subscription.Store, rdb *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{secret: secret, subs: subs, redis: rdb, logger: logger}
}

// VerifySignature checks payload against the X-Commerce-Signature header
// using HMAC-SHA256. If no webhook secret is configured, verification is
// skipped — this only happens in local/dev environments.
func (h *Handler) VerifySignature(payload []byte, signature string) bool {
	if h.secret == "" {
		h.logger.Warn("commerce webhook secret not configured, skipping verification")
		return true
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleEvent routes a webhook event to its handler. Handler errors are
// captured as data, not propagated — a webhook failure must never bubble up
// as an HTTP 5xx once the event itself parsed successfully, since Commerce
// will otherwise retry an event whose side effects already partially landed.
func (h *Handler) HandleEvent(ctx context.Context, event Event) Result {
	h.logger.Info("processing commerce webhook", "event_type", event.Type, "event_id", event.ID)

	fn, ok := dispatch[event.Type]
	if !ok {
		h.logger.Debug("unhandled webhook event type", "event_type", event.Type)
		telemetry.WebhookEventsTotal.WithLabelValues(event.Type, "false").Inc()
		return Result{Handled: false, EventType: event.Type, Reason: "unknown_type"}
	}

	result, err := fn(ctx, h, event.Data)
	if err != nil {
		h.logger.Error("webhook handler failed", "event_type", event.Type, "error", err)
		telemetry.WebhookEventsTotal.WithLabelValues(event.Type, "false").Inc()
		return Result{Handled: false, EventType: event.Type, Error: err.Error()}
	}

	telemetry.WebhookEventsTotal.WithLabelValues(event.Type, "true").Inc()
	return Result{Handled: true, EventType: event.Type, Result: result}
}

type eventFunc func(ctx context.Context, h *Handler, data json.RawMessage) (map[string]any, error)

var dispatch = map[string]eventFunc{
	"order.completed":           handleOrderCompleted,
	"order.cancelled":           handleOrderCancelled,
	"subscription.created":      handleSubscriptionCreated,
	"subscription.updated":      handleSubscriptionUpdated,
	"subscription.cancelled":    handleSubscriptionCancelled,
	"subscription.reactivated":  handleSubscriptionReactivated,
	"invoice.paid":              handleInvoicePaid,
	"invoice.payment_failed":    handleInvoiceFailed,
	"payment.paid":              handlePaymentPaid,
	"payment.failed":            handlePaymentFailed,
	"payment.refunded":          handlePaymentRefunded,
	"customer.created":          handleCustomerCreated,
	"customer.updated":          handleCustomerUpdated,
}

type subscriptionEventData struct {
	ID               string            `json:"id"`
	CustomerID       string            `json:"customer_id"`
	PlanSlug         string            `json:"plan_slug"`
	Status           string            `json:"status"`
	Immediately      bool              `json:"immediately"`
	CurrentPeriodEnd string            `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

func handleSubscriptionCreated(ctx context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	var data subscriptionEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding subscription.created payload: %w", err)
	}

	projectIDStr := data.Metadata["project_id"]
	if projectIDStr == "" {
		h.logger.Warn("no project_id in subscription metadata", "subscription_id", data.ID)
		return map[string]any{"error": "missing_project_id"}, nil
	}
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		h.logger.Error("invalid project_id format", "project_id", projectIDStr)
		return map[string]any{"error": "invalid_project_id"}, nil
	}

	tier := tierForPlan(data.PlanSlug)

	var periodEnd *time.Time
	if data.CurrentPeriodEnd != "" {
		if t, err := time.Parse(time.RFC3339, data.CurrentPeriodEnd); err == nil {
			periodEnd = &t
		}
	}

	subID := data.ID
	customerID := data.CustomerID
	if _, err := h.subs.Upsert(ctx, subscription.UpsertParams{
		ProjectID:           projectID,
		Tier:                tier,
		HanzoCustomerID:     &customerID,
		HanzoSubscriptionID: &subID,
		BillingCycleEnd:     periodEnd,
	}); err != nil {
		return nil, fmt.Errorf("upserting subscription: %w", err)
	}

	h.invalidateCache(ctx, projectID)

	h.logger.Info("subscription created/updated from webhook",
		"project_id", projectID, "subscription_id", data.ID, "tier", tier)

	return map[string]any{"project_id": projectID.String(), "tier": string(tier)}, nil
}

func handleSubscriptionUpdated(ctx context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	var data subscriptionEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding subscription.updated payload: %w", err)
	}

	sub, err := h.subs.GetByHanzoSubscriptionID(ctx, data.ID)
	if err != nil {
		h.logger.Warn("subscription not found for update", "subscription_id", data.ID)
		return map[string]any{"error": "subscription_not_found"}, nil
	}

	tier := tierForPlan(data.PlanSlug)

	var periodEnd *time.Time
	if data.CurrentPeriodEnd != "" {
		if t, err := time.Parse(time.RFC3339, data.CurrentPeriodEnd); err == nil {
			periodEnd = &t
		}
	}

	if _, err := h.subs.Upsert(ctx, subscription.UpsertParams{
		ProjectID:           sub.ProjectID,
		Tier:                tier,
		HanzoCustomerID:     sub.HanzoCustomerID,
		HanzoSubscriptionID: &data.ID,
		BillingCycleEnd:     periodEnd,
	}); err != nil {
		return nil, fmt.Errorf("updating subscription: %w", err)
	}

	h.invalidateCache(ctx, sub.ProjectID)

	h.logger.Info("subscription updated from webhook", "subscription_id", data.ID, "tier", tier)
	return map[string]any{"subscription_id": data.ID, "tier": string(tier)}, nil
}

func handleSubscriptionCancelled(ctx context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	var data subscriptionEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding subscription.cancelled payload: %w", err)
	}

	sub, err := h.subs.GetByHanzoSubscriptionID(ctx, data.ID)
	if err != nil {
		h.logger.Warn("subscription not found for cancellation", "subscription_id", data.ID)
		return map[string]any{"error": "subscription_not_found"}, nil
	}

	if data.Immediately {
		if _, err := h.subs.UpdateTier(ctx, sub.ProjectID, tiers.Free, true); err != nil {
			return nil, fmt.Errorf("downgrading subscription to free: %w", err)
		}
	} else {
		if _, err := h.subs.ScheduleTierChange(ctx, sub.ProjectID, tiers.Free); err != nil {
			return nil, fmt.Errorf("scheduling tier change: %w", err)
		}
	}

	h.invalidateCache(ctx, sub.ProjectID)

	h.logger.Info("subscription cancelled from webhook", "subscription_id", data.ID, "immediately", data.Immediately)
	return map[string]any{"subscription_id": data.ID, "immediately": data.Immediately}, nil
}

func handleSubscriptionReactivated(ctx context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	var data subscriptionEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding subscription.reactivated payload: %w", err)
	}

	sub, err := h.subs.GetByHanzoSubscriptionID(ctx, data.ID)
	if err != nil {
		return map[string]any{"error": "subscription_not_found"}, nil
	}

	tier := tierForPlan(data.PlanSlug)
	if _, err := h.subs.UpdateTier(ctx, sub.ProjectID, tier, false); err != nil {
		return nil, fmt.Errorf("reactivating subscription: %w", err)
	}

	h.invalidateCache(ctx, sub.ProjectID)

	h.logger.Info("subscription reactivated from webhook", "subscription_id", data.ID, "tier", tier)
	return map[string]any{"subscription_id": data.ID, "tier": string(tier)}, nil
}

// handleOrderCompleted treats a completed order carrying plan_slug+project_id
// metadata the same way a subscription.created event is handled — the order
// path exists for one-time/PAYG signup flows that don't go through the
// subscription API.
func handleOrderCompleted(ctx context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return handleSubscriptionCreated(ctx, h, raw)
}

// The remaining event types have no local state to mutate — they are logged
// for observability only, matching the source handler's log-only behavior.

func handleOrderCancelled(_ context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return logOnly(h, "order.cancelled", raw)
}

func handleInvoicePaid(_ context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return logOnly(h, "invoice.paid", raw)
}

func handleInvoiceFailed(_ context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return logOnly(h, "invoice.payment_failed", raw)
}

func handlePaymentPaid(_ context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return logOnly(h, "payment.paid", raw)
}

func handlePaymentFailed(_ context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return logOnly(h, "payment.failed", raw)
}

func handlePaymentRefunded(_ context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return logOnly(h, "payment.refunded", raw)
}

func handleCustomerCreated(_ context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return logOnly(h, "customer.created", raw)
}

func handleCustomerUpdated(_ context.Context, h *Handler, raw json.RawMessage) (map[string]any, error) {
	return logOnly(h, "customer.updated", raw)
}

func logOnly(h *Handler, eventType string, raw json.RawMessage) (map[string]any, error) {
	h.logger.Info("commerce webhook event (log only)", "event_type", eventType, "data", string(raw))
	return map[string]any{"logged": true}, nil
}

// invalidateCache drops the cached subscription JSON for a project so the
// next read picks up the write this event just made.
func (h *Handler) invalidateCache(ctx context.Context, projectID uuid.UUID) {
	key := fmt.Sprintf("billing:subscription:%s", projectID)
	if err := h.redis.Del(ctx, key).Err(); err != nil {
		h.logger.Warn("invalidating subscription cache", "error", err, "project_id", projectID)
	}
}
