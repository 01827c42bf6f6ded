// Package billing exposes the project-facing read/write billing surface:
// current usage and limits, usage tracking, and a thin checkout passthrough
// to Commerce. The hard accounting logic lives in usage, subscription, sync,
// and webhook; this package only wires them to HTTP.
package billing

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanzoai/bootnode/internal/auth"
	"github.com/hanzoai/bootnode/internal/httpserver"
	"github.com/hanzoai/bootnode/pkg/billing/commerce"
	"github.com/hanzoai/bootnode/pkg/billing/subscription"
	"github.com/hanzoai/bootnode/pkg/billing/tiers"
	"github.com/hanzoai/bootnode/pkg/billing/usage"
)

// UsageResponse is the wire shape of GET /billing/usage.
type UsageResponse struct {
	Tier               tiers.Tier `json:"tier"`
	MonthlyCULimit     int64      `json:"monthly_cu_limit"`
	CurrentCU          int64      `json:"current_cu"`
	RateLimitPerSecond int        `json:"rate_limit_per_second"`
}

// CheckoutRequest is the wire shape of POST /billing/checkout.
type CheckoutRequest struct {
	PlanSlug string `json:"plan_slug" validate:"required"`
}

// Handler provides HTTP handlers for the project-facing billing surface.
type Handler struct {
	logger   *slog.Logger
	subs     *subscription.Store
	tracker  *usage.Tracker
	commerce *commerce.Client
}

// NewHandler creates a billing Handler.
func NewHandler(logger *slog.Logger, subs *subscription.Store, tracker *usage.Tracker, commerceClient *commerce.Client) *Handler {
	return &Handler{logger: logger, subs: subs, tracker: tracker, commerce: commerceClient}
}

// Routes returns a chi.Router with the project-facing billing routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/usage", h.handleUsage)
	r.Post("/usage/track", h.handleTrack)
	r.Post("/checkout", h.handleCheckout)
	return r
}

// TrackRequest is the wire shape of POST /billing/usage/track — called by
// the RPC gateway fronting a network to account for one proxied call
// against the project's quota and rate limit. Proxying the RPC call itself
// is out of scope here; this is only the quota/rate gate and CU ledger the
// gateway consults before (or in parallel with) forwarding the request.
type TrackRequest struct {
	Method         string `json:"method" validate:"required"`
	ChainID        int64  `json:"chain_id" validate:"required"`
	Network        string `json:"network" validate:"required"`
	ResponseTimeMs int    `json:"response_time_ms"`
	StatusCode     int    `json:"status_code"`
}

// TrackResponse reports the gate decision for one call.
type TrackResponse struct {
	Allowed                    bool  `json:"allowed"`
	RemainingRequestsPerSecond int   `json:"remaining_requests_per_second"`
	CurrentCU                  int64 `json:"current_cu"`
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req TrackRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	sub, err := h.subs.GetByProjectID(r.Context(), id.ProjectID)
	if err != nil {
		h.logger.Error("loading subscription", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load subscription")
		return
	}

	allowed, remaining, err := h.tracker.CheckRateLimit(r.Context(), id.ProjectID, sub.Tier)
	if err != nil {
		h.logger.Error("checking rate limit", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to check rate limit")
		return
	}
	if !allowed {
		httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		return
	}

	withinQuota, err := h.tracker.CheckQuota(r.Context(), id.ProjectID, sub.Tier)
	if err != nil {
		h.logger.Error("checking quota", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to check quota")
		return
	}
	if !withinQuota {
		httpserver.RespondError(w, http.StatusPaymentRequired, "quota_exceeded", "monthly compute unit quota exceeded")
		return
	}

	apiKeyID := id.APIKeyID
	if err := h.tracker.Track(r.Context(), usage.TrackParams{
		ProjectID:      id.ProjectID,
		Method:         req.Method,
		APIKeyID:       &apiKeyID,
		ChainID:        req.ChainID,
		Network:        req.Network,
		ResponseTimeMs: req.ResponseTimeMs,
		StatusCode:     req.StatusCode,
		IPAddress:      requestIP(r),
		UserAgent:      r.Header.Get("User-Agent"),
	}); err != nil {
		h.logger.Error("tracking usage", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to track usage")
		return
	}

	current, err := h.tracker.CurrentUsage(r.Context(), id.ProjectID)
	if err != nil {
		h.logger.Error("reading current usage", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to read usage")
		return
	}

	httpserver.Respond(w, http.StatusOK, TrackResponse{
		Allowed:                    true,
		RemainingRequestsPerSecond: remaining,
		CurrentCU:                  current,
	})
}

// requestIP strips the port from RemoteAddr, falling back to the raw value
// if it isn't a host:port pair.
func requestIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	sub, err := h.subs.GetByProjectID(r.Context(), id.ProjectID)
	if err != nil {
		h.logger.Error("loading subscription", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load subscription")
		return
	}

	current, err := h.tracker.CurrentUsage(r.Context(), id.ProjectID)
	if err != nil {
		h.logger.Error("reading current usage", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to read usage")
		return
	}

	limits := tiers.Get(sub.Tier)
	httpserver.Respond(w, http.StatusOK, UsageResponse{
		Tier:               sub.Tier,
		MonthlyCULimit:     limits.MonthlyCU,
		CurrentCU:          current,
		RateLimitPerSecond: limits.RateLimitPerSecond,
	})
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req CheckoutRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	sub, err := h.subs.GetByProjectID(r.Context(), id.ProjectID)
	if err != nil {
		h.logger.Error("loading subscription", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load subscription")
		return
	}
	if sub.HanzoCustomerID == nil {
		httpserver.RespondError(w, http.StatusConflict, "no_customer", "project has no Commerce customer on file")
		return
	}

	checkout, err := h.commerce.CreateCheckout(r.Context(), *sub.HanzoCustomerID, req.PlanSlug, map[string]string{
		"project_id": id.ProjectID.String(),
	})
	if err != nil {
		h.logger.Error("creating checkout", "error", err, "project_id", id.ProjectID)
		httpserver.RespondError(w, http.StatusBadGateway, "commerce_error", "failed to create checkout")
		return
	}

	httpserver.Respond(w, http.StatusCreated, checkout)
}
