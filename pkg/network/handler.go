package network

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hanzoai/bootnode/internal/audit"
	"github.com/hanzoai/bootnode/internal/httpserver"
	"github.com/hanzoai/bootnode/internal/telemetry"
)

// LaunchRequest is the wire shape of POST /networks.
type LaunchRequest struct {
	Slug           string `json:"slug" validate:"required,min=2,max=63,dns_label"`
	Name           string `json:"name" validate:"required"`
	ChainID        int64  `json:"chain_id" validate:"required"`
	GenesisURL     string `json:"genesis_url" validate:"required,url"`
	ClusterID      string `json:"cluster_id" validate:"required"`
	Namespace      string `json:"namespace" validate:"required,dns_label"`
	Domain         string `json:"domain" validate:"required"`
	Brand          string `json:"brand"`
	WebImage       string `json:"web_image" validate:"required"`
	APIServiceName string `json:"api_service_name" validate:"required"`
	APIServicePort int    `json:"api_service_port" validate:"required"`
	IAMClientID    string `json:"iam_client_id"`
	APIURL         string `json:"api_url"`
	WSURL          string `json:"ws_url"`
	Tier           string `json:"tier" validate:"required,oneof=starter pro enterprise"`
	WithValidators bool   `json:"with_validators"`
}

// ScaleRequest is the wire shape of POST /networks/{slug}/scale. api_replicas
// and validator_count are accepted but silently ignored — Scale only ever
// applies web_replicas, matching the original launcher's observed behavior.
type ScaleRequest struct {
	WebReplicas    int `json:"web_replicas" validate:"required,min=0,max=20"`
	APIReplicas    int `json:"api_replicas"`
	ValidatorCount int `json:"validator_count"`
}

// Handler provides HTTP handlers for the Network Launcher API.
type Handler struct {
	logger   *slog.Logger
	audit    *audit.Writer
	launcher *Launcher

	cloudDomains []string
}

// NewHandler creates a network Handler.
func NewHandler(logger *slog.Logger, audit *audit.Writer, launcher *Launcher, cloudDomains []string) *Handler {
	return &Handler{logger: logger, audit: audit, launcher: launcher, cloudDomains: cloudDomains}
}

// Routes returns a chi.Router with all network routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleLaunch)
	r.Get("/", h.handleList)
	r.Get("/{slug}", h.handleGet)
	r.Post("/{slug}/scale", h.handleScale)
	r.Delete("/{slug}", h.handleDelete)
	return r
}

func (h *Handler) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req LaunchRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	n, err := h.launcher.Launch(r.Context(), LaunchParams{
		Slug:           req.Slug,
		Name:           req.Name,
		ChainID:        req.ChainID,
		GenesisURL:     req.GenesisURL,
		ClusterID:      req.ClusterID,
		Namespace:      req.Namespace,
		Domain:         req.Domain,
		Brand:          req.Brand,
		WebImage:       req.WebImage,
		APIServiceName: req.APIServiceName,
		APIServicePort: req.APIServicePort,
		IAMClientID:    req.IAMClientID,
		APIURL:         req.APIURL,
		WSURL:          req.WSURL,
		Tier:           Tier(req.Tier),
		WithValidators: req.WithValidators,
		CloudDomains:   h.cloudDomains,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			httpserver.RespondError(w, http.StatusConflict, "already_exists", "network already exists")
			return
		}
		telemetry.FleetOperationsTotal.WithLabelValues("network_launch", "error").Inc()
		h.logger.Error("launching network", "error", err, "slug", req.Slug)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to launch network")
		return
	}

	result := "ok"
	if n.Status == StatusError {
		result = "error"
	}
	telemetry.FleetOperationsTotal.WithLabelValues("network_launch", result).Inc()

	if h.audit != nil {
		h.audit.LogFromRequest(r, "launch", "network", n.ID, nil)
	}

	httpserver.Respond(w, http.StatusCreated, n)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	networks, total, err := h.launcher.List(r.Context(), params.PageSize, params.Offset)
	if err != nil {
		h.logger.Error("listing networks", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list networks")
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(networks, params, total))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	n, err := h.launcher.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "network not found")
			return
		}
		h.logger.Error("getting network", "error", err, "slug", slug)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get network")
		return
	}
	httpserver.Respond(w, http.StatusOK, n)
}

func (h *Handler) handleScale(w http.ResponseWriter, r *http.Request) {
	var req ScaleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	slug := chi.URLParam(r, "slug")
	n, err := h.launcher.Scale(r.Context(), slug, req.WebReplicas)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "network not found")
			return
		}
		h.logger.Error("scaling network", "error", err, "slug", slug)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to scale network")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "scale", "network", n.ID, nil)
	}

	httpserver.Respond(w, http.StatusOK, n)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.launcher.Delete(r.Context(), slug); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "network not found")
			return
		}
		h.logger.Error("deleting network", "error", err, "slug", slug)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete network")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "delete", "network", uuid.Nil, nil)
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
