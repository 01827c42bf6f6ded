package fleet

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hanzoai/bootnode/internal/audit"
	"github.com/hanzoai/bootnode/internal/httpserver"
	"github.com/hanzoai/bootnode/internal/telemetry"
)

// RestartResponse wraps the ordered list of pod names restarted.
type RestartResponse struct {
	RestartedPods []string `json:"restarted_pods"`
}

// Handler provides HTTP handlers for the Fleet Orchestrator API.
type Handler struct {
	logger *slog.Logger
	audit  *audit.Writer
	orch   *Orchestrator
}

// NewHandler creates a fleet Handler.
func NewHandler(logger *slog.Logger, audit *audit.Writer, orch *Orchestrator) *Handler {
	return &Handler{logger: logger, audit: audit, orch: orch}
}

// Routes returns a chi.Router with all fleet routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGetStatus)
	r.Get("/stats", h.handleStats)
	r.Patch("/{id}", h.handleUpdate)
	r.Post("/{id}/scale", h.handleScale)
	r.Delete("/{id}", h.handleDestroy)
	r.Post("/{id}/restart", h.handleRestart)
	r.Get("/{id}/pods/{pod}/logs", h.handlePodLogs)
	r.Post("/{id}/pods/{pod}/probe", h.handleProbe)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.orch.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			httpserver.RespondError(w, http.StatusConflict, "already_exists", "fleet already exists")
			return
		}
		telemetry.FleetOperationsTotal.WithLabelValues("fleet_create", "error").Inc()
		h.logger.Error("creating fleet", "error", err, "name", req.Name)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create fleet")
		return
	}

	result := "ok"
	if resp.Status == StatusError {
		result = "error"
	}
	telemetry.FleetOperationsTotal.WithLabelValues("fleet_create", result).Inc()

	if h.audit != nil {
		h.audit.LogFromRequest(r, "create", "fleet", uuid.Nil, nil)
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	resp, err := h.orch.Update(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrNotRegistered) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "fleet not found")
			return
		}
		h.logger.Error("updating fleet", "error", err, "fleet_id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update fleet")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "update", "fleet", uuid.Nil, nil)
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

// ScaleRequest is the wire shape of POST /fleets/{id}/scale.
type ScaleRequest struct {
	Replicas int `json:"replicas" validate:"required,min=1,max=20"`
}

func (h *Handler) handleScale(w http.ResponseWriter, r *http.Request) {
	var req ScaleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	resp, err := h.orch.Scale(r.Context(), id, req.Replicas)
	if err != nil {
		if errors.Is(err, ErrNotRegistered) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "fleet not found")
			return
		}
		h.logger.Error("scaling fleet", "error", err, "fleet_id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to scale fleet")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "scale", "fleet", uuid.Nil, nil)
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleDestroy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orch.Destroy(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotRegistered) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "fleet not found")
			return
		}
		h.logger.Error("destroying fleet", "error", err, "fleet_id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to destroy fleet")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "destroy", "fleet", uuid.Nil, nil)
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := h.orch.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotRegistered) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "fleet not found")
			return
		}
		h.logger.Error("getting fleet status", "error", err, "fleet_id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get fleet status")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	fleets, err := h.orch.List(r.Context())
	if err != nil {
		h.logger.Error("listing fleets", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list fleets")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"fleets": fleets,
		"count":  len(fleets),
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orch.Stats(r.Context())
	if err != nil {
		h.logger.Error("computing fleet stats", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to compute fleet stats")
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	restarted, err := h.orch.RollingRestart(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotRegistered) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "fleet not found")
			return
		}
		h.logger.Error("rolling restart", "error", err, "fleet_id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to restart fleet")
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "restart", "fleet", uuid.Nil, nil)
	}

	httpserver.Respond(w, http.StatusOK, RestartResponse{RestartedPods: restarted})
}

func (h *Handler) handlePodLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pod := chi.URLParam(r, "pod")
	tail := 200
	if v := r.URL.Query().Get("tail"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tail = n
		}
	}

	logs, err := h.orch.GetPodLogs(r.Context(), id, pod, tail)
	if err != nil {
		if errors.Is(err, ErrNotRegistered) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "fleet not found")
			return
		}
		h.logger.Error("getting pod logs", "error", err, "fleet_id", id, "pod", pod)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get pod logs")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"logs": logs})
}

func (h *Handler) handleProbe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pod := chi.URLParam(r, "pod")
	result := h.orch.ProbeNodeHealth(r.Context(), id, pod)
	httpserver.Respond(w, http.StatusOK, result)
}
