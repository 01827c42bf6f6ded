package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanzoai/bootnode/internal/httpserver"
)

// HTTPHandler mounts the Commerce webhook receiver.
type HTTPHandler struct {
	handler *Handler
}

// NewHTTPHandler wraps a Handler for mounting as a chi route.
func NewHTTPHandler(h *Handler) *HTTPHandler {
	return &HTTPHandler{handler: h}
}

// Routes returns a chi.Router with the webhook endpoint mounted.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleWebhook)
	return r
}

func (h *HTTPHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	signature := r.Header.Get("X-Commerce-Signature")
	if !h.handler.VerifySignature(body, signature) {
		httpserver.RespondError(w, http.StatusUnauthorized, "invalid_signature", "webhook signature verification failed")
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid webhook payload")
		return
	}

	result := h.handler.HandleEvent(r.Context(), event)
	httpserver.Respond(w, http.StatusOK, result)
}
