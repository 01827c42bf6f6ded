package webhook

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleWebhookBadSignature(t *testing.T) {
	h := NewHandler("whsec_test", nil, nil, slog.Default())
	httpHandler := NewHTTPHandler(h)

	body := `{"type":"payment.paid","id":"evt_1","data":{}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("X-Commerce-Signature", "bogus")
	rec := httptest.NewRecorder()

	httpHandler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleWebhookLogOnlyEvent(t *testing.T) {
	h := NewHandler("", nil, nil, slog.Default())
	httpHandler := NewHTTPHandler(h)

	body := `{"type":"payment.paid","id":"evt_1","data":{}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()

	httpHandler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"handled":true`) {
		t.Errorf("body = %s, want handled:true", rec.Body.String())
	}
}

func TestHandleWebhookInvalidPayload(t *testing.T) {
	h := NewHandler("", nil, nil, slog.Default())
	httpHandler := NewHTTPHandler(h)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	httpHandler.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
