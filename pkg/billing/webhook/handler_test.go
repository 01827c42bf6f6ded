package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"testing"

	"github.com/hanzoai/bootnode/pkg/billing/tiers"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	logger := slog.Default()
	payload := []byte(`{"type":"subscription.created"}`)

	tests := []struct {
		name      string
		secret    string
		signature string
		want      bool
	}{
		{"valid signature", "whsec_test", sign("whsec_test", payload), true},
		{"wrong secret", "whsec_test", sign("whsec_other", payload), false},
		{"garbage signature", "whsec_test", "not-a-signature", false},
		{"empty secret skips verification", "", "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.secret, nil, nil, logger)
			if got := h.VerifySignature(payload, tt.signature); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTierForPlan(t *testing.T) {
	tests := []struct {
		plan string
		want tiers.Tier
	}{
		{"bootnode-free", tiers.Free},
		{"bootnode-payg", tiers.PayAsYouGo},
		{"bootnode-growth", tiers.Growth},
		{"bootnode-enterprise", tiers.Enterprise},
		{"unknown-plan", tiers.Free},
		{"", tiers.Free},
	}
	for _, tt := range tests {
		t.Run(tt.plan, func(t *testing.T) {
			if got := tierForPlan(tt.plan); got != tt.want {
				t.Errorf("tierForPlan(%q) = %q, want %q", tt.plan, got, tt.want)
			}
		})
	}
}

func TestHandleEventUnknownType(t *testing.T) {
	h := NewHandler("", nil, nil, slog.Default())
	result := h.HandleEvent(nil, Event{Type: "something.unrecognized", ID: "evt_1"})
	if result.Handled {
		t.Error("HandleEvent() should not handle an unknown event type")
	}
	if result.Reason != "unknown_type" {
		t.Errorf("Reason = %q, want %q", result.Reason, "unknown_type")
	}
}

func TestHandleEventLogOnly(t *testing.T) {
	h := NewHandler("", nil, nil, slog.Default())
	result := h.HandleEvent(nil, Event{Type: "payment.paid", ID: "evt_2", Data: []byte(`{}`)})
	if !result.Handled {
		t.Errorf("HandleEvent() should handle payment.paid, got error %q", result.Error)
	}
	if result.Result["logged"] != true {
		t.Errorf("Result = %+v, want logged=true", result.Result)
	}
}
