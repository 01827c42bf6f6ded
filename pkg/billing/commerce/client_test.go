package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer test-key")
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if body["plan_slug"] != "growth" {
			t.Errorf("plan_slug = %v, want growth", body["plan_slug"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Checkout{OrderID: "ord_1", CheckoutURL: "https://pay.example/ord_1", Status: "pending"})
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", 5*time.Second)
	out, err := client.CreateCheckout(context.Background(), "cus_1", "growth", map[string]string{"project_id": "p1"})
	if err != nil {
		t.Fatalf("CreateCheckout() error = %v", err)
	}
	if out.OrderID != "ord_1" || out.Status != "pending" {
		t.Errorf("CreateCheckout() = %+v, unexpected", out)
	}
}

func TestRequestErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", 5*time.Second)
	_, err := client.GetCustomer(context.Background(), "cus_missing")
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}

	cerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error = %T, want *Error", err)
	}
	if cerr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", cerr.StatusCode, http.StatusNotFound)
	}
}

func TestErrorMessageWithoutStatusCode(t *testing.T) {
	err := &Error{Message: "request failed: connection refused"}
	want := "commerce: request failed: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestGetUserOrdersQueryParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("customer_id"); got != "cus_42" {
			t.Errorf("customer_id query param = %q, want %q", got, "cus_42")
		}
		json.NewEncoder(w).Encode([]Order{{ID: "ord_1", CustomerID: "cus_42", Status: "complete"}})
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", 5*time.Second)
	orders, err := client.GetUserOrders(context.Background(), "cus_42")
	if err != nil {
		t.Fatalf("GetUserOrders() error = %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "ord_1" {
		t.Errorf("GetUserOrders() = %+v, unexpected", orders)
	}
}
