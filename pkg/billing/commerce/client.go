// Package commerce is a thin HTTP client for the Hanzo Commerce billing
// backend: customers, checkout, subscriptions, usage reporting, invoices,
// and payment methods.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Error is returned for any non-2xx Commerce response or transport failure.
type Error struct {
	Message    string
	StatusCode int
	Details    json.RawMessage
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("commerce: %s", e.Message)
	}
	return fmt.Sprintf("commerce: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to the Commerce API over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a Commerce client with the given base URL, API key, and
// request timeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// request performs a single JSON HTTP round trip and decodes the response
// body into out (if non-nil). Every public method funnels through here, the
// same "one low-level request helper" shape as the Commerce client this was
// ported from.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Source", "bootnode")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Message: fmt.Sprintf("reading response: %v", err), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode >= 400 {
		return &Error{
			Message:    fmt.Sprintf("commerce request to %s failed", path),
			StatusCode: resp.StatusCode,
			Details:    respBody,
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// --- Customers ---

type Customer struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Client) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	var out Customer
	body := map[string]string{"email": email, "name": name}
	if err := c.request(ctx, http.MethodPost, "/v1/customers", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var out Customer
	if err := c.request(ctx, http.MethodGet, "/v1/customers/"+customerID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	var out Customer
	q := url.Values{"email": []string{email}}
	if err := c.request(ctx, http.MethodGet, "/v1/customers/lookup", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, customerID string, fields map[string]any) (*Customer, error) {
	var out Customer
	if err := c.request(ctx, http.MethodPatch, "/v1/customers/"+customerID, nil, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Checkout ---

type Checkout struct {
	OrderID     string `json:"order_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

func (c *Client) CreateCheckout(ctx context.Context, customerID, planSlug string, metadata map[string]string) (*Checkout, error) {
	var out Checkout
	body := map[string]any{"customer_id": customerID, "plan_slug": planSlug, "metadata": metadata}
	if err := c.request(ctx, http.MethodPost, "/v1/checkout", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CaptureCheckout(ctx context.Context, orderID string) (*Checkout, error) {
	var out Checkout
	if err := c.request(ctx, http.MethodPost, "/v1/checkout/"+orderID+"/capture", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Charge struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount_cents"`
}

func (c *Client) Charge(ctx context.Context, customerID string, amountCents int64, description string) (*Charge, error) {
	var out Charge
	body := map[string]any{"customer_id": customerID, "amount_cents": amountCents, "description": description}
	if err := c.request(ctx, http.MethodPost, "/v1/charges", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Order struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Status     string `json:"status"`
}

func (c *Client) GetUserOrders(ctx context.Context, customerID string) ([]Order, error) {
	var out []Order
	q := url.Values{"customer_id": []string{customerID}}
	if err := c.request(ctx, http.MethodGet, "/v1/orders", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Subscriptions ---

type Subscription struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customer_id"`
	PlanSlug          string    `json:"plan_slug"`
	Status            string    `json:"status"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
	CurrentPeriodEnd  time.Time `json:"current_period_end"`
}

func (c *Client) CreateSubscription(ctx context.Context, customerID, planSlug string, metadata map[string]string) (*Subscription, error) {
	var out Subscription
	body := map[string]any{"customer_id": customerID, "plan_slug": planSlug, "metadata": metadata}
	if err := c.request(ctx, http.MethodPost, "/v1/subscriptions", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var out Subscription
	if err := c.request(ctx, http.MethodGet, "/v1/subscriptions/"+subscriptionID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSubscriptionsByCustomer(ctx context.Context, customerID string) ([]Subscription, error) {
	var out []Subscription
	q := url.Values{"customer_id": []string{customerID}}
	if err := c.request(ctx, http.MethodGet, "/v1/subscriptions", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, fields map[string]any) (*Subscription, error) {
	var out Subscription
	if err := c.request(ctx, http.MethodPatch, "/v1/subscriptions/"+subscriptionID, nil, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*Subscription, error) {
	var out Subscription
	body := map[string]any{"immediate": immediate}
	if err := c.request(ctx, http.MethodPost, "/v1/subscriptions/"+subscriptionID+"/cancel", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Usage ---

// ReportUsage reports compute-unit consumption for a billing period,
// idempotent on idempotencyKey so a retried sync pass never double-bills.
func (c *Client) ReportUsage(ctx context.Context, subscriptionID string, computeUnits int64, idempotencyKey string) error {
	body := map[string]any{
		"subscription_id": subscriptionID,
		"compute_units":    computeUnits,
		"idempotency_key":  idempotencyKey,
	}
	return c.request(ctx, http.MethodPost, "/v1/usage", nil, body, nil)
}

type UsageSummary struct {
	SubscriptionID string `json:"subscription_id"`
	PeriodCU       int64  `json:"period_cu"`
	OverageCU      int64  `json:"overage_cu"`
}

func (c *Client) GetUsageSummary(ctx context.Context, subscriptionID string) (*UsageSummary, error) {
	var out UsageSummary
	if err := c.request(ctx, http.MethodGet, "/v1/subscriptions/"+subscriptionID+"/usage", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Invoices & payment methods ---

type Invoice struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	AmountDue  int64     `json:"amount_due_cents"`
	DueDate    time.Time `json:"due_date"`
}

func (c *Client) GetCustomerInvoices(ctx context.Context, customerID string) ([]Invoice, error) {
	var out []Invoice
	q := url.Values{"customer_id": []string{customerID}}
	if err := c.request(ctx, http.MethodGet, "/v1/invoices", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	var out Invoice
	if err := c.request(ctx, http.MethodGet, "/v1/invoices/"+invoiceID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUpcomingInvoice(ctx context.Context, customerID string) (*Invoice, error) {
	var out Invoice
	q := url.Values{"customer_id": []string{customerID}}
	if err := c.request(ctx, http.MethodGet, "/v1/invoices/upcoming", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type PaymentMethod struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Last4     string `json:"last4,omitempty"`
	IsDefault bool   `json:"is_default"`
}

func (c *Client) GetPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	var out []PaymentMethod
	q := url.Values{"customer_id": []string{customerID}}
	if err := c.request(ctx, http.MethodGet, "/v1/payment-methods", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
