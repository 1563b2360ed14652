// Package payment integrates the payment provider: intent creation and
// retrieval, webhook processing and post-redirect confirmation. Both the
// webhook path and the redirect path converge on the same order state via
// the store's payment-reconciliation write.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Payment-intent lifecycle statuses reported by the provider.
const (
	IntentSucceeded             = "succeeded"
	IntentProcessing            = "processing"
	IntentRequiresPaymentMethod = "requires_payment_method"
	IntentCanceled              = "canceled"
)

var ErrGateway = errors.New("payment gateway error")

// Intent tracks one attempted charge through its lifecycle.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	OrderID      string `json:"order_id"`
}

// Gateway is the provider client surface the core consumes.
type Gateway interface {
	// CreateIntent registers a charge for the order total and returns the
	// intent whose client secret drives the browser-side confirmation.
	CreateIntent(ctx context.Context, orderID string, amount float64) (*Intent, error)

	// RetrieveIntent fetches the intent's current status by its client
	// secret, as done after a provider redirect.
	RetrieveIntent(ctx context.Context, clientSecret string) (*Intent, error)
}

// Client talks to the provider's REST API.
type Client struct {
	BaseURL   string
	SecretKey string
	HTTP      *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}
}

type intentPayload struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
}

func (p intentPayload) toIntent() *Intent {
	return &Intent{
		ID:           p.ID,
		ClientSecret: p.ClientSecret,
		Status:       p.Status,
		OrderID:      p.Metadata["orderId"],
	}
}

func (c *Client) CreateIntent(ctx context.Context, orderID string, amount float64) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toMinorUnits(amount), 10))
	form.Set("currency", "usd")
	form.Set("metadata[orderId]", orderID)

	var payload intentPayload
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &payload); err != nil {
		return nil, err
	}
	return payload.toIntent(), nil
}

func (c *Client) RetrieveIntent(ctx context.Context, clientSecret string) (*Intent, error) {
	// The intent id is the client secret's prefix.
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok {
		return nil, fmt.Errorf("%w: malformed client secret", ErrGateway)
	}

	q := url.Values{}
	q.Set("client_secret", clientSecret)

	var payload intentPayload
	path := "/v1/payment_intents/" + id + "?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toIntent(), nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrGateway, method, path, resp.StatusCode, data)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// toMinorUnits converts dollars to the provider's integer minor units.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
