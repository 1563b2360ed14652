package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront-orders/internal/domain/order"
	"github.com/example/storefront-orders/internal/store"
)

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"

	// SignatureTolerance bounds how old a signed payload may be.
	SignatureTolerance = 5 * time.Minute

	SignatureHeader = "Webhook-Signature"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingOrderID   = errors.New("webhook event carries no orderId metadata")
)

// Event is the provider's webhook envelope, trimmed to the fields the core
// reads.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object intentPayload `json:"object"`
	} `json:"data"`
}

// WebhookHandler verifies and applies provider webhook events. Applying is
// idempotent: redelivery of a succeeded event finds the order already
// reconciled and changes nothing.
type WebhookHandler struct {
	secret []byte
	store  store.OrderStore
	now    func() time.Time
}

func NewWebhookHandler(secret string, st store.OrderStore) *WebhookHandler {
	return &WebhookHandler{secret: []byte(secret), store: st, now: time.Now}
}

// HandleEvent verifies the signature and reconciles the referenced order.
func (h *WebhookHandler) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	if err := h.verifySignature(payload, signature); err != nil {
		return err
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("unmarshal webhook event: %w", err)
	}

	switch ev.Type {
	case EventIntentSucceeded:
		return h.reconcile(ctx, ev, true)
	case EventIntentFailed:
		return h.reconcile(ctx, ev, false)
	default:
		log.Printf("[Payment] skipping webhook event %s of type %s", ev.ID, ev.Type)
		return nil
	}
}

func (h *WebhookHandler) reconcile(ctx context.Context, ev Event, succeeded bool) error {
	orderID := ev.Data.Object.Metadata["orderId"]
	if orderID == "" {
		return fmt.Errorf("%w: event %s", ErrMissingOrderID, ev.ID)
	}

	updated, err := h.store.ApplyPaymentResult(ctx, orderID, succeeded)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			// Nothing to reconcile; acknowledging stops redelivery.
			log.Printf("[Payment] webhook event %s references unknown order %s", ev.ID, orderID)
			return nil
		}
		return fmt.Errorf("apply payment result for order %s: %w", orderID, err)
	}

	log.Printf("[Payment] order %s reconciled: payment_received=%t status=%s", orderID, succeeded, updated.Status)
	return nil
}

// verifySignature checks the provider's "t=<unix>,v1=<hex>" header: an
// HMAC-SHA256 over "<t>.<payload>" with a freshness bound.
func (h *WebhookHandler) verifySignature(payload []byte, header string) error {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sigs = append(sigs, value)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	age := h.now().Sub(time.Unix(unix, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ServeHTTP exposes the handler as the provider-facing webhook endpoint.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	err = h.HandleEvent(r.Context(), payload, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrMissingOrderID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		// Transient failure: non-2xx makes the provider redeliver, which
		// is safe because reconciliation is idempotent.
		log.Printf("[Payment] webhook error: %v", err)
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
	}
}

// Sign produces a signature header for payload at ts. Intended for tests and
// local tooling that simulate provider deliveries.
func Sign(secret string, payload []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", t, hex.EncodeToString(mac.Sum(nil)))
}
