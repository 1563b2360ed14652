package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront-orders/internal/store"
)

var ErrConfirmTimeout = errors.New("timed out waiting for payment confirmation")

// Result reports the outcome of a post-redirect confirmation.
type Result struct {
	Succeeded    bool   `json:"succeeded"`
	IntentStatus string `json:"intent_status"`
}

// Confirmer resolves the client-redirect path: it retrieves the payment
// intent by its client secret and, while the provider still reports
// processing, polls the order's payment_received flag until the webhook path
// lands or the wait bound expires.
type Confirmer struct {
	gateway Gateway
	store   store.OrderStore

	// PollInterval and MaxWait bound the processing-state polling loop.
	PollInterval time.Duration
	MaxWait      time.Duration
}

func NewConfirmer(gw Gateway, st store.OrderStore) *Confirmer {
	return &Confirmer{
		gateway:      gw,
		store:        st,
		PollInterval: 2 * time.Second,
		MaxWait:      time.Minute,
	}
}

// Confirm observes the intent's terminal state for an order owned by userID.
// Cancellation of ctx (the requesting view being torn down) stops the polling
// loop.
func (c *Confirmer) Confirm(ctx context.Context, orderID, userID, clientSecret string) (Result, error) {
	// The caller must own the order before anything about its payment state
	// is revealed.
	if _, err := c.store.GetForUser(ctx, orderID, userID); err != nil {
		return Result{}, err
	}

	intent, err := c.gateway.RetrieveIntent(ctx, clientSecret)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve intent: %w", err)
	}

	switch intent.Status {
	case IntentSucceeded:
		return Result{Succeeded: true, IntentStatus: intent.Status}, nil
	case IntentProcessing:
		return c.awaitConfirmation(ctx, orderID, userID)
	default:
		return Result{Succeeded: false, IntentStatus: intent.Status}, nil
	}
}

func (c *Confirmer) awaitConfirmation(ctx context.Context, orderID, userID string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.MaxWait)
	defer cancel()

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		o, err := c.store.GetForUser(ctx, orderID, userID)
		if err != nil && !store.IsRetryable(err) {
			return Result{}, err
		}
		if err == nil && o.PaymentReceived {
			return Result{Succeeded: true, IntentStatus: IntentProcessing}, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Result{IntentStatus: IntentProcessing}, ErrConfirmTimeout
			}
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
