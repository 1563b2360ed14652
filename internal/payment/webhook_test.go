package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront-orders/internal/domain/order"
	"github.com/example/storefront-orders/internal/store/mocks"
)

const testSecret = "whsec_test"

func newTestWebhook(t *testing.T, status order.Status) (*WebhookHandler, *mocks.MockOrderStore) {
	t.Helper()
	st := mocks.NewMockOrderStore()
	st.Seed(&order.Order{
		ID:              "order-1",
		UserID:          "user-1",
		Status:          status,
		Total:           42,
		ShippingAddress: order.UnknownAddress(),
		CreatedAt:       time.Now(),
	})
	return NewWebhookHandler(testSecret, st), st
}

func eventPayload(t *testing.T, eventType, orderID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":       "pi_1",
				"status":   "succeeded",
				"metadata": map[string]string{"orderId": orderID},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestWebhook_Succeeded(t *testing.T) {
	h, st := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")

	err := h.HandleEvent(context.Background(), payload, Sign(testSecret, payload, time.Now()))

	require.NoError(t, err)
	o, err := st.Get(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, o.PaymentReceived)
	assert.Equal(t, order.StatusProcessing, o.Status)
}

func TestWebhook_SucceededRedeliveryIsIdempotent(t *testing.T) {
	h, st := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")
	sig := Sign(testSecret, payload, time.Now())
	ctx := context.Background()

	require.NoError(t, h.HandleEvent(ctx, payload, sig))
	require.NoError(t, h.HandleEvent(ctx, payload, sig))

	o, err := st.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, o.PaymentReceived)
	assert.Equal(t, order.StatusProcessing, o.Status, "redelivery must not double-advance the status")
}

func TestWebhook_SucceededDoesNotRegressLaterStatus(t *testing.T) {
	h, st := newTestWebhook(t, order.StatusShipped)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")

	err := h.HandleEvent(context.Background(), payload, Sign(testSecret, payload, time.Now()))

	require.NoError(t, err)
	o, _ := st.Get(context.Background(), "order-1")
	assert.Equal(t, order.StatusShipped, o.Status)
	assert.True(t, o.PaymentReceived)
}

func TestWebhook_Failed(t *testing.T) {
	h, st := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentFailed, "order-1")

	err := h.HandleEvent(context.Background(), payload, Sign(testSecret, payload, time.Now()))

	require.NoError(t, err)
	o, _ := st.Get(context.Background(), "order-1")
	assert.False(t, o.PaymentReceived)
	assert.Equal(t, order.StatusPending, o.Status, "a failed payment must not move status")
}

func TestWebhook_UnknownEventTypeSkipped(t *testing.T) {
	h, st := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, "charge.refunded", "order-1")

	err := h.HandleEvent(context.Background(), payload, Sign(testSecret, payload, time.Now()))

	require.NoError(t, err)
	assert.Empty(t, st.ApplyPaymentCalls)
}

func TestWebhook_UnknownOrderAcknowledged(t *testing.T) {
	h, _ := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "ghost-order")

	err := h.HandleEvent(context.Background(), payload, Sign(testSecret, payload, time.Now()))

	assert.NoError(t, err)
}

func TestWebhook_MissingOrderID(t *testing.T) {
	h, _ := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "")

	err := h.HandleEvent(context.Background(), payload, Sign(testSecret, payload, time.Now()))

	assert.ErrorIs(t, err, ErrMissingOrderID)
}

// ============================================
// Signature verification
// ============================================

func TestWebhook_RejectsBadSignature(t *testing.T) {
	h, st := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")

	err := h.HandleEvent(context.Background(), payload, Sign("wrong-secret", payload, time.Now()))

	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, st.ApplyPaymentCalls)
}

func TestWebhook_RejectsTamperedPayload(t *testing.T) {
	h, _ := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")
	sig := Sign(testSecret, payload, time.Now())
	tampered := []byte(strings.Replace(string(payload), "order-1", "order-2", 1))

	err := h.HandleEvent(context.Background(), tampered, sig)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhook_RejectsStaleTimestamp(t *testing.T) {
	h, _ := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")

	err := h.HandleEvent(context.Background(), payload, Sign(testSecret, payload, time.Now().Add(-time.Hour)))

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhook_RejectsMalformedHeader(t *testing.T) {
	h, _ := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")

	for _, header := range []string{"", "garbage", "t=abc,v1=00", fmt.Sprintf("t=%d", time.Now().Unix())} {
		err := h.HandleEvent(context.Background(), payload, header)
		assert.ErrorIs(t, err, ErrInvalidSignature, "header %q", header)
	}
}

// ============================================
// HTTP endpoint
// ============================================

func TestWebhook_ServeHTTP(t *testing.T) {
	h, _ := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
	req.Header.Set(SignatureHeader, Sign(testSecret, payload, time.Now()))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
}

func TestWebhook_ServeHTTP_BadSignature(t *testing.T) {
	h, _ := newTestWebhook(t, order.StatusPending)
	payload := eventPayload(t, EventIntentSucceeded, "order-1")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
	req.Header.Set(SignatureHeader, "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
