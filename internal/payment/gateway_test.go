package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "8999", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "order-1", r.PostForm.Get("metadata[orderId]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","client_secret":"pi_1_secret_abc","status":"requires_payment_method","metadata":{"orderId":"order-1"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	intent, err := client.CreateIntent(context.Background(), "order-1", 89.99)

	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, "pi_1_secret_abc", intent.ClientSecret)
	assert.Equal(t, "order-1", intent.OrderID)
}

func TestClient_RetrieveIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)
		assert.Equal(t, "pi_1_secret_abc", r.URL.Query().Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","client_secret":"pi_1_secret_abc","status":"succeeded","metadata":{"orderId":"order-1"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	intent, err := client.RetrieveIntent(context.Background(), "pi_1_secret_abc")

	require.NoError(t, err)
	assert.Equal(t, IntentSucceeded, intent.Status)
	assert.Equal(t, "order-1", intent.OrderID)
}

func TestClient_RetrieveIntent_MalformedSecret(t *testing.T) {
	client := NewClient("http://localhost", "sk_test")

	_, err := client.RetrieveIntent(context.Background(), "not-a-secret")

	assert.ErrorIs(t, err, ErrGateway)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"no such intent"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	_, err := client.RetrieveIntent(context.Background(), "pi_1_secret_abc")

	assert.ErrorIs(t, err, ErrGateway)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(8999), toMinorUnits(89.99))
	assert.Equal(t, int64(500), toMinorUnits(5.00))
	assert.Equal(t, int64(0), toMinorUnits(0))
}
