package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/storefront-orders/internal/api/middleware"
	"github.com/example/storefront-orders/internal/checkout"
	"github.com/example/storefront-orders/internal/domain/order"
	"github.com/example/storefront-orders/internal/payment"
	"github.com/example/storefront-orders/internal/store"
	"github.com/example/storefront-orders/internal/view"
)

type Handlers struct {
	store     store.OrderStore
	ctrl      *view.Controller
	checkout  *checkout.Service
	confirmer *payment.Confirmer
}

func NewHandlers(st store.OrderStore, ctrl *view.Controller, co *checkout.Service, confirmer *payment.Confirmer) *Handlers {
	return &Handlers{
		store:     st,
		ctrl:      ctrl,
		checkout:  co,
		confirmer: confirmer,
	}
}

// Checkout Handlers

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Items           []checkout.CartItem   `json:"items"`
		ShippingAddress order.ShippingAddress `json:"shipping_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	conf, err := h.checkout.PlaceOrder(r.Context(), checkout.Request{
		UserID:  userID,
		Items:   req.Items,
		Address: req.ShippingAddress,
	})
	if err != nil {
		if errors.Is(err, order.ErrEmptyOrder) || errors.Is(err, order.ErrMalformedOrder) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, conf)
}

// Order Handlers

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orders, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := extractPathParam(r.URL.Path, "/orders/")

	o, err := h.store.GetForUser(r.Context(), id, userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	items, err := h.store.ItemsByOrder(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"order": o,
		"items": items,
	})
}

// Payment Handlers

func (h *Handlers) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	clientSecret, err := h.checkout.PaymentIntent(r.Context(), req.OrderID, userID)
	if err != nil {
		if errors.Is(err, payment.ErrGateway) {
			respondError(w, "payment provider unavailable, try again", http.StatusBadGateway)
			return
		}
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"clientSecret": clientSecret})
}

func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		OrderID      string `json:"order_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.confirmer.Confirm(r.Context(), req.OrderID, userID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, payment.ErrConfirmTimeout) {
			respondJSON(w, http.StatusAccepted, result)
			return
		}
		if errors.Is(err, payment.ErrGateway) {
			respondError(w, "payment provider unavailable, try again", http.StatusBadGateway)
			return
		}
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Admin Handlers

// adminOrder decorates an order with the suggested next status; the
// suggestion is omitted once the order is terminal.
type adminOrder struct {
	*order.Order
	NextStatus order.Status `json:"next_status,omitempty"`
}

func decorate(o *order.Order) adminOrder {
	next := order.NextStatus(o.Status)
	if next == o.Status {
		return adminOrder{Order: o}
	}
	return adminOrder{Order: o, NextStatus: next}
}

func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))

	params := store.ListParams{
		Status: order.Status(q.Get("status")),
		Search: q.Get("search"),
		Page:   page,
	}
	if params.Status != "" && !order.ValidStatus(params.Status) {
		respondError(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	orders, err := h.store.List(r.Context(), params)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	h.ctrl.Load(orders)

	out := make([]adminOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, decorate(o))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(strings.TrimSuffix(r.URL.Path, "/status"), "/admin/orders/")

	var req struct {
		Status order.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.ctrl.ChangeStatus(r.Context(), id, req.Status); err != nil {
		respondStoreError(w, err)
		return
	}

	o, ok := h.ctrl.Get(id)
	if !ok {
		respondError(w, "order not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, decorate(o))
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps the store/status error taxonomy to distinct,
// actionable responses: not-found, invalid input, nothing-changed and
// transient failure must be distinguishable by the caller.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrInvalidStatus):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, store.ErrNoRowsAffected):
		respondError(w, "nothing changed: the order may have been removed", http.StatusConflict)
	case store.IsRetryable(err):
		respondError(w, "temporary backend failure, retry", http.StatusServiceUnavailable)
	default:
		respondError(w, err.Error(), http.StatusInternalServerError)
	}
}

func extractPathParam(path, prefix string) string {
	param := strings.TrimPrefix(path, prefix)
	return strings.TrimSuffix(param, "/")
}
