// Package checkout turns a cart into a committed order: price snapshots,
// shipping fee, atomic persistence and payment-intent creation.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/storefront-orders/internal/domain/order"
	"github.com/example/storefront-orders/internal/payment"
	"github.com/example/storefront-orders/internal/shipping"
	"github.com/example/storefront-orders/internal/store"
)

// CartItem is one line of the cart at checkout time.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Request captures everything needed to place an order.
type Request struct {
	UserID  string
	Items   []CartItem
	Address order.ShippingAddress
}

// Confirmation is returned to the caller after a successful checkout.
type Confirmation struct {
	Order *order.Order      `json:"order"`
	Items []order.OrderItem `json:"items"`
}

type Service struct {
	store   store.OrderStore
	gateway payment.Gateway
	policy  shipping.Policy
}

func NewService(st store.OrderStore, gw payment.Gateway, policy shipping.Policy) *Service {
	return &Service{store: st, gateway: gw, policy: policy}
}

// PlaceOrder commits the cart as a pending order. Subtotal plus shipping
// equals the stored total; empty carts are rejected before any write.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Confirmation, error) {
	if len(req.Items) == 0 {
		return nil, order.ErrEmptyOrder
	}

	var subtotal float64
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.Price < 0 {
			return nil, fmt.Errorf("%w: bad quantity or price for product %s", order.ErrMalformedOrder, item.ProductID)
		}
		subtotal += item.Price * float64(item.Quantity)
	}
	shippingCost := s.policy.Cost(req.Address)

	now := time.Now()
	o := &order.Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Status:          order.StatusPending,
		Total:           subtotal + shippingCost,
		ShippingCost:    shippingCost,
		ShippingAddress: req.Address,
		PaymentReceived: false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items := make([]order.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			CreatedAt: now,
		}
	}

	if err := s.store.Create(ctx, o, items); err != nil {
		return nil, err
	}

	return &Confirmation{Order: o, Items: items}, nil
}

// PaymentIntent creates (or recreates, on retry) the payment intent for an
// order the caller owns and returns its client secret. A prior payment
// failure never blocks another attempt.
func (s *Service) PaymentIntent(ctx context.Context, orderID, userID string) (string, error) {
	o, err := s.store.GetForUser(ctx, orderID, userID)
	if err != nil {
		return "", err
	}

	intent, err := s.gateway.CreateIntent(ctx, o.ID, o.Total)
	if err != nil {
		return "", fmt.Errorf("create payment intent for order %s: %w", o.ID, err)
	}
	return intent.ClientSecret, nil
}
