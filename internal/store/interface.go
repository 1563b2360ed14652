package store

import (
	"context"

	"github.com/example/storefront-orders/internal/domain/order"
)

// PageSize is the fixed page size for admin order listings.
const PageSize = 10

// ListParams filters the admin order listing. Page is 1-based; Page 0 is
// treated as the first page.
type ListParams struct {
	Status order.Status
	Search string
	Page   int
}

// OrderStore is the row-level interface over the remote orders table.
//
// Error taxonomy: order.ErrOrderNotFound when the referenced order does not
// exist, *QueryError for retryable transport/backend failures, and
// ErrNoRowsAffected when a conditional write unexpectedly touched nothing.
type OrderStore interface {
	// Get fetches a single order by id.
	Get(ctx context.Context, id string) (*order.Order, error)

	// GetForUser fetches an order only if it is owned by userID.
	GetForUser(ctx context.Context, id, userID string) (*order.Order, error)

	// ListByUser returns all orders owned by userID, newest first. The
	// created_at descending ordering is a user-visible contract.
	ListByUser(ctx context.Context, userID string) ([]*order.Order, error)

	// List returns one admin page of orders matching params, ordered by
	// created_at descending with id ascending breaking ties so pagination
	// is deterministic.
	List(ctx context.Context, params ListParams) ([]*order.Order, error)

	// ItemsByOrder returns the item snapshots belonging to an order.
	ItemsByOrder(ctx context.Context, orderID string) ([]order.OrderItem, error)

	// Create persists a new order and its items atomically. Orders with no
	// items are rejected with order.ErrEmptyOrder.
	Create(ctx context.Context, o *order.Order, items []order.OrderItem) error

	// UpdateStatus writes the new status and returns the updated row.
	// Invalid statuses are rejected with order.ErrInvalidStatus before any
	// write is attempted. A write affecting zero rows is reported, never
	// silently swallowed.
	UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)

	// ApplyPaymentResult records a payment-intent outcome. On success it
	// sets payment_received and advances status pending→processing only;
	// on failure it clears payment_received and leaves status alone.
	// Redelivering the same outcome is a no-op.
	ApplyPaymentResult(ctx context.Context, orderID string, succeeded bool) (*order.Order, error)
}
