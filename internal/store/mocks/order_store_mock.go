package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront-orders/internal/domain/order"
	"github.com/example/storefront-orders/internal/store"
)

// MockOrderStore is a mock implementation of store.OrderStore for testing.
// It keeps orders in memory via an embedded MemoryOrderStore and records
// write calls so tests can assert on them.
type MockOrderStore struct {
	mem *store.MemoryOrderStore

	mu sync.Mutex

	// For tracking calls in tests
	UpdateStatusCalls []UpdateStatusCall
	UpdateStatusErr   error
	// UpdateStatusHook, when set, replaces the default behavior entirely.
	UpdateStatusHook func(ctx context.Context, id string, status order.Status) (*order.Order, error)

	ApplyPaymentCalls []ApplyPaymentCall
	ApplyPaymentErr   error

	GetErr error
}

// UpdateStatusCall records parameters passed to UpdateStatus
type UpdateStatusCall struct {
	OrderID string
	Status  order.Status
}

// ApplyPaymentCall records parameters passed to ApplyPaymentResult
type ApplyPaymentCall struct {
	OrderID   string
	Succeeded bool
}

// NewMockOrderStore creates a new MockOrderStore
func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{mem: store.NewMemoryOrderStore()}
}

// Seed inserts an order (and optional items) directly, bypassing call recording.
func (m *MockOrderStore) Seed(o *order.Order, items ...order.OrderItem) {
	if len(items) == 0 {
		items = []order.OrderItem{{ID: o.ID + "-item", OrderID: o.ID, ProductID: "prod", Quantity: 1, Price: o.Total}}
	}
	_ = m.mem.Create(context.Background(), o, items)
}

func (m *MockOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.mem.Get(ctx, id)
}

func (m *MockOrderStore) GetForUser(ctx context.Context, id, userID string) (*order.Order, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.mem.GetForUser(ctx, id, userID)
}

func (m *MockOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	return m.mem.ListByUser(ctx, userID)
}

func (m *MockOrderStore) List(ctx context.Context, params store.ListParams) ([]*order.Order, error) {
	return m.mem.List(ctx, params)
}

func (m *MockOrderStore) ItemsByOrder(ctx context.Context, orderID string) ([]order.OrderItem, error) {
	return m.mem.ItemsByOrder(ctx, orderID)
}

func (m *MockOrderStore) Create(ctx context.Context, o *order.Order, items []order.OrderItem) error {
	return m.mem.Create(ctx, o, items)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	m.mu.Lock()
	m.UpdateStatusCalls = append(m.UpdateStatusCalls, UpdateStatusCall{OrderID: id, Status: status})
	hook := m.UpdateStatusHook
	errOverride := m.UpdateStatusErr
	m.mu.Unlock()

	if hook != nil {
		return hook(ctx, id, status)
	}
	if errOverride != nil {
		return nil, errOverride
	}
	return m.mem.UpdateStatus(ctx, id, status)
}

func (m *MockOrderStore) ApplyPaymentResult(ctx context.Context, orderID string, succeeded bool) (*order.Order, error) {
	m.mu.Lock()
	m.ApplyPaymentCalls = append(m.ApplyPaymentCalls, ApplyPaymentCall{OrderID: orderID, Succeeded: succeeded})
	errOverride := m.ApplyPaymentErr
	m.mu.Unlock()

	if errOverride != nil {
		return nil, errOverride
	}
	return m.mem.ApplyPaymentResult(ctx, orderID, succeeded)
}

// UpdateStatusCallCount returns how many UpdateStatus calls were recorded.
func (m *MockOrderStore) UpdateStatusCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.UpdateStatusCalls)
}
