package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront-orders/internal/domain/order"
)

// MemoryOrderStore is an in-memory OrderStore used in tests and local
// development. It honors the same ordering and error contracts as the
// Postgres implementation.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
	items  map[string][]order.OrderItem
	pub    ChangePublisher
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders: make(map[string]*order.Order),
		items:  make(map[string][]order.OrderItem),
	}
}

// SetPublisher attaches a change publisher for writes.
func (s *MemoryOrderStore) SetPublisher(pub ChangePublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pub = pub
}

func (s *MemoryOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (s *MemoryOrderStore) GetForUser(ctx context.Context, id, userID string) (*order.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]*order.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			clone := *o
			orders = append(orders, &clone)
		}
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (s *MemoryOrderStore) List(ctx context.Context, params ListParams) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*order.Order, 0)
	search := strings.ToLower(params.Search)
	for _, o := range s.orders {
		if params.Status != "" && o.Status != params.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(o.ID), search) &&
			!strings.Contains(strings.ToLower(o.ShippingAddress.FullName), search) {
			continue
		}
		clone := *o
		matched = append(matched, &clone)
	}
	sortNewestFirst(matched)

	page := params.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * PageSize
	if start >= len(matched) {
		return []*order.Order{}, nil
	}
	end := start + PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (s *MemoryOrderStore) ItemsByOrder(ctx context.Context, orderID string) ([]order.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]order.OrderItem(nil), s.items[orderID]...), nil
}

func (s *MemoryOrderStore) Create(ctx context.Context, o *order.Order, items []order.OrderItem) error {
	if len(items) == 0 {
		return order.ErrEmptyOrder
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *o
	s.orders[o.ID] = &clone
	s.items[o.ID] = append([]order.OrderItem(nil), items...)
	return nil
}

func (s *MemoryOrderStore) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	if !order.ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", order.ErrInvalidStatus, status)
	}

	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil, order.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	clone := *o
	s.mu.Unlock()

	s.publishChange(ctx, &clone)
	return &clone, nil
}

func (s *MemoryOrderStore) ApplyPaymentResult(ctx context.Context, orderID string, succeeded bool) (*order.Order, error) {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return nil, order.ErrOrderNotFound
	}
	o.PaymentReceived = succeeded
	if succeeded && o.Status == order.StatusPending {
		o.Status = order.StatusProcessing
	}
	o.UpdatedAt = time.Now()
	clone := *o
	s.mu.Unlock()

	s.publishChange(ctx, &clone)
	return &clone, nil
}

func (s *MemoryOrderStore) publishChange(ctx context.Context, o *order.Order) {
	s.mu.RLock()
	pub := s.pub
	s.mu.RUnlock()
	if pub == nil {
		return
	}
	_ = pub.PublishOrderChange(ctx, o)
}

func sortNewestFirst(orders []*order.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
