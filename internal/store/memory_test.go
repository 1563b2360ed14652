package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront-orders/internal/domain/order"
)

func seedOrder(t *testing.T, s *MemoryOrderStore, id, userID string, status order.Status, createdAt time.Time) *order.Order {
	t.Helper()
	o := &order.Order{
		ID:              id,
		UserID:          userID,
		Status:          status,
		Total:           10,
		ShippingAddress: order.UnknownAddress(),
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	items := []order.OrderItem{{ID: id + "-item", OrderID: id, ProductID: "prod-1", Quantity: 1, Price: 10, CreatedAt: createdAt}}
	require.NoError(t, s.Create(context.Background(), o, items))
	return o
}

func TestMemoryStore_CreateRejectsEmptyOrders(t *testing.T) {
	s := NewMemoryOrderStore()

	err := s.Create(context.Background(), &order.Order{ID: "o1", UserID: "u1"}, nil)

	assert.ErrorIs(t, err, order.ErrEmptyOrder)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryOrderStore()

	_, err := s.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestMemoryStore_GetForUserScopesOwnership(t *testing.T) {
	s := NewMemoryOrderStore()
	seedOrder(t, s, "o1", "u1", order.StatusPending, time.Now())

	_, err := s.GetForUser(context.Background(), "o1", "someone-else")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	o, err := s.GetForUser(context.Background(), "o1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
}

func TestMemoryStore_ListByUserNewestFirst(t *testing.T) {
	s := NewMemoryOrderStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedOrder(t, s, "old", "u1", order.StatusPending, base)
	seedOrder(t, s, "new", "u1", order.StatusPending, base.Add(time.Hour))
	seedOrder(t, s, "other-user", "u2", order.StatusPending, base.Add(2*time.Hour))

	orders, err := s.ListByUser(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "new", orders[0].ID)
	assert.Equal(t, "old", orders[1].ID)
}

func TestMemoryStore_ListPagination(t *testing.T) {
	s := NewMemoryOrderStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		seedOrder(t, s, fmt.Sprintf("o-%02d", i), "u1", order.StatusPending, base.Add(time.Duration(i)*time.Minute))
	}
	ctx := context.Background()

	seen := make(map[string]bool)
	var pages [][]*order.Order
	for page := 1; page <= 3; page++ {
		orders, err := s.List(ctx, ListParams{Page: page})
		require.NoError(t, err)
		pages = append(pages, orders)
		for _, o := range orders {
			assert.False(t, seen[o.ID], "order %s appeared on two pages", o.ID)
			seen[o.ID] = true
		}
	}

	assert.Len(t, pages[0], 10)
	assert.Len(t, pages[1], 10)
	assert.Len(t, pages[2], 5)
	assert.Len(t, seen, 25)

	// Newest first across page boundaries.
	assert.Equal(t, "o-24", pages[0][0].ID)
	assert.Equal(t, "o-00", pages[2][4].ID)
}

func TestMemoryStore_ListTieBreakByID(t *testing.T) {
	s := NewMemoryOrderStore()
	same := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedOrder(t, s, "b", "u1", order.StatusPending, same)
	seedOrder(t, s, "a", "u1", order.StatusPending, same)

	orders, err := s.List(context.Background(), ListParams{Page: 1})

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "a", orders[0].ID)
	assert.Equal(t, "b", orders[1].ID)
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := NewMemoryOrderStore()
	now := time.Now()
	shipped := seedOrder(t, s, "shipped-1", "u1", order.StatusShipped, now)
	seedOrder(t, s, "pending-1", "u1", order.StatusPending, now.Add(time.Minute))
	ctx := context.Background()

	byStatus, err := s.List(ctx, ListParams{Status: order.StatusShipped})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, shipped.ID, byStatus[0].ID)

	bySearch, err := s.List(ctx, ListParams{Search: "SHIPPED-1"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, shipped.ID, bySearch[0].ID)

	byName, err := s.List(ctx, ListParams{Search: "unknown"})
	require.NoError(t, err)
	assert.Len(t, byName, 2) // sentinel address full name matches both
}

func TestMemoryStore_UpdateStatus(t *testing.T) {
	s := NewMemoryOrderStore()
	seedOrder(t, s, "o1", "u1", order.StatusPending, time.Now())
	ctx := context.Background()

	updated, err := s.UpdateStatus(ctx, "o1", order.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, updated.Status)

	_, err = s.UpdateStatus(ctx, "missing", order.StatusShipped)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = s.UpdateStatus(ctx, "o1", order.Status("cancelled"))
	assert.ErrorIs(t, err, order.ErrInvalidStatus)
}

func TestMemoryStore_ApplyPaymentResult_Success(t *testing.T) {
	s := NewMemoryOrderStore()
	seedOrder(t, s, "o1", "u1", order.StatusPending, time.Now())
	ctx := context.Background()

	updated, err := s.ApplyPaymentResult(ctx, "o1", true)

	require.NoError(t, err)
	assert.True(t, updated.PaymentReceived)
	assert.Equal(t, order.StatusProcessing, updated.Status)
}

func TestMemoryStore_ApplyPaymentResult_NeverRegressesStatus(t *testing.T) {
	s := NewMemoryOrderStore()
	seedOrder(t, s, "o1", "u1", order.StatusShipped, time.Now())
	ctx := context.Background()

	updated, err := s.ApplyPaymentResult(ctx, "o1", true)

	require.NoError(t, err)
	assert.True(t, updated.PaymentReceived)
	assert.Equal(t, order.StatusShipped, updated.Status)
}

func TestMemoryStore_ApplyPaymentResult_FailureLeavesStatus(t *testing.T) {
	s := NewMemoryOrderStore()
	seedOrder(t, s, "o1", "u1", order.StatusPending, time.Now())
	ctx := context.Background()

	updated, err := s.ApplyPaymentResult(ctx, "o1", false)

	require.NoError(t, err)
	assert.False(t, updated.PaymentReceived)
	assert.Equal(t, order.StatusPending, updated.Status)
}

func TestMemoryStore_ApplyPaymentResult_Idempotent(t *testing.T) {
	s := NewMemoryOrderStore()
	seedOrder(t, s, "o1", "u1", order.StatusPending, time.Now())
	ctx := context.Background()

	first, err := s.ApplyPaymentResult(ctx, "o1", true)
	require.NoError(t, err)

	second, err := s.ApplyPaymentResult(ctx, "o1", true)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.True(t, second.PaymentReceived)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
}

func (p *recordingPublisher) PublishOrderChange(_ context.Context, o *order.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, o.ID)
	return nil
}

func TestMemoryStore_WritesPublishChanges(t *testing.T) {
	s := NewMemoryOrderStore()
	seedOrder(t, s, "o1", "u1", order.StatusPending, time.Now())
	pub := &recordingPublisher{}
	s.SetPublisher(pub)
	ctx := context.Background()

	_, err := s.UpdateStatus(ctx, "o1", order.StatusProcessing)
	require.NoError(t, err)
	_, err = s.ApplyPaymentResult(ctx, "o1", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"o1", "o1"}, pub.published)
}

// Concurrent writers and a late-attached publisher must not trip the race
// detector.
func TestMemoryStore_SetPublisherDuringWrites(t *testing.T) {
	s := NewMemoryOrderStore()
	seedOrder(t, s, "o1", "u1", order.StatusPending, time.Now())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = s.UpdateStatus(ctx, "o1", order.StatusProcessing)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.SetPublisher(&recordingPublisher{})
		}
	}()
	wg.Wait()
}

func TestQueryError_Retryable(t *testing.T) {
	err := queryError("list orders", assert.AnError)

	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(order.ErrOrderNotFound))
	assert.False(t, IsRetryable(ErrNoRowsAffected))
	assert.ErrorIs(t, err, assert.AnError)
}
