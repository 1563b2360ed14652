// Package view holds the local in-memory order view and reconciles it with
// the remote table: optimistic status updates with rollback, and merging of
// asynchronous changefeed notifications.
package view

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/example/storefront-orders/internal/domain/order"
	"github.com/example/storefront-orders/internal/realtime"
	"github.com/example/storefront-orders/internal/store"
)

// Notifier is invoked for order changes that were not initiated through this
// controller, so one session can surface another session's update.
type Notifier func(o *order.Order)

// flight tracks one outstanding status write.
type flight struct {
	gen      uint64
	status   order.Status // optimistic value awaiting confirmation
	snapshot order.Order  // local value at submit time, for rollback
}

// Controller owns the local view. It is the only component that mutates it;
// the remote table stays the single source of truth and every local value is
// a cache correctable by a write response or a changefeed notification.
type Controller struct {
	store  store.OrderStore
	notify Notifier

	mu       sync.Mutex
	orders   map[string]*order.Order
	inflight map[string]*flight
	gens     map[string]uint64
}

func NewController(st store.OrderStore, notify Notifier) *Controller {
	return &Controller{
		store:    st,
		notify:   notify,
		orders:   make(map[string]*order.Order),
		inflight: make(map[string]*flight),
		gens:     make(map[string]uint64),
	}
}

// Load seeds the local view, typically from an initial listing.
func (c *Controller) Load(orders []*order.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range orders {
		clone := *o
		c.orders[o.ID] = &clone
	}
}

// Get returns a copy of the local order, if present.
func (c *Controller) Get(id string) (*order.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return nil, false
	}
	clone := *o
	return &clone, true
}

// Orders returns a copy of the local view, newest first.
func (c *Controller) Orders() []*order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*order.Order, 0, len(c.orders))
	for _, o := range c.orders {
		clone := *o
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ChangeStatus applies newStatus optimistically, issues the remote write and
// reconciles the outcome. On failure the pre-change snapshot is restored and
// the specific error is surfaced; the view is never left showing a status
// that was not persisted. Writes for the same order are serialized by a
// generation counter: a late response from a superseded request cannot
// overwrite fresher local state.
func (c *Controller) ChangeStatus(ctx context.Context, id string, newStatus order.Status) error {
	if !order.ValidStatus(newStatus) {
		return fmt.Errorf("%w: %q", order.ErrInvalidStatus, newStatus)
	}

	c.mu.Lock()
	o, ok := c.orders[id]
	if !ok {
		c.mu.Unlock()
		fetched, err := c.store.Get(ctx, id)
		if err != nil {
			return err
		}
		c.mu.Lock()
		if _, ok := c.orders[id]; !ok {
			c.orders[id] = fetched
		}
		o = c.orders[id]
	}

	c.gens[id]++
	gen := c.gens[id]

	// When superseding an in-flight write the live view holds that write's
	// unconfirmed optimistic value; inherit its snapshot so a rollback always
	// restores the last confirmed state, never an optimistic guess.
	snapshot := *o
	if prev := c.inflight[id]; prev != nil {
		snapshot = prev.snapshot
	}
	c.inflight[id] = &flight{gen: gen, status: newStatus, snapshot: snapshot}

	// Optimistic local apply.
	o.Status = newStatus
	o.UpdatedAt = time.Now()
	c.mu.Unlock()

	updated, err := c.store.UpdateStatus(ctx, id, newStatus)

	c.mu.Lock()
	defer c.mu.Unlock()

	fl := c.inflight[id]
	if fl == nil || fl.gen != gen {
		// Superseded while in flight: the view already reflects a fresher
		// state, only report this request's outcome.
		return err
	}
	delete(c.inflight, id)

	if err != nil {
		snapshot := fl.snapshot
		c.orders[id] = &snapshot
		return err
	}

	// Reconcile with the authoritative row (updated_at and any backend
	// side effects).
	clone := *updated
	c.orders[id] = &clone
	return nil
}

// ApplyRemote merges a changefeed notification into the local view. An echo
// of an in-flight local write is applied only when it agrees with the
// optimistic value; a contradicting notification wins and the stale
// optimistic guess is dropped. Notifications for orders without an in-flight
// write fire the Notifier.
func (c *Controller) ApplyRemote(ctx context.Context, ev realtime.ChangeEvent) error {
	if ev.Table != realtime.TableOrders || ev.Type != realtime.EventUpdate {
		return nil
	}
	remote, err := ev.Order()
	if err != nil {
		log.Printf("[View] dropping malformed change event: %v", err)
		return err
	}

	c.mu.Lock()
	prev := c.orders[remote.ID]
	fl := c.inflight[remote.ID]
	notify := (*order.Order)(nil)

	switch {
	case fl != nil && remote.Status == fl.status:
		// Echo of the update in flight: adopt the authoritative fields,
		// keep awaiting the write response. No self-notification.
		clone := *remote
		c.orders[remote.ID] = &clone
	case fl != nil:
		// Contradicts the optimistic value: the notification is
		// authoritative, drop the stale guess. The write response for the
		// cleared flight will be ignored as superseded.
		clone := *remote
		c.orders[remote.ID] = &clone
		delete(c.inflight, remote.ID)
	default:
		clone := *remote
		c.orders[remote.ID] = &clone
		if prev == nil || prev.Status != remote.Status {
			notify = &clone
		}
	}
	c.mu.Unlock()

	if notify != nil && c.notify != nil {
		c.notify(notify)
	}
	return nil
}

// NextAction returns the suggested next status for the order and whether a
// suggestion applies. The suggestion only ever proposes the next sequential
// status and disappears at the terminal state.
func (c *Controller) NextAction(id string) (order.Status, bool) {
	o, ok := c.Get(id)
	if !ok {
		return "", false
	}
	next := order.NextStatus(o.Status)
	if next == o.Status {
		return "", false
	}
	return next, true
}
