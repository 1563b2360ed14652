// Package realtime carries row-change notifications between the order store
// and subscribed views, modeled after a hosted changefeed: events are keyed
// by table and event type and can be filtered by column equality.
package realtime

import (
	"encoding/json"

	"github.com/example/storefront-orders/internal/domain/order"
)

const (
	TableOrders = "orders"

	EventUpdate = "UPDATE"
	EventInsert = "INSERT"
)

// ChangeEvent describes one row change on a remote table.
type ChangeEvent struct {
	Table string          `json:"table"`
	Type  string          `json:"type"`
	Row   json.RawMessage `json:"row"`
}

// Filter restricts a subscription to rows where Column equals Value. A zero
// Filter matches everything.
type Filter struct {
	Column string
	Value  string
}

// Matches reports whether ev passes the filter.
func (f Filter) Matches(ev ChangeEvent) bool {
	if f.Column == "" {
		return true
	}
	var row map[string]any
	if err := json.Unmarshal(ev.Row, &row); err != nil {
		return false
	}
	v, _ := row[f.Column].(string)
	return v == f.Value
}

// Order decodes and validates the event's row as an order record.
func (ev ChangeEvent) Order() (*order.Order, error) {
	var row map[string]any
	if err := json.Unmarshal(ev.Row, &row); err != nil {
		return nil, err
	}
	return order.FromRecord(row)
}

// NewOrderUpdate builds an UPDATE event for an order row.
func NewOrderUpdate(o *order.Order) (ChangeEvent, error) {
	row, err := json.Marshal(o)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{Table: TableOrders, Type: EventUpdate, Row: row}, nil
}
