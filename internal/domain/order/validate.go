package order

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"
)

// FromRecord normalizes an untrusted row from the remote table (or the
// changefeed) into a valid Order. Only structurally unrecoverable problems
// (missing id or user_id, unparseable serialized address) fail; everything
// else is repaired with safe defaults. The transformation is pure aside from
// warning logs and idempotent: validating an already-validated record yields
// an identical Order.
func FromRecord(raw map[string]any) (*Order, error) {
	id := stringField(raw, "id")
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedOrder)
	}
	userID := stringField(raw, "user_id")
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user_id for order %s", ErrMalformedOrder, id)
	}

	status := Status(stringField(raw, "status"))
	if !ValidStatus(status) {
		if status != "" {
			log.Printf("[Order] unknown status %q on order %s, defaulting to pending", status, id)
		}
		status = StatusPending
	}

	addr, err := addressField(raw["shipping_address"])
	if err != nil {
		return nil, fmt.Errorf("%w: order %s: %v", ErrMalformedOrder, id, err)
	}

	o := &Order{
		ID:              id,
		UserID:          userID,
		Status:          status,
		Total:           floatField(raw, "total"),
		ShippingCost:    floatField(raw, "shipping_cost"),
		ShippingAddress: addr,
		PaymentReceived: boolField(raw, "payment_received"),
		PaymentIntentID: stringField(raw, "payment_intent_id"),
		CreatedAt:       timeField(raw, "created_at"),
		UpdatedAt:       timeField(raw, "updated_at"),
	}
	return o, nil
}

// Record converts an Order back into the row shape used by the remote table
// and the changefeed. FromRecord(o.Record()) reproduces o exactly.
func (o *Order) Record() map[string]any {
	return map[string]any{
		"id":                o.ID,
		"user_id":           o.UserID,
		"status":            o.Status,
		"total":             o.Total,
		"shipping_cost":     o.ShippingCost,
		"shipping_address":  o.ShippingAddress,
		"payment_received":  o.PaymentReceived,
		"payment_intent_id": o.PaymentIntentID,
		"created_at":        o.CreatedAt,
		"updated_at":        o.UpdatedAt,
	}
}

// ParseAddress decodes a serialized shipping address, tolerating the
// historical field-name variants.
func ParseAddress(data []byte) (ShippingAddress, error) {
	var addr ShippingAddress
	if err := json.Unmarshal(data, &addr); err != nil {
		return ShippingAddress{}, err
	}
	return addr, nil
}

func addressField(v any) (ShippingAddress, error) {
	switch val := v.(type) {
	case nil:
		return UnknownAddress(), nil
	case ShippingAddress:
		return val, nil
	case *ShippingAddress:
		if val == nil {
			return UnknownAddress(), nil
		}
		return *val, nil
	case string:
		if val == "" {
			return UnknownAddress(), nil
		}
		return ParseAddress([]byte(val))
	case []byte:
		if len(val) == 0 {
			return UnknownAddress(), nil
		}
		return ParseAddress(val)
	case map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return ShippingAddress{}, err
		}
		return ParseAddress(data)
	default:
		return ShippingAddress{}, fmt.Errorf("unsupported shipping_address type %T", v)
	}
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case Status:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func floatField(raw map[string]any, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func boolField(raw map[string]any, key string) bool {
	v, _ := raw[key].(bool)
	return v
}

func timeField(raw map[string]any, key string) time.Time {
	switch v := raw[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}
