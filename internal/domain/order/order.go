package order

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrMalformedOrder = errors.New("malformed order record")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrOrderNotFound  = errors.New("order not found")
	ErrEmptyOrder     = errors.New("order must have at least one item")
)

// Order is the canonical internal shape of a placed order. Instances coming
// from the remote table or the changefeed must go through FromRecord first.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	Total           float64         `json:"total"`
	ShippingCost    float64         `json:"shipping_cost"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentReceived bool            `json:"payment_received"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem is a purchase-time snapshot of a product line. Price is captured
// at checkout and does not track the live product price.
type OrderItem struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// ShippingAddress is the canonical postal address. Historical records use
// zip/zipCode and address/street interchangeably; UnmarshalJSON accepts both
// and MarshalJSON emits the canonical names.
type ShippingAddress struct {
	FullName string
	Street   string
	City     string
	State    string
	Zip      string
	Country  string
}

type addressWire struct {
	FullName string `json:"fullName"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address"`
	Street   string `json:"street,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country"`
}

func (a ShippingAddress) MarshalJSON() ([]byte, error) {
	return json.Marshal(addressWire{
		FullName: a.FullName,
		Address:  a.Street,
		City:     a.City,
		State:    a.State,
		ZipCode:  a.Zip,
		Country:  a.Country,
	})
}

func (a *ShippingAddress) UnmarshalJSON(data []byte) error {
	var w addressWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.FullName = firstNonEmpty(w.FullName, w.Name)
	a.Street = firstNonEmpty(w.Address, w.Street)
	a.City = w.City
	a.State = w.State
	a.Zip = firstNonEmpty(w.ZipCode, w.Zip)
	a.Country = w.Country
	return nil
}

// UnknownAddress is the sentinel substituted for records without a shipping
// address so order history can still render.
func UnknownAddress() ShippingAddress {
	return ShippingAddress{
		FullName: "Unknown",
		Street:   "Unknown",
		City:     "Unknown",
		State:    "Unknown",
		Zip:      "Unknown",
		Country:  "Unknown",
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
