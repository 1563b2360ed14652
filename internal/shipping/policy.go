// Package shipping computes the shipping fee for a destination address.
package shipping

import (
	"strings"

	"github.com/example/storefront-orders/internal/domain/order"
)

// Policy maps lowercased destination cities to a flat surcharge. Cities not
// in the table ship free.
type Policy map[string]float64

// DefaultPolicy carries the single flagged-city rate currently in effect.
func DefaultPolicy() Policy {
	return Policy{"yerevan": 5.00}
}

// Cost returns the shipping fee for addr. It is pure and total: every
// address, including one with an empty city, yields a non-negative amount.
func (p Policy) Cost(addr order.ShippingAddress) float64 {
	if rate, ok := p[strings.ToLower(addr.City)]; ok && rate > 0 {
		return rate
	}
	return 0
}
