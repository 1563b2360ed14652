package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/storefront-orders/internal/domain/order"
)

func addrWithCity(city string) order.ShippingAddress {
	return order.ShippingAddress{City: city}
}

func TestCost_FlaggedCityAnyCase(t *testing.T) {
	policy := DefaultPolicy()

	for _, city := range []string{"Yerevan", "yerevan", "YEREVAN", "yErEvAn"} {
		assert.Equal(t, 5.00, policy.Cost(addrWithCity(city)), "city %q", city)
	}
}

func TestCost_OtherCitiesShipFree(t *testing.T) {
	policy := DefaultPolicy()

	for _, city := range []string{"Gyumri", "Berlin", "", "Yerevan ", "New Yerevan"} {
		assert.Equal(t, 0.0, policy.Cost(addrWithCity(city)), "city %q", city)
	}
}

func TestCost_EmptyPolicyIsAlwaysFree(t *testing.T) {
	assert.Equal(t, 0.0, Policy{}.Cost(addrWithCity("Yerevan")))
}
