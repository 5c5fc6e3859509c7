package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCashOnPickup PaymentMethod = "cash_on_pickup"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodGCash        PaymentMethod = "gcash"
	PaymentMethodPayMaya      PaymentMethod = "paymaya"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCashOnPickup,
	PaymentMethodCard,
	PaymentMethodGCash,
	PaymentMethodPayMaya,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresGateway reports whether the method settles through the payment
// gateway rather than at the counter.
func (p PaymentMethod) RequiresGateway() bool {
	return p != PaymentMethodCashOnPickup
}

// IsEwallet reports whether the method authenticates through an e-wallet
// redirect flow.
func (p PaymentMethod) IsEwallet() bool {
	return p == PaymentMethodGCash || p == PaymentMethodPayMaya
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
