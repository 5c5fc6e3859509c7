package enums

import (
	"fmt"
	"strings"
)

// OrderStatus tracks a pickup order through its workflow.
type OrderStatus string

const (
	OrderStatusPending             OrderStatus = "pending"
	OrderStatusAccepted            OrderStatus = "accepted"
	OrderStatusPreparing           OrderStatus = "preparing"
	OrderStatusReadyForPickup      OrderStatus = "ready_for_pickup"
	OrderStatusPickedUp            OrderStatus = "picked_up"
	OrderStatusCancelledByUser     OrderStatus = "cancelled_by_user"
	OrderStatusCancelledByBusiness OrderStatus = "cancelled_by_business"
	OrderStatusFailedPayment       OrderStatus = "failed_payment"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusPickedUp,
	OrderStatusCancelledByUser,
	OrderStatusCancelledByBusiness,
	OrderStatusFailedPayment,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are accepted from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusPickedUp,
		OrderStatusCancelledByUser,
		OrderStatusCancelledByBusiness,
		OrderStatusFailedPayment:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus. Wire values are
// accepted case-insensitively and stored lower-case.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
