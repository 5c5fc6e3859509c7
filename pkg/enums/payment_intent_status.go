package enums

import "fmt"

// PaymentIntentStatus mirrors the gateway-side lifecycle of a single
// collection attempt.
type PaymentIntentStatus string

const (
	PaymentIntentStatusRequiresAction PaymentIntentStatus = "requires_action"
	PaymentIntentStatusProcessing     PaymentIntentStatus = "processing"
	PaymentIntentStatusSucceeded      PaymentIntentStatus = "succeeded"
	PaymentIntentStatusFailed         PaymentIntentStatus = "failed"
)

var validPaymentIntentStatuses = []PaymentIntentStatus{
	PaymentIntentStatusRequiresAction,
	PaymentIntentStatusProcessing,
	PaymentIntentStatusSucceeded,
	PaymentIntentStatusFailed,
}

// String implements fmt.Stringer.
func (p PaymentIntentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentIntentStatus.
func (p PaymentIntentStatus) IsValid() bool {
	for _, candidate := range validPaymentIntentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the intent can no longer change state.
func (p PaymentIntentStatus) IsTerminal() bool {
	return p == PaymentIntentStatusSucceeded || p == PaymentIntentStatusFailed
}

// ParsePaymentIntentStatus converts raw input into a PaymentIntentStatus.
func ParsePaymentIntentStatus(value string) (PaymentIntentStatus, error) {
	for _, candidate := range validPaymentIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment intent status %q", value)
}
