package enums

import "fmt"

// CancelActor identifies who initiated a cancellation.
type CancelActor string

const (
	CancelActorUser     CancelActor = "user"
	CancelActorBusiness CancelActor = "business"
)

var validCancelActors = []CancelActor{
	CancelActorUser,
	CancelActorBusiness,
}

// String implements fmt.Stringer.
func (a CancelActor) String() string {
	return string(a)
}

// IsValid reports whether the value is a known CancelActor.
func (a CancelActor) IsValid() bool {
	for _, candidate := range validCancelActors {
		if candidate == a {
			return true
		}
	}
	return false
}

// TerminalStatus maps the actor to the cancellation status it produces.
func (a CancelActor) TerminalStatus() OrderStatus {
	if a == CancelActorBusiness {
		return OrderStatusCancelledByBusiness
	}
	return OrderStatusCancelledByUser
}

// ParseCancelActor converts raw input into a CancelActor.
func ParseCancelActor(value string) (CancelActor, error) {
	for _, candidate := range validCancelActors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel actor %q", value)
}
