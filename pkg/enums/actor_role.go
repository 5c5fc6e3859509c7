package enums

import "fmt"

// ActorRole identifies the authenticated caller type.
type ActorRole string

const (
	ActorRoleBuyer    ActorRole = "buyer"
	ActorRoleBusiness ActorRole = "business"
)

var validActorRoles = []ActorRole{
	ActorRoleBuyer,
	ActorRoleBusiness,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CancelActor maps the caller role to the cancellation actor it acts as.
func (r ActorRole) CancelActor() CancelActor {
	if r == ActorRoleBusiness {
		return CancelActorBusiness
	}
	return CancelActorUser
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
