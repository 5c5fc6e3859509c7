package orders

import (
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

// transitions lists every legal status edge. Cancellation branches exist
// only before the order is ready; failed_payment closes out unpaid orders.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusAccepted,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByBusiness,
		enums.OrderStatusFailedPayment,
	},
	enums.OrderStatusAccepted: {
		enums.OrderStatusPreparing,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByBusiness,
		enums.OrderStatusFailedPayment,
	},
	enums.OrderStatusPreparing: {
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByBusiness,
		enums.OrderStatusFailedPayment,
	},
	enums.OrderStatusReadyForPickup: {
		enums.OrderStatusPickedUp,
	},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a state-conflict error for illegal edges.
func CheckTransition(from, to enums.OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
		WithDetails(map[string]any{"from": from, "to": to})
}

// businessTransitions are the forward edges the business console may drive
// through the status endpoint. Cancellations go through the cancellation
// manager instead.
var businessTransitions = map[enums.OrderStatus]bool{
	enums.OrderStatusAccepted:       true,
	enums.OrderStatusPreparing:      true,
	enums.OrderStatusReadyForPickup: true,
	enums.OrderStatusPickedUp:       true,
}

// IsBusinessTransition reports whether the target status belongs to the
// fulfillment flow.
func IsBusinessTransition(to enums.OrderStatus) bool {
	return businessTransitions[to]
}
