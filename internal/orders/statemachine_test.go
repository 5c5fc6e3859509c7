package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

func TestCanTransitionForwardFlow(t *testing.T) {
	flow := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusAccepted,
		enums.OrderStatusPreparing,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusPickedUp,
	}
	for i := 0; i < len(flow)-1; i++ {
		assert.True(t, CanTransition(flow[i], flow[i+1]), "%s -> %s", flow[i], flow[i+1])
	}
}

func TestCanTransitionCancellationBranches(t *testing.T) {
	cancellable := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusAccepted,
		enums.OrderStatusPreparing,
	}
	for _, from := range cancellable {
		assert.True(t, CanTransition(from, enums.OrderStatusCancelledByUser), "from %s", from)
		assert.True(t, CanTransition(from, enums.OrderStatusCancelledByBusiness), "from %s", from)
		assert.True(t, CanTransition(from, enums.OrderStatusFailedPayment), "from %s", from)
	}

	// Cancellation closes after the order is staged for pickup.
	assert.False(t, CanTransition(enums.OrderStatusReadyForPickup, enums.OrderStatusCancelledByUser))
	assert.False(t, CanTransition(enums.OrderStatusReadyForPickup, enums.OrderStatusCancelledByBusiness))
	assert.False(t, CanTransition(enums.OrderStatusReadyForPickup, enums.OrderStatusFailedPayment))
}

func TestCanTransitionRejectsSkipsAndBackwardEdges(t *testing.T) {
	assert.False(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusPreparing))
	assert.False(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusPickedUp))
	assert.False(t, CanTransition(enums.OrderStatusAccepted, enums.OrderStatusPending))
	assert.False(t, CanTransition(enums.OrderStatusPreparing, enums.OrderStatusAccepted))
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	terminals := []enums.OrderStatus{
		enums.OrderStatusPickedUp,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByBusiness,
		enums.OrderStatusFailedPayment,
	}
	targets := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusAccepted,
		enums.OrderStatusPreparing,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusPickedUp,
		enums.OrderStatusCancelledByUser,
		enums.OrderStatusCancelledByBusiness,
		enums.OrderStatusFailedPayment,
	}
	for _, from := range terminals {
		require.True(t, from.IsTerminal())
		for _, to := range targets {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransitionReturnsStateConflict(t *testing.T) {
	err := CheckTransition(enums.OrderStatusPickedUp, enums.OrderStatusPending)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	assert.NoError(t, CheckTransition(enums.OrderStatusPending, enums.OrderStatusAccepted))
}

func TestIsBusinessTransition(t *testing.T) {
	assert.True(t, IsBusinessTransition(enums.OrderStatusAccepted))
	assert.True(t, IsBusinessTransition(enums.OrderStatusPickedUp))
	assert.False(t, IsBusinessTransition(enums.OrderStatusCancelledByBusiness))
	assert.False(t, IsBusinessTransition(enums.OrderStatusFailedPayment))
	assert.False(t, IsBusinessTransition(enums.OrderStatusPending))
}
