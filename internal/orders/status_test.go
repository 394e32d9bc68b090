package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusConfirmed, StatusPaid, true},
		{StatusProcessing, StatusPaid, true},
		{StatusPaid, StatusPreparing, true},
		{StatusPaid, StatusCompleted, true},
		{StatusPaid, StatusCancelled, true},
		{StatusShipped, StatusReceived, true},
		{StatusPaid, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusPaid, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusReceived, StatusCancelled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestCanTransitionSelf(t *testing.T) {
	// retried requests may re-target the current status
	assert.True(t, CanTransition(StatusPaid, StatusPaid))
	assert.True(t, CanTransition(StatusPending, StatusPending))
	// but terminal states stay closed
	assert.False(t, CanTransition(StatusCancelled, StatusCancelled))
	assert.False(t, CanTransition(StatusCompleted, StatusCompleted))
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusProcessing,
		StatusPaid, StatusPreparing, StatusShipped, StatusCompleted,
		StatusReceived, StatusCancelled} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("shipped_back").Valid())
	assert.False(t, Status("").Valid())
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusReceived.Terminal())
	assert.False(t, StatusPaid.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestOrderNumber(t *testing.T) {
	at := time.Date(2026, time.March, 7, 10, 30, 0, 0, time.UTC)
	require.Equal(t, "ORD-2026-0307-42", OrderNumber(42, at))

	at = time.Date(2025, time.December, 25, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "ORD-2025-1225-7", OrderNumber(7, at))
}
