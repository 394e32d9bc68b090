package kafka

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suanphol/fruitshop/internal/orders"
)

func TestUnwrapPayload(t *testing.T) {
	env := orders.Envelope{
		EventID:      "ev-1",
		EventType:    orders.EventOrderPaid,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "fruitshop-api",
		Payload: MustMarshal(orders.OrderPaidPayload{
			OrderID:     42,
			OrderNumber: "ORD-2026-0829-42",
			TotalAmount: decimal.RequireFromString("59.90"),
		}),
	}

	var got orders.Envelope
	require.NoError(t, DecodeEnvelope(MustMarshal(env), &got))
	assert.Equal(t, orders.EventOrderPaid, got.EventType)

	p, err := UnwrapPayload[orders.OrderPaidPayload](got.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.OrderID)
	assert.True(t, p.TotalAmount.Equal(decimal.RequireFromString("59.90")))
}

func TestUnwrapPayloadRejectsGarbage(t *testing.T) {
	_, err := UnwrapPayload[orders.OrderPaidPayload]([]byte(`{"order_id":"not a number"}`))
	require.Error(t, err)
}
