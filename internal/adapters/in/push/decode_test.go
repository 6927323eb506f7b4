package push_test

import (
	"fmt"
	"testing"

	"dispatch/internal/adapters/in/push"
	"dispatch/internal/core/application/engine"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_AssignmentOffered(t *testing.T) {
	assignmentID := kernel.NewUUID()
	orderID := kernel.NewUUID()
	shopID := kernel.NewUUID()

	raw := fmt.Sprintf(`{
		"type": "assignment_offered",
		"payload": {
			"assignment_id": %q,
			"order_id": %q,
			"shop_id": %q,
			"created_at": "2025-06-01T12:00:00Z",
			"distance_km": 0.8,
			"delivery_fee": 4.5,
			"pickup_lat": 55.75,
			"pickup_lon": 37.62,
			"delivery_address": "12 Main St"
		}
	}`, assignmentID.String(), orderID.String(), shopID.String())

	ev, err := push.DecodeEvent([]byte(raw))
	require.NoError(t, err)

	offered, ok := ev.(engine.AssignmentOffered)
	require.True(t, ok)
	assert.True(t, offered.Offer.AssignmentID().IsEqual(assignmentID))
	assert.True(t, offered.Offer.OrderID().IsEqual(orderID))
	assert.InDelta(t, 0.8, offered.Offer.DistanceKm(), 1e-9)
	assert.Equal(t, "12 Main St", offered.Offer.DeliveryAddress())
}

func TestDecodeEvent_AssignmentOffered_UnknownDistance(t *testing.T) {
	raw := fmt.Sprintf(`{
		"type": "assignment_offered",
		"payload": {
			"assignment_id": %q,
			"order_id": %q,
			"shop_id": %q,
			"created_at": "2025-06-01T12:00:00Z",
			"delivery_fee": 3.0,
			"delivery_address": "34 Side St"
		}
	}`, kernel.NewUUID().String(), kernel.NewUUID().String(), kernel.NewUUID().String())

	ev, err := push.DecodeEvent([]byte(raw))
	require.NoError(t, err)

	offered, ok := ev.(engine.AssignmentOffered)
	require.True(t, ok)
	assert.False(t, offered.Offer.HasKnownDistance())
}

func TestDecodeEvent_AssignmentRemoved(t *testing.T) {
	assignmentID := kernel.NewUUID()
	raw := fmt.Sprintf(`{"type":"assignment_removed","payload":{"assignment_id":%q}}`, assignmentID.String())

	ev, err := push.DecodeEvent([]byte(raw))
	require.NoError(t, err)

	removed, ok := ev.(engine.AssignmentRemoved)
	require.True(t, ok)
	assert.True(t, removed.AssignmentID.IsEqual(assignmentID))
}

func TestDecodeEvent_OrderStatusChanged(t *testing.T) {
	orderID := kernel.NewUUID()
	raw := fmt.Sprintf(`{"type":"order_status_changed","payload":{"order_id":%q,"status":"out_for_delivery"}}`, orderID.String())

	ev, err := push.DecodeEvent([]byte(raw))
	require.NoError(t, err)

	changed, ok := ev.(engine.OrderStatusChanged)
	require.True(t, ok)
	assert.True(t, changed.OrderID.IsEqual(orderID))
	assert.Equal(t, order.OutForDelivery, changed.Status)
}

func TestDecodeEvent_NewOrder(t *testing.T) {
	shopOrderID := kernel.NewUUID()
	raw := fmt.Sprintf(`{
		"type": "new_order",
		"payload": {
			"shop_order_id": %q,
			"order_id": %q,
			"shop_id": %q,
			"subtotal": 18.0,
			"items": [{"name": "Pad Thai", "quantity": 2, "price": 9.0}],
			"created_at": "2025-06-01T12:00:00Z"
		}
	}`, shopOrderID.String(), kernel.NewUUID().String(), kernel.NewUUID().String())

	ev, err := push.DecodeEvent([]byte(raw))
	require.NoError(t, err)

	created, ok := ev.(engine.NewOrder)
	require.True(t, ok)
	require.NotNil(t, created.ShopOrder)
	assert.True(t, created.ShopOrder.ID().IsEqual(shopOrderID))
	assert.Equal(t, order.Pending, created.ShopOrder.Status())
	require.Len(t, created.ShopOrder.Items(), 1)
	assert.Equal(t, "Pad Thai", created.ShopOrder.Items()[0].Name)
}

func TestDecodeEvent_JobCancelled(t *testing.T) {
	orderID := kernel.NewUUID()
	raw := fmt.Sprintf(`{"type":"job_cancelled","payload":{"order_id":%q,"reason":"shop closed"}}`, orderID.String())

	ev, err := push.DecodeEvent([]byte(raw))
	require.NoError(t, err)

	cancelled, ok := ev.(engine.JobCancelled)
	require.True(t, ok)
	assert.True(t, cancelled.OrderID.IsEqual(orderID))
	assert.Equal(t, "shop closed", cancelled.Reason)
}

func TestDecodeEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not json at all"},
		{"unknown type", `{"type":"price_changed","payload":{}}`},
		{"bad uuid", `{"type":"assignment_removed","payload":{"assignment_id":"nope"}}`},
		{"bad status", fmt.Sprintf(`{"type":"order_status_changed","payload":{"order_id":%q,"status":"exploded"}}`, kernel.NewUUID().String())},
		{"missing fields", `{"type":"new_order","payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := push.DecodeEvent([]byte(tt.raw))
			require.Error(t, err)
		})
	}
}
