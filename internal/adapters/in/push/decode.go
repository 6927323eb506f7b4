// Package push consumes the backing store's event stream from Kafka and
// feeds decoded events into the dispatch engine. Payloads are validated here;
// downstream consumers receive only well-formed events.
package push

import (
	"encoding/json"
	"fmt"
	"time"

	"dispatch/internal/core/application/engine"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
	"dispatch/internal/core/domain/model/order"
)

// Event type discriminators on the wire.
const (
	typeAssignmentOffered  = "assignment_offered"
	typeAssignmentRemoved  = "assignment_removed"
	typeOrderStatusChanged = "order_status_changed"
	typeNewOrder           = "new_order"
	typeJobCancelled       = "job_cancelled"
)

// envelope is the outer wire structure of every pushed event.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type assignmentOfferedPayload struct {
	AssignmentID    string    `json:"assignment_id"`
	OrderID         string    `json:"order_id"`
	ShopID          string    `json:"shop_id"`
	CreatedAt       time.Time `json:"created_at"`
	DistanceKm      *float64  `json:"distance_km,omitempty"`
	DeliveryFee     float64   `json:"delivery_fee"`
	PickupLat       *float64  `json:"pickup_lat,omitempty"`
	PickupLon       *float64  `json:"pickup_lon,omitempty"`
	DeliveryAddress string    `json:"delivery_address"`
}

type assignmentRemovedPayload struct {
	AssignmentID string `json:"assignment_id"`
}

type orderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type newOrderPayload struct {
	ShopOrderID string         `json:"shop_order_id"`
	OrderID     string         `json:"order_id"`
	ShopID      string         `json:"shop_id"`
	Subtotal    float64        `json:"subtotal"`
	Items       []itemPayload  `json:"items"`
	CreatedAt   time.Time      `json:"created_at"`
}

type itemPayload struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type jobCancelledPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// DecodeEvent parses one raw message into an engine event.
func DecodeEvent(raw []byte) (engine.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case typeAssignmentOffered:
		return decodeAssignmentOffered(env.Payload)
	case typeAssignmentRemoved:
		return decodeAssignmentRemoved(env.Payload)
	case typeOrderStatusChanged:
		return decodeOrderStatusChanged(env.Payload)
	case typeNewOrder:
		return decodeNewOrder(env.Payload)
	case typeJobCancelled:
		return decodeJobCancelled(env.Payload)
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

func decodeAssignmentOffered(raw json.RawMessage) (engine.Event, error) {
	var p assignmentOfferedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode assignment_offered: %w", err)
	}

	assignmentID, err := kernel.UUIDFromString(p.AssignmentID)
	if err != nil {
		return nil, err
	}
	orderID, err := kernel.UUIDFromString(p.OrderID)
	if err != nil {
		return nil, err
	}
	shopID, err := kernel.UUIDFromString(p.ShopID)
	if err != nil {
		return nil, err
	}

	distance := kernel.UnknownDistance
	if p.DistanceKm != nil {
		distance = *p.DistanceKm
	}

	var pickup kernel.GeoPoint
	if p.PickupLat != nil && p.PickupLon != nil {
		pickup, err = kernel.NewGeoPoint(*p.PickupLat, *p.PickupLon)
		if err != nil {
			return nil, err
		}
	}

	o, err := offer.NewOffer(
		assignmentID, orderID, shopID,
		p.CreatedAt, distance, p.DeliveryFee,
		pickup, p.DeliveryAddress,
	)
	if err != nil {
		return nil, err
	}
	return engine.AssignmentOffered{Offer: o}, nil
}

func decodeAssignmentRemoved(raw json.RawMessage) (engine.Event, error) {
	var p assignmentRemovedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode assignment_removed: %w", err)
	}

	assignmentID, err := kernel.UUIDFromString(p.AssignmentID)
	if err != nil {
		return nil, err
	}
	return engine.AssignmentRemoved{AssignmentID: assignmentID}, nil
}

func decodeOrderStatusChanged(raw json.RawMessage) (engine.Event, error) {
	var p orderStatusChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode order_status_changed: %w", err)
	}

	orderID, err := kernel.UUIDFromString(p.OrderID)
	if err != nil {
		return nil, err
	}
	status, err := order.StatusFromString(p.Status)
	if err != nil {
		return nil, err
	}
	return engine.OrderStatusChanged{OrderID: orderID, Status: status}, nil
}

func decodeNewOrder(raw json.RawMessage) (engine.Event, error) {
	var p newOrderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode new_order: %w", err)
	}

	shopOrderID, err := kernel.UUIDFromString(p.ShopOrderID)
	if err != nil {
		return nil, err
	}
	orderID, err := kernel.UUIDFromString(p.OrderID)
	if err != nil {
		return nil, err
	}
	shopID, err := kernel.UUIDFromString(p.ShopID)
	if err != nil {
		return nil, err
	}

	items := make([]order.Item, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, order.Item{Name: item.Name, Quantity: item.Quantity, Price: item.Price})
	}

	so, err := order.NewShopOrder(shopOrderID, orderID, shopID, p.Subtotal, items, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return engine.NewOrder{ShopOrder: so}, nil
}

func decodeJobCancelled(raw json.RawMessage) (engine.Event, error) {
	var p jobCancelledPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode job_cancelled: %w", err)
	}

	orderID, err := kernel.UUIDFromString(p.OrderID)
	if err != nil {
		return nil, err
	}
	return engine.JobCancelled{OrderID: orderID, Reason: p.Reason}, nil
}
