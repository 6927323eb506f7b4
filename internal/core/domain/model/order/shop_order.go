package order

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

var (
	// ErrShopOrderIsNotConstructed is returned when a ShopOrder instance was not
	// created through the NewShopOrder factory method.
	ErrShopOrderIsNotConstructed = errors.New("ShopOrder must be created via NewShopOrder constructor")

	// ErrAlreadyPickedUp is returned when a cancellation or reassignment is
	// attempted after the deliverer has picked the order up.
	ErrAlreadyPickedUp = errors.New("shop order has already been picked up")
)

// Item is one line of a shop order.
type Item struct {
	Name     string
	Quantity int
	Price    float64
}

// ShopOrder is the per-shop slice of a customer order. It owns the shop-side
// lifecycle: the status state machine, the timestamps the timers are derived
// from, and the deliverer assignment reference.
//
// ShopOrder follows these invariants:
//   - Must have valid identifiers and a creation timestamp
//   - Status transitions follow the Status state machine
//   - Cancellation requires status in {Pending, Preparing} and no pickup yet
//   - Can only be created through the NewShopOrder constructor
type ShopOrder struct {
	id      kernel.UUID
	orderID kernel.UUID
	shopID  kernel.UUID

	status   Status
	subtotal float64
	items    []Item

	assignedDeliverer *kernel.UUID

	createdAt          time.Time
	preparingStartedAt *time.Time
	pickedUpAt         *time.Time
	deliveredAt        *time.Time

	cancelReason string

	isConstructed bool
}

// NewShopOrder creates a ShopOrder in Pending status with validation.
//
// Parameters:
//   - id: unique identifier of the shop order
//   - orderID: identifier of the parent customer order
//   - shopID: identifier of the shop fulfilling this slice
//   - subtotal: non-negative sum of the item prices
//   - items: at least one order line
//   - createdAt: order creation time, the anchor for the auto-cancel window
func NewShopOrder(
	id kernel.UUID,
	orderID kernel.UUID,
	shopID kernel.UUID,
	subtotal float64,
	items []Item,
	createdAt time.Time,
) (*ShopOrder, error) {
	so := &ShopOrder{
		status:        Pending,
		isConstructed: true,
	}

	if err := errors.Join(
		so.setIDs(id, orderID, shopID),
		so.setSubtotal(subtotal),
		so.setItems(items),
		so.setCreatedAt(createdAt),
	); err != nil {
		return nil, err
	}

	return so, nil
}

// Validate ensures the ShopOrder instance was properly constructed through
// NewShopOrder. Called when reconstructing from external payloads.
func (so *ShopOrder) Validate() error {
	if so == nil || !so.isConstructed {
		return ErrShopOrderIsNotConstructed
	}
	return nil
}

// IsEqual compares two shop orders by identifier.
func (so *ShopOrder) IsEqual(other *ShopOrder) bool {
	return other != nil && so.id.IsEqual(other.id)
}

// ID returns the shop order's unique identifier.
func (so *ShopOrder) ID() kernel.UUID {
	return so.id
}

// OrderID returns the identifier of the parent customer order.
func (so *ShopOrder) OrderID() kernel.UUID {
	return so.orderID
}

// ShopID returns the identifier of the fulfilling shop.
func (so *ShopOrder) ShopID() kernel.UUID {
	return so.shopID
}

// Status returns the current shop-side status.
func (so *ShopOrder) Status() Status {
	return so.status
}

// Subtotal returns the sum of the item prices.
func (so *ShopOrder) Subtotal() float64 {
	return so.subtotal
}

// Items returns a copy of the order lines.
func (so *ShopOrder) Items() []Item {
	items := make([]Item, len(so.items))
	copy(items, so.items)
	return items
}

// AssignedDeliverer returns the assigned deliverer's ID, or nil when the order
// is unassigned.
func (so *ShopOrder) AssignedDeliverer() *kernel.UUID {
	return so.assignedDeliverer
}

// CreatedAt returns the order creation time.
func (so *ShopOrder) CreatedAt() time.Time {
	return so.createdAt
}

// PreparingStartedAt returns when the shop started preparing, or nil if the
// shop never advanced the order.
func (so *ShopOrder) PreparingStartedAt() *time.Time {
	return so.preparingStartedAt
}

// PreparingClockStart returns the anchor instant for the preparing soft
// deadline: the explicit preparing-started timestamp when present, otherwise
// the order creation time.
func (so *ShopOrder) PreparingClockStart() time.Time {
	if so.preparingStartedAt != nil {
		return *so.preparingStartedAt
	}
	return so.createdAt
}

// PickedUpAt returns when the deliverer picked the order up, or nil.
func (so *ShopOrder) PickedUpAt() *time.Time {
	return so.pickedUpAt
}

// DeliveredAt returns when the order reached the customer, or nil.
func (so *ShopOrder) DeliveredAt() *time.Time {
	return so.deliveredAt
}

// CancelReason returns the recorded cancellation reason, empty unless the
// order is cancelled.
func (so *ShopOrder) CancelReason() string {
	return so.cancelReason
}

// StartPreparing moves the order from Pending to Preparing and records the
// instant the preparing soft deadline is measured from.
func (so *ShopOrder) StartPreparing(at time.Time) error {
	newStatus, err := so.status.StartPreparing()
	if err != nil {
		return err
	}

	so.status = newStatus
	so.preparingStartedAt = &at
	return nil
}

// MarkReady moves the order from Preparing to OutForDelivery. This is the
// explicit "ready for delivery" action; it unblocks the deliverer's pickup
// confirmation.
func (so *ShopOrder) MarkReady() error {
	newStatus, err := so.status.MarkReady()
	if err != nil {
		return err
	}

	so.status = newStatus
	return nil
}

// AssignDeliverer records the deliverer that accepted the matching delivery
// assignment. Allowed any time before pickup; reassignment after a courier
// cancellation overwrites the previous reference.
func (so *ShopOrder) AssignDeliverer(delivererID kernel.UUID) error {
	if err := delivererID.Validate(); err != nil {
		return err
	}
	if so.status.IsTerminal() {
		return errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not a valid status to assign a deliverer", so.status.String()),
		)
	}
	if so.pickedUpAt != nil {
		return ErrAlreadyPickedUp
	}

	so.assignedDeliverer = &delivererID
	return nil
}

// UnassignDeliverer clears the deliverer reference after a courier-side
// cancellation, re-opening the shop order for reassignment. Blocked once the
// order has been picked up.
func (so *ShopOrder) UnassignDeliverer() error {
	if so.pickedUpAt != nil {
		return ErrAlreadyPickedUp
	}

	so.assignedDeliverer = nil
	return nil
}

// MarkPickedUp records the pickup confirmation. Requires OutForDelivery
// status and an assigned deliverer; after this instant cancellation is
// permanently unavailable.
func (so *ShopOrder) MarkPickedUp(at time.Time) error {
	if so.status != OutForDelivery {
		return errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not a valid status to pick up", so.status.String()),
		)
	}
	if so.assignedDeliverer == nil {
		return errs.NewValueIsRequiredError("assignedDeliverer")
	}

	so.pickedUpAt = &at
	return nil
}

// MarkDelivered completes the shop order. Settlement side effects are
// triggered by collaborating components, not here.
func (so *ShopOrder) MarkDelivered(at time.Time) error {
	newStatus, err := so.status.Deliver()
	if err != nil {
		return err
	}

	so.status = newStatus
	so.deliveredAt = &at
	return nil
}

// Cancel exits the lifecycle with a reason. Only reachable from Pending or
// Preparing and only before pickup; the pickup gate is checked explicitly so
// the error distinguishes the two refusals.
func (so *ShopOrder) Cancel(reason string) error {
	if so.pickedUpAt != nil {
		return ErrAlreadyPickedUp
	}

	newStatus, err := so.status.Cancel()
	if err != nil {
		return err
	}

	so.status = newStatus
	so.cancelReason = reason
	return nil
}

// ApplyStatus overwrites the status with the backing store's authoritative
// record, bypassing local transition checks. The store owns this field; the
// engine only reflects it.
func (so *ShopOrder) ApplyStatus(status Status) error {
	if err := status.Validate(); err != nil {
		return err
	}

	so.status = status
	return nil
}

func (so *ShopOrder) setIDs(id, orderID, shopID kernel.UUID) error {
	if err := errors.Join(id.Validate(), orderID.Validate(), shopID.Validate()); err != nil {
		return err
	}
	so.id = id
	so.orderID = orderID
	so.shopID = shopID
	return nil
}

func (so *ShopOrder) setSubtotal(subtotal float64) error {
	if subtotal < 0 {
		return errs.NewValueIsInvalidErrorWithCause("subtotal", fmt.Errorf("%g is negative", subtotal))
	}
	so.subtotal = subtotal
	return nil
}

func (so *ShopOrder) setItems(items []Item) error {
	if len(items) == 0 {
		return errs.NewValueIsRequiredError("items")
	}
	so.items = make([]Item, len(items))
	copy(so.items, items)
	return nil
}

func (so *ShopOrder) setCreatedAt(createdAt time.Time) error {
	if createdAt.IsZero() {
		return errs.NewValueIsRequiredError("createdAt")
	}
	so.createdAt = createdAt
	return nil
}
