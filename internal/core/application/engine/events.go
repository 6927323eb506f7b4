package engine

import (
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
	"dispatch/internal/core/domain/model/order"
)

// Event is the tagged union of push-channel events feeding the engine. The
// same logical event may also arrive through a polling refresh; consumers
// reconcile idempotently, so duplicate delivery is harmless.
//
// Variants are parsed and validated at the adapter boundary; by the time an
// Event reaches the engine its payload is well-formed.
type Event interface {
	isEvent()
}

// AssignmentOffered announces a new delivery assignment candidate for this
// deliverer.
type AssignmentOffered struct {
	Offer offer.Offer
}

// AssignmentRemoved announces that an assignment left the candidate pool:
// someone accepted it or the store withdrew it. Evicts the assignment from
// the deferred queue and the visible set regardless of in-flight timers.
type AssignmentRemoved struct {
	AssignmentID kernel.UUID
}

// OrderStatusChanged reflects the backing store's authoritative shop-order
// status.
type OrderStatusChanged struct {
	OrderID kernel.UUID
	Status  order.Status
}

// NewOrder announces an incoming customer order to the shop actor.
type NewOrder struct {
	ShopOrder *order.ShopOrder
}

// JobCancelled announces that the deliverer's active job was cancelled
// remotely (shop or store side).
type JobCancelled struct {
	OrderID kernel.UUID
	Reason  string
}

func (AssignmentOffered) isEvent()  {}
func (AssignmentRemoved) isEvent()  {}
func (OrderStatusChanged) isEvent() {}
func (NewOrder) isEvent()           {}
func (JobCancelled) isEvent()       {}
