// Package ports defines the contracts between the dispatch engine and its
// collaborators: the backing store of record (gateways), the durable
// stage store, and the settlement ledger. These interfaces enable dependency
// inversion and testability; the engine never assumes more than they promise.
//
// Authority for acceptance exclusivity rests entirely with the backing
// store's accept endpoint. The engine treats every gateway call as a single
// atomic decision point and commits local state only after success.
package ports

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
)

// ErrOfferTaken is returned by AssignmentGateway.Accept when the backing
// store already granted the assignment to another courier, or the assignment
// is no longer valid. It is the race-lost condition, distinguishable from a
// generic network failure; callers must not retry automatically.
var ErrOfferTaken = errors.New("offer no longer available")

// AssignmentGateway is the backing-store endpoint pair for delivery
// assignments.
type AssignmentGateway interface {
	// Poll retrieves the current candidate assignment pool for the logged-in
	// deliverer. The result is a full snapshot, not a delta.
	Poll(ctx context.Context) ([]offer.Offer, error)

	// Accept claims the assignment for this deliverer. At most one courier's
	// Accept succeeds per assignment; all competing calls receive
	// ErrOfferTaken. Any other error is a transient failure whose outcome is
	// unknown to the caller.
	Accept(ctx context.Context, assignmentID kernel.UUID) error
}

// JobGateway is the backing-store endpoint set for the active job's
// network-backed transitions. Each call either succeeds, in which case the
// corresponding local transition may be applied, or returns an error, in
// which case local state must stay unchanged.
type JobGateway interface {
	// ConfirmPickup reports the deliverer collected the order at the shop.
	ConfirmPickup(ctx context.Context, orderID kernel.UUID) error

	// ConfirmDelivery reports delivery and payment completed at the customer.
	ConfirmDelivery(ctx context.Context, orderID kernel.UUID) error

	// CancelJob abandons the job before pickup, re-opening the shop order for
	// reassignment.
	CancelJob(ctx context.Context, orderID kernel.UUID) error
}

// OrderGateway is the shop/auto-cancel side of the backing store.
type OrderGateway interface {
	// CancelOrder cancels a shop order with a reason. Used by the shop and by
	// the pending auto-cancel timer; assumed idempotent on the store side.
	CancelOrder(ctx context.Context, orderID kernel.UUID, reason string) error
}
