// Package offer provides the DeliveryAssignment candidate ("offer") value
// object and the distance-based reveal-delay policy that decides how long an
// offer stays hidden from a deliverer after creation.
package offer

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// ErrOfferIsNotConstructed is returned when an Offer instance was not created
// through the NewOffer factory method.
var ErrOfferIsNotConstructed = errors.New("Offer must be created via NewOffer constructor")

// Offer is a delivery assignment candidate not yet accepted by any courier.
// It is created by the backing store when a shop order becomes eligible for
// courier assignment and removed from the candidate pool on accept-by-anyone,
// explicit removal push, or local expiry.
//
// Offer is immutable once constructed; all lifecycle state (visibility,
// countdowns, consumption) lives in the engine, keyed by AssignmentID.
type Offer struct {
	assignmentID kernel.UUID
	orderID      kernel.UUID
	shopID       kernel.UUID
	createdAt    time.Time

	distanceKm  float64
	deliveryFee float64

	pickup          kernel.GeoPoint
	deliveryAddress string

	isConstructed bool
}

// NewOffer creates an Offer with validation.
//
// distanceKm may be kernel.UnknownDistance (or any negative value, which is
// normalized to the sentinel) when the deliverer's position is unavailable;
// the reveal-delay policy then applies its unknown-distance fallback. pickup
// may be a zero GeoPoint for shops without geocoded locations.
func NewOffer(
	assignmentID kernel.UUID,
	orderID kernel.UUID,
	shopID kernel.UUID,
	createdAt time.Time,
	distanceKm float64,
	deliveryFee float64,
	pickup kernel.GeoPoint,
	deliveryAddress string,
) (Offer, error) {
	o := Offer{
		pickup:          pickup,
		deliveryAddress: deliveryAddress,
		isConstructed:   true,
	}

	if err := errors.Join(
		o.setIDs(assignmentID, orderID, shopID),
		o.setCreatedAt(createdAt),
		o.setDeliveryFee(deliveryFee),
	); err != nil {
		return Offer{}, err
	}

	if kernel.IsUnknownDistance(distanceKm) {
		o.distanceKm = kernel.UnknownDistance
	} else {
		o.distanceKm = distanceKm
	}

	return o, nil
}

// Validate ensures the Offer was properly constructed through NewOffer.
func (o Offer) Validate() error {
	if !o.isConstructed {
		return ErrOfferIsNotConstructed
	}
	return nil
}

// AssignmentID returns the unique assignment identifier.
func (o Offer) AssignmentID() kernel.UUID {
	return o.assignmentID
}

// OrderID returns the shop order this assignment would deliver.
func (o Offer) OrderID() kernel.UUID {
	return o.orderID
}

// ShopID returns the shop the order is picked up from.
func (o Offer) ShopID() kernel.UUID {
	return o.shopID
}

// CreatedAt returns when the backing store created the assignment. The reveal
// delay is measured from this instant, not from local receipt.
func (o Offer) CreatedAt() time.Time {
	return o.createdAt
}

// DistanceKm returns the deliverer-to-pickup distance, or
// kernel.UnknownDistance when it could not be computed.
func (o Offer) DistanceKm() float64 {
	return o.distanceKm
}

// HasKnownDistance reports whether a distance was computed for this offer.
func (o Offer) HasKnownDistance() bool {
	return !kernel.IsUnknownDistance(o.distanceKm)
}

// DeliveryFee returns the fee the deliverer earns on completion.
func (o Offer) DeliveryFee() float64 {
	return o.deliveryFee
}

// Pickup returns the pickup location. May be a zero GeoPoint; check with
// Validate before computing distances from it.
func (o Offer) Pickup() kernel.GeoPoint {
	return o.pickup
}

// DeliveryAddress returns the customer's address text.
func (o Offer) DeliveryAddress() string {
	return o.deliveryAddress
}

// RevealDelay returns the fairness window for this offer's distance.
func (o Offer) RevealDelay() time.Duration {
	return RevealDelay(o.distanceKm)
}

func (o *Offer) setIDs(assignmentID, orderID, shopID kernel.UUID) error {
	if err := errors.Join(assignmentID.Validate(), orderID.Validate(), shopID.Validate()); err != nil {
		return err
	}
	o.assignmentID = assignmentID
	o.orderID = orderID
	o.shopID = shopID
	return nil
}

func (o *Offer) setCreatedAt(createdAt time.Time) error {
	if createdAt.IsZero() {
		return errs.NewValueIsRequiredError("createdAt")
	}
	o.createdAt = createdAt
	return nil
}

func (o *Offer) setDeliveryFee(fee float64) error {
	if fee < 0 {
		return errs.NewValueIsInvalidErrorWithCause("deliveryFee", fmt.Errorf("%g is negative", fee))
	}
	o.deliveryFee = fee
	return nil
}
