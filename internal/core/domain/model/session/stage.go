package session

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// Stage represents the deliverer's step within an active job.
// It implements a state machine with defined transitions mirroring the
// physical delivery flow.
//
// State transitions:
//
//	TravelingToRestaurant ──> AtRestaurant ──> TravelingToCustomer ──> ConfirmingDelivery ──> Completed
//	          │                    │
//	          └────────────────────┴──> CancelledByCourier
//
// The cancel exit is reachable only from the first two stages, mirroring the
// shop-side rule that cancellation is impossible once the order is picked up.
// Stage values are persisted in their wire-format string form so a reload
// resumes the correct stage.
type Stage int

const (
	// StageNone represents "no active job". It is the zero value and is not a
	// valid persisted stage.
	StageNone Stage = iota

	// TravelingToRestaurant is the initial stage after a successful accept.
	TravelingToRestaurant

	// AtRestaurant indicates the deliverer arrived at the pickup location.
	AtRestaurant

	// TravelingToCustomer indicates pickup was confirmed and the deliverer is
	// en route to the customer.
	TravelingToCustomer

	// ConfirmingDelivery indicates the deliverer arrived at the customer and
	// is collecting payment/confirmation.
	ConfirmingDelivery

	// Completed indicates delivery and payment were confirmed. Transient
	// review state; a final acknowledgement clears the active job.
	Completed

	// CancelledByCourier indicates the deliverer abandoned the job before
	// pickup. Terminal.
	CancelledByCourier
)

func getStageStrings() map[Stage]string {
	return map[Stage]string{
		StageNone:             "none",
		TravelingToRestaurant: "traveling_to_restaurant",
		AtRestaurant:          "at_restaurant",
		TravelingToCustomer:   "traveling_to_customer",
		ConfirmingDelivery:    "confirming_delivery",
		Completed:             "completed",
		CancelledByCourier:    "cancelled_by_courier",
	}
}

func getValidStageStrings() map[Stage]string {
	//nolint:exhaustive // StageNone is intentionally excluded as it's not persistable
	return map[Stage]string{
		TravelingToRestaurant: "traveling_to_restaurant",
		AtRestaurant:          "at_restaurant",
		TravelingToCustomer:   "traveling_to_customer",
		ConfirmingDelivery:    "confirming_delivery",
		Completed:             "completed",
		CancelledByCourier:    "cancelled_by_courier",
	}
}

// StageFromString parses the persisted wire-format stage name.
func StageFromString(s string) (Stage, error) {
	for stage, str := range getValidStageStrings() {
		if str == s {
			return stage, nil
		}
	}
	return StageNone, errs.NewValueIsInvalidErrorWithCause("stage", fmt.Errorf("%q is not a valid stage", s))
}

// Validate checks if the Stage value is a valid job stage.
// StageNone and out-of-range values are invalid.
func (s Stage) Validate() error {
	if _, ok := getValidStageStrings()[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("stage", fmt.Errorf("%d is not a valid stage", s))
	}
	return nil
}

// String returns the wire-format name of the stage.
func (s Stage) String() string {
	if str, ok := getStageStrings()[s]; ok {
		return str
	}
	return "none"
}

// IsTerminal reports whether the job flow is over for this stage.
func (s Stage) IsTerminal() bool {
	return s == Completed || s == CancelledByCourier
}

// IsResumable reports whether a persisted stage represents an in-flight job a
// reload should resume.
func (s Stage) IsResumable() bool {
	return s.Validate() == nil && !s.IsTerminal()
}

// ValidateCancelByCourier checks whether the courier may abandon the job from
// this stage without performing the transition. Allowed only before pickup.
func (s Stage) ValidateCancelByCourier() error {
	if s != TravelingToRestaurant && s != AtRestaurant {
		return errs.NewValueIsInvalidErrorWithCause(
			"stage",
			fmt.Errorf("%s is not a valid stage to cancel", s.String()),
		)
	}
	return nil
}

// ArriveAtRestaurant transitions TravelingToRestaurant -> AtRestaurant.
// Local-only transition; no backing-store call is associated with it.
func (s Stage) ArriveAtRestaurant() (Stage, error) {
	if s != TravelingToRestaurant {
		return 0, errs.NewValueIsInvalidErrorWithCause(
			"stage",
			fmt.Errorf("%s is not a valid stage to arrive at the restaurant", s.String()),
		)
	}
	return AtRestaurant, nil
}

// ConfirmPickup transitions AtRestaurant -> TravelingToCustomer.
// Callers must only apply it after a successful backing-store pickup
// confirmation.
func (s Stage) ConfirmPickup() (Stage, error) {
	if s != AtRestaurant {
		return 0, errs.NewValueIsInvalidErrorWithCause(
			"stage",
			fmt.Errorf("%s is not a valid stage to confirm pickup", s.String()),
		)
	}
	return TravelingToCustomer, nil
}

// ArriveAtCustomer transitions TravelingToCustomer -> ConfirmingDelivery.
// Local-only arrival gesture.
func (s Stage) ArriveAtCustomer() (Stage, error) {
	if s != TravelingToCustomer {
		return 0, errs.NewValueIsInvalidErrorWithCause(
			"stage",
			fmt.Errorf("%s is not a valid stage to arrive at the customer", s.String()),
		)
	}
	return ConfirmingDelivery, nil
}

// CompleteDelivery transitions ConfirmingDelivery -> Completed.
// Callers must only apply it after a successful delivery-and-payment
// confirmation.
func (s Stage) CompleteDelivery() (Stage, error) {
	if s != ConfirmingDelivery {
		return 0, errs.NewValueIsInvalidErrorWithCause(
			"stage",
			fmt.Errorf("%s is not a valid stage to complete delivery", s.String()),
		)
	}
	return Completed, nil
}

// CancelByCourier exits the flow before pickup.
func (s Stage) CancelByCourier() (Stage, error) {
	if err := s.ValidateCancelByCourier(); err != nil {
		return 0, err
	}
	return CancelledByCourier, nil
}
