package order

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// Status represents the lifecycle state of a shop order.
// It implements a state machine with defined transitions to ensure
// orders follow the correct business workflow.
//
// State transitions:
//
//	Pending ──> Preparing ──> OutForDelivery ──> Delivered
//	   │            │
//	   └────────────┴──> Cancelled
//
// Transitions are monotonic except for the cancellation exit, which is
// reachable only from Pending or Preparing. Status is a value object that
// validates state transitions and provides the wire-format string
// representation used by the backing store.
type Status int

const (
	// Unknown represents an invalid or undefined status.
	// This value (0) helps catch uninitialized Status values.
	Unknown Status = iota

	// Pending is the initial status when a shop order is first created.
	// Orders in this status are waiting for the shop to start preparing them
	// and are subject to the five-minute auto-cancel window.
	Pending

	// Preparing indicates the shop accepted the order and is preparing it.
	// The ten-minute soft deadline applies while in this status.
	Preparing

	// OutForDelivery indicates the shop marked the order ready for delivery.
	OutForDelivery

	// Delivered indicates the order reached the customer. Terminal.
	Delivered

	// Cancelled indicates the order was cancelled before pickup. Terminal.
	Cancelled
)

func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:        "unknown",
		Pending:        "pending",
		Preparing:      "preparing",
		OutForDelivery: "out_for_delivery",
		Delivered:      "delivered",
		Cancelled:      "cancelled",
	}
}

func getValidStatusStrings() map[Status]string {
	//nolint:exhaustive // Unknown is intentionally excluded as it's invalid
	return map[Status]string{
		Pending:        "pending",
		Preparing:      "preparing",
		OutForDelivery: "out_for_delivery",
		Delivered:      "delivered",
		Cancelled:      "cancelled",
	}
}

// StatusFromString parses the wire-format status name arriving from the
// backing store. Returns an error for unrecognized names so malformed
// payloads are rejected at the boundary rather than leaking into the model.
func StatusFromString(s string) (Status, error) {
	for status, str := range getValidStatusStrings() {
		if str == s {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid status", s))
}

// Validate checks if the Status value is valid.
// Unknown (0) and any other out-of-range values are invalid.
func (s Status) Validate() error {
	if _, ok := getValidStatusStrings()[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// String returns the wire-format name of the status.
// Safe to call on any Status value, including invalid ones.
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "unknown"
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Cancelled
}

// ValidateCancel checks if the status allows cancellation without performing
// the transition. Cancellation is only reachable from Pending or Preparing;
// once the order is out for delivery it can no longer be cancelled.
func (s Status) ValidateCancel() error {
	if s != Pending && s != Preparing {
		return errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not a valid status to cancel", s.String()),
		)
	}
	return nil
}

// StartPreparing transitions the status to Preparing.
//
// Valid transitions:
//   - Pending -> Preparing (shop accepted the order)
//
// Returns (0, error) if the transition is not allowed from the current status.
func (s Status) StartPreparing() (Status, error) {
	if s != Pending {
		return 0, errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not a valid status to start preparing", s.String()),
		)
	}
	return Preparing, nil
}

// MarkReady transitions the status to OutForDelivery.
//
// Valid transitions:
//   - Preparing -> OutForDelivery (explicit "ready for delivery" action)
//
// Returns (0, error) if the transition is not allowed from the current status.
func (s Status) MarkReady() (Status, error) {
	if s != Preparing {
		return 0, errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not a valid status to mark ready", s.String()),
		)
	}
	return OutForDelivery, nil
}

// Deliver transitions the status to Delivered.
//
// Valid transitions:
//   - OutForDelivery -> Delivered
//
// Delivered is a final state with no further transitions possible.
func (s Status) Deliver() (Status, error) {
	if s != OutForDelivery {
		return 0, errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s is not a valid status to deliver", s.String()),
		)
	}
	return Delivered, nil
}

// Cancel transitions the status to Cancelled.
//
// Valid transitions:
//   - Pending -> Cancelled
//   - Preparing -> Cancelled
//
// Cancelled is a final state with no further transitions possible.
func (s Status) Cancel() (Status, error) {
	if err := s.ValidateCancel(); err != nil {
		return 0, err
	}
	return Cancelled, nil
}
