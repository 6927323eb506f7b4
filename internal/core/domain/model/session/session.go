package session

import (
	"errors"
	"fmt"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// Domain errors for deliverer session operations.
var (
	// ErrSessionIsNotConstructed is returned when using an improperly
	// initialized DelivererSession.
	ErrSessionIsNotConstructed = errors.New("DelivererSession must be created via NewDelivererSession constructor")
	// ErrNoJobCredit is returned when going online with an exhausted
	// job-credit balance.
	ErrNoJobCredit = errors.New("job credit balance is exhausted")
	// ErrAlreadyOnJob is returned when starting a job while another is active.
	ErrAlreadyOnJob = errors.New("deliverer already has an active job")
	// ErrNoActiveJob is returned when a job operation runs without an active job.
	ErrNoActiveJob = errors.New("deliverer has no active job")
	// ErrOffline is returned when a job is started while the session is offline.
	ErrOffline = errors.New("deliverer session is offline")
)

// DelivererSession is the client-side aggregate for one logged-in deliverer.
// It owns the online flag, the at-most-one active job reference with its
// stage, and the job-credit balance that gates online eligibility.
//
// The session is owned by the engine, one instance per deliverer, and is
// reset on sign-out or going offline. The backing store never mutates it.
type DelivererSession struct {
	delivererID    kernel.UUID
	isOnline       bool
	currentOrderID *kernel.UUID
	stage          Stage
	jobCredit      int

	isConstructed bool
}

// NewDelivererSession creates a session for the given deliverer with the
// job-credit balance reported at login.
func NewDelivererSession(delivererID kernel.UUID, jobCredit int) (*DelivererSession, error) {
	s := &DelivererSession{
		stage:         StageNone,
		isConstructed: true,
	}

	if err := errors.Join(
		s.setDelivererID(delivererID),
		s.setJobCredit(jobCredit),
	); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate ensures the session was created through NewDelivererSession.
func (s *DelivererSession) Validate() error {
	if s == nil || !s.isConstructed {
		return ErrSessionIsNotConstructed
	}
	return nil
}

// DelivererID returns the deliverer this session belongs to.
func (s *DelivererSession) DelivererID() kernel.UUID {
	return s.delivererID
}

// IsOnline reports whether the deliverer is accepting work.
func (s *DelivererSession) IsOnline() bool {
	return s.isOnline
}

// CurrentOrderID returns the active job's order id, or nil when idle.
func (s *DelivererSession) CurrentOrderID() *kernel.UUID {
	return s.currentOrderID
}

// Stage returns the active job's stage, StageNone when idle.
func (s *DelivererSession) Stage() Stage {
	return s.stage
}

// JobCredit returns the remaining job-credit balance.
func (s *DelivererSession) JobCredit() int {
	return s.jobCredit
}

// HasActiveJob reports whether a job is in progress, including the transient
// completed-awaiting-acknowledgement state.
func (s *DelivererSession) HasActiveJob() bool {
	return s.currentOrderID != nil
}

// IsEligibleForOffers reports whether the visibility gate may show offers:
// online with no active job.
func (s *DelivererSession) IsEligibleForOffers() bool {
	return s.isOnline && !s.HasActiveJob()
}

// GoOnline marks the deliverer as accepting work. Requires a positive
// job-credit balance.
func (s *DelivererSession) GoOnline() error {
	if s.jobCredit <= 0 {
		return ErrNoJobCredit
	}
	s.isOnline = true
	return nil
}

// GoOffline marks the deliverer as unavailable. An active job survives going
// offline; only offer visibility stops.
func (s *DelivererSession) GoOffline() {
	s.isOnline = false
}

// StartJob records a successfully accepted assignment: the session takes the
// order as its single active job at the initial stage.
func (s *DelivererSession) StartJob(orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}
	if !s.isOnline {
		return ErrOffline
	}
	if s.HasActiveJob() {
		return ErrAlreadyOnJob
	}

	s.currentOrderID = &orderID
	s.stage = TravelingToRestaurant
	return nil
}

// ResumeJob restores an in-flight job from the durable stage store after a
// reload. Only resumable (non-terminal) stages are accepted.
func (s *DelivererSession) ResumeJob(orderID kernel.UUID, stage Stage) error {
	if err := orderID.Validate(); err != nil {
		return err
	}
	if !stage.IsResumable() {
		return errs.NewValueIsInvalidErrorWithCause(
			"stage",
			fmt.Errorf("%s is not a resumable stage", stage.String()),
		)
	}
	if s.HasActiveJob() {
		return ErrAlreadyOnJob
	}

	s.currentOrderID = &orderID
	s.stage = stage
	return nil
}

// ArriveAtRestaurant advances the active job's stage. Local-only.
func (s *DelivererSession) ArriveAtRestaurant() error {
	return s.advance(Stage.ArriveAtRestaurant)
}

// ConfirmPickup advances the active job's stage after a confirmed pickup.
func (s *DelivererSession) ConfirmPickup() error {
	return s.advance(Stage.ConfirmPickup)
}

// ArriveAtCustomer advances the active job's stage. Local-only.
func (s *DelivererSession) ArriveAtCustomer() error {
	return s.advance(Stage.ArriveAtCustomer)
}

// CompleteDelivery advances the active job to the transient Completed stage
// after a confirmed delivery, consuming one job credit.
func (s *DelivererSession) CompleteDelivery() error {
	if err := s.advance(Stage.CompleteDelivery); err != nil {
		return err
	}
	if s.jobCredit > 0 {
		s.jobCredit--
	}
	return nil
}

// AcknowledgeCompletion clears the completed job, returning the session to
// the idle state so offer visibility can resume.
func (s *DelivererSession) AcknowledgeCompletion() error {
	if !s.HasActiveJob() {
		return ErrNoActiveJob
	}
	if s.stage != Completed {
		return errs.NewValueIsInvalidErrorWithCause(
			"stage",
			fmt.Errorf("%s is not a valid stage to acknowledge", s.stage.String()),
		)
	}

	s.currentOrderID = nil
	s.stage = StageNone
	return nil
}

// CancelJob abandons the active job before pickup, freeing the session for
// new offers.
func (s *DelivererSession) CancelJob() error {
	if !s.HasActiveJob() {
		return ErrNoActiveJob
	}
	if _, err := s.stage.CancelByCourier(); err != nil {
		return err
	}

	s.currentOrderID = nil
	s.stage = StageNone
	return nil
}

// AddJobCredit tops the balance up.
func (s *DelivererSession) AddJobCredit(n int) error {
	if n <= 0 {
		return errs.NewValueIsInvalidErrorWithCause("credit", fmt.Errorf("%d is not positive", n))
	}
	s.jobCredit += n
	return nil
}

func (s *DelivererSession) advance(transition func(Stage) (Stage, error)) error {
	if !s.HasActiveJob() {
		return ErrNoActiveJob
	}

	next, err := transition(s.stage)
	if err != nil {
		return err
	}

	s.stage = next
	return nil
}

func (s *DelivererSession) setDelivererID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s.delivererID = id
	return nil
}

func (s *DelivererSession) setJobCredit(credit int) error {
	if credit < 0 {
		return errs.NewValueIsInvalidErrorWithCause("jobCredit", fmt.Errorf("%d is negative", credit))
	}
	s.jobCredit = credit
	return nil
}
