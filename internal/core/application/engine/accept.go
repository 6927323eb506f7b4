package engine

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/session"
	"dispatch/internal/core/ports"
)

// Accept-path errors surfaced to the UI layer.
var (
	// ErrOfferNotVisible is returned when accepting an assignment that is not
	// in the visible set (never revealed, already expired, or evicted).
	ErrOfferNotVisible = errors.New("offer is not visible")

	// ErrAcceptInFlight is returned when an accept is attempted while another
	// accept call is still awaiting the backing store's verdict.
	ErrAcceptInFlight = errors.New("another accept is awaiting confirmation")
)

// AttemptAccept claims a visible assignment for this deliverer. The backing
// store is the sole arbiter: exactly one courier's accept succeeds per
// assignment.
//
// On success the session takes the order as its active job, the initial stage
// is persisted for resumability, and the whole candidate pool is cleared. A
// ports.ErrOfferTaken result means another courier won the race: the offer is
// removed and the error is returned for the UI to surface; no retry. Any
// other error leaves local state untouched so the deliverer may retry, except
// when the acceptance countdown elapsed during the call: the suppressed
// expiry then completes, since a retry against an expired offer is pointless.
func (e *Engine) AttemptAccept(ctx context.Context, assignmentID kernel.UUID) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.sess.HasActiveJob() {
		e.mu.Unlock()
		return session.ErrAlreadyOnJob
	}

	entry, ok := e.visible[assignmentID]
	if !ok {
		e.mu.Unlock()
		return ErrOfferNotVisible
	}
	if entry.acceptInFlight {
		e.mu.Unlock()
		return ErrAcceptInFlight
	}
	entry.acceptInFlight = true
	accepted := entry.offer
	e.mu.Unlock()

	err := e.assignments.Accept(ctx, assignmentID)

	e.mu.Lock()
	if cur, ok := e.visible[assignmentID]; ok {
		cur.acceptInFlight = false
	}

	switch {
	case err == nil:
		if startErr := e.sess.StartJob(accepted.OrderID()); startErr != nil {
			// The store granted the assignment but the session cannot take it
			// (went offline mid-call). The store's verdict stands; surface the
			// inconsistency instead of silently dropping an owned job.
			e.mu.Unlock()
			e.logger.ErrorContext(ctx, "accepted assignment could not start job",
				"assignment", assignmentID.String(), "error", startErr)
			return startErr
		}
		e.activeFee = accepted.DeliveryFee()
		e.clearGateLocked()
		e.mu.Unlock()

		rec := ports.JobRecord{Stage: session.TravelingToRestaurant, Fee: accepted.DeliveryFee()}
		if setErr := e.stages.Set(ctx, accepted.OrderID(), rec); setErr != nil {
			e.logger.WarnContext(ctx, "failed to persist job stage",
				"order", accepted.OrderID().String(), "error", setErr)
		}
		e.logger.InfoContext(ctx, "assignment accepted",
			"assignment", assignmentID.String(), "order", accepted.OrderID().String())
		if e.hooks.OnOfferAccepted != nil {
			e.hooks.OnOfferAccepted(assignmentID)
		}
		return nil

	case errors.Is(err, ports.ErrOfferTaken):
		e.removeOfferLocked(assignmentID)
		e.mu.Unlock()

		e.logger.InfoContext(ctx, "assignment lost to another courier", "assignment", assignmentID.String())
		if e.hooks.OnOfferRejected != nil {
			e.hooks.OnOfferRejected(assignmentID)
		}
		return err

	default:
		// An expiry that fired mid-call was suppressed in favor of the
		// store's verdict; with the call failed transiently, the countdown
		// still stands and must complete here or the entry never leaves.
		timedOut := false
		if cur, ok := e.visible[assignmentID]; ok && !e.sched.Now().Before(cur.deadline) {
			cur.timer.Stop()
			delete(e.visible, assignmentID)
			timedOut = true
		}
		e.mu.Unlock()

		e.logger.WarnContext(ctx, "accept call failed", "assignment", assignmentID.String(), "error", err)
		if timedOut {
			e.logger.Debug("offer expired", "assignment", assignmentID.String())
			if e.hooks.OnOfferTimeout != nil {
				e.hooks.OnOfferTimeout(assignmentID)
			}
		}
		return err
	}
}
