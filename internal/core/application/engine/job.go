package engine

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/session"
	"dispatch/internal/core/ports"
)

// ErrOrderNotReady is returned by ConfirmPickup while the shop order has not
// reached the ready-for-pickup status.
var ErrOrderNotReady = errors.New("order is not ready for pickup")

// Resume restores an in-flight job from the durable stage store after a
// reload, including the delivery fee owed on completion. When no record is
// stored, or the stored stage is not resumable, the session stays idle and
// nil is returned.
func (e *Engine) Resume(ctx context.Context, orderID kernel.UUID) error {
	rec, ok, err := e.stages.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !rec.Stage.IsResumable() {
		// A terminal stage should never have been stored; clean it up.
		if delErr := e.stages.Delete(ctx, orderID); delErr != nil {
			e.logger.WarnContext(ctx, "failed to clear stale stage", "order", orderID.String(), "error", delErr)
		}
		return nil
	}

	e.mu.Lock()
	err = e.sess.ResumeJob(orderID, rec.Stage)
	if err == nil {
		e.activeFee = rec.Fee
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "job resumed", "order", orderID.String(), "stage", rec.Stage.String())
	return nil
}

// ArriveAtRestaurant advances the job to the at-restaurant stage. Local-only:
// no backing-store counterpart exists for this transition.
func (e *Engine) ArriveAtRestaurant(ctx context.Context) error {
	return e.advanceLocal(ctx, (*session.DelivererSession).ArriveAtRestaurant)
}

// ArriveAtCustomer advances the job to the delivery-confirmation stage.
// Local-only.
func (e *Engine) ArriveAtCustomer(ctx context.Context) error {
	return e.advanceLocal(ctx, (*session.DelivererSession).ArriveAtCustomer)
}

// advanceLocal applies an optimistic local stage transition and persists the
// new stage. Persistence failures degrade resumability only and are not
// surfaced: the job keeps moving.
func (e *Engine) advanceLocal(ctx context.Context, transition func(*session.DelivererSession) error) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if err := transition(e.sess); err != nil {
		e.mu.Unlock()
		return err
	}
	orderID := *e.sess.CurrentOrderID()
	rec := ports.JobRecord{Stage: e.sess.Stage(), Fee: e.activeFee}
	e.mu.Unlock()

	if err := e.stages.Set(ctx, orderID, rec); err != nil {
		e.logger.WarnContext(ctx, "failed to persist job stage",
			"order", orderID.String(), "stage", rec.Stage.String(), "error", err)
	}
	return nil
}

// ConfirmPickup reports collection of the order at the shop. Gated twice: the
// job must be at the restaurant, and the shop order must have reached the
// ready-for-pickup status per the backing store's pushed state. The local
// transition applies only after the store confirms.
func (e *Engine) ConfirmPickup(ctx context.Context) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if !e.sess.HasActiveJob() {
		e.mu.Unlock()
		return session.ErrNoActiveJob
	}
	if _, err := e.sess.Stage().ConfirmPickup(); err != nil {
		e.mu.Unlock()
		return err
	}
	orderID := *e.sess.CurrentOrderID()
	if e.orderStatus[orderID] != order.OutForDelivery {
		e.mu.Unlock()
		return ErrOrderNotReady
	}
	e.mu.Unlock()

	if err := e.jobs.ConfirmPickup(ctx, orderID); err != nil {
		e.logger.WarnContext(ctx, "pickup confirmation failed", "order", orderID.String(), "error", err)
		return err
	}

	e.mu.Lock()
	current := e.sess.CurrentOrderID()
	if current == nil || !current.IsEqual(orderID) {
		// Cancelled remotely while the call was in flight; the store has both
		// facts, local state follows the later one.
		e.mu.Unlock()
		return session.ErrNoActiveJob
	}
	if err := e.sess.ConfirmPickup(); err != nil {
		e.mu.Unlock()
		return err
	}
	rec := ports.JobRecord{Stage: e.sess.Stage(), Fee: e.activeFee}
	e.mu.Unlock()

	if err := e.stages.Set(ctx, orderID, rec); err != nil {
		e.logger.WarnContext(ctx, "failed to persist job stage",
			"order", orderID.String(), "stage", rec.Stage.String(), "error", err)
	}
	e.logger.InfoContext(ctx, "pickup confirmed", "order", orderID.String())
	return nil
}

// ConfirmDelivery reports delivery completed at the customer. After the store
// confirms, the job enters the transient completed stage, one job credit is
// consumed, the persisted stage is cleared, and the delivery fee is accrued
// to the settlement ledger.
func (e *Engine) ConfirmDelivery(ctx context.Context) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if !e.sess.HasActiveJob() {
		e.mu.Unlock()
		return session.ErrNoActiveJob
	}
	if _, err := e.sess.Stage().CompleteDelivery(); err != nil {
		e.mu.Unlock()
		return err
	}
	orderID := *e.sess.CurrentOrderID()
	e.mu.Unlock()

	if err := e.jobs.ConfirmDelivery(ctx, orderID); err != nil {
		e.logger.WarnContext(ctx, "delivery confirmation failed", "order", orderID.String(), "error", err)
		return err
	}

	e.mu.Lock()
	current := e.sess.CurrentOrderID()
	if current == nil || !current.IsEqual(orderID) {
		e.mu.Unlock()
		return session.ErrNoActiveJob
	}
	if err := e.sess.CompleteDelivery(); err != nil {
		e.mu.Unlock()
		return err
	}
	delivererID := e.sess.DelivererID()
	fee := e.activeFee
	delete(e.orderStatus, orderID)
	e.mu.Unlock()

	if err := e.stages.Delete(ctx, orderID); err != nil {
		e.logger.WarnContext(ctx, "failed to clear persisted stage", "order", orderID.String(), "error", err)
	}
	if err := e.ledger.Accrue(ctx, delivererID, orderID, fee); err != nil {
		e.logger.ErrorContext(ctx, "settlement accrual failed",
			"order", orderID.String(), "fee", fee, "error", err)
	}

	e.logger.InfoContext(ctx, "delivery confirmed", "order", orderID.String(), "fee", fee)
	return nil
}

// AcknowledgeCompletion dismisses the completed-job summary, returning the
// session to idle and refreshing the candidate pool so new offers can flow
// immediately instead of waiting for the next scheduled poll.
func (e *Engine) AcknowledgeCompletion(ctx context.Context) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if err := e.sess.AcknowledgeCompletion(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.activeFee = 0
	e.mu.Unlock()

	if err := e.Poll(ctx); err != nil {
		e.logger.WarnContext(ctx, "post-completion poll failed", "error", err)
	}
	return nil
}

// CancelJob abandons the active job before pickup. The store is told first;
// only on success does the session release the job and the persisted stage
// get cleared.
func (e *Engine) CancelJob(ctx context.Context) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if !e.sess.HasActiveJob() {
		e.mu.Unlock()
		return session.ErrNoActiveJob
	}
	if _, err := e.sess.Stage().CancelByCourier(); err != nil {
		e.mu.Unlock()
		return err
	}
	orderID := *e.sess.CurrentOrderID()
	e.mu.Unlock()

	if err := e.jobs.CancelJob(ctx, orderID); err != nil {
		e.logger.WarnContext(ctx, "job cancellation failed", "order", orderID.String(), "error", err)
		return err
	}

	e.mu.Lock()
	current := e.sess.CurrentOrderID()
	if current != nil && current.IsEqual(orderID) {
		if err := e.sess.CancelJob(); err != nil {
			e.mu.Unlock()
			return err
		}
		e.activeFee = 0
		delete(e.orderStatus, orderID)
	}
	e.mu.Unlock()

	if err := e.stages.Delete(ctx, orderID); err != nil {
		e.logger.WarnContext(ctx, "failed to clear persisted stage", "order", orderID.String(), "error", err)
	}

	e.logger.InfoContext(ctx, "job cancelled by deliverer", "order", orderID.String())
	return nil
}
