package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/session"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/clock"
	"dispatch/internal/pkg/errs"
)

// ErrEngineClosed is returned by operations on a torn-down engine.
var ErrEngineClosed = errors.New("engine is closed")

// Hooks are the engine's outbound signals to the UI layer. All hooks are
// optional; nil hooks are skipped. Hooks are invoked with the engine mutex
// released, so a hook may call back into the engine.
type Hooks struct {
	// OnOfferVisible fires when an offer enters the visible set.
	OnOfferVisible func(o offer.Offer)

	// OnOfferTimeout fires exactly once when a visible offer's acceptance
	// countdown elapses without an accept.
	OnOfferTimeout func(assignmentID kernel.UUID)

	// OnOfferAccepted fires after the backing store confirmed this
	// deliverer's accept.
	OnOfferAccepted func(assignmentID kernel.UUID)

	// OnOfferRejected fires when an accept lost the race ("offer no longer
	// available"), distinct from transient network failures.
	OnOfferRejected func(assignmentID kernel.UUID)

	// OnJobCancelledRemotely fires when the active job is cancelled by the
	// shop or the backing store.
	OnJobCancelledRemotely func(orderID kernel.UUID, reason string)
}

// Engine is the courier-side dispatch engine: one instance per logged-in
// deliverer. It owns the deliverer session, the visible-offer set with its
// reveal and acceptance timers, and the active job's stage progression.
//
// All exported methods are safe for concurrent use. Gateway calls are issued
// with the engine mutex released; their results are re-validated against
// current state on reacquisition, and the backing store's verdict always wins
// over optimistic local state.
type Engine struct {
	mu     sync.Mutex
	sched  clock.Scheduler
	logger *slog.Logger

	sess        *session.DelivererSession
	assignments ports.AssignmentGateway
	jobs        ports.JobGateway
	stages      ports.StageStore
	ledger      ports.SettlementLedger
	hooks       Hooks

	// visible and pendingReveal together form the candidate pool state:
	// pendingReveal holds offers waiting out their reveal delay, visible the
	// revealed ones counting down their acceptance window.
	visible       map[kernel.UUID]*visibleEntry
	pendingReveal map[kernel.UUID]*pendingEntry

	// orderStatus mirrors the backing store's shop-order statuses for the
	// pickup gate. Observed only, never locally overridden.
	orderStatus map[kernel.UUID]order.Status

	// activeFee is the delivery fee of the current job, captured on accept
	// and restored from the stage store on resume.
	activeFee float64

	closed bool
}

// NewEngine creates a courier-side engine for the given session.
func NewEngine(
	sched clock.Scheduler,
	sess *session.DelivererSession,
	assignments ports.AssignmentGateway,
	jobs ports.JobGateway,
	stages ports.StageStore,
	ledger ports.SettlementLedger,
	hooks Hooks,
	logger *slog.Logger,
) (*Engine, error) {
	if sched == nil {
		return nil, errs.NewValueIsRequiredError("sched")
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if assignments == nil {
		return nil, errs.NewValueIsRequiredError("assignments")
	}
	if jobs == nil {
		return nil, errs.NewValueIsRequiredError("jobs")
	}
	if stages == nil {
		return nil, errs.NewValueIsRequiredError("stages")
	}
	if ledger == nil {
		return nil, errs.NewValueIsRequiredError("ledger")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		sched:         sched,
		logger:        logger.With("component", "engine", "deliverer", sess.DelivererID().String()),
		sess:          sess,
		assignments:   assignments,
		jobs:          jobs,
		stages:        stages,
		ledger:        ledger,
		hooks:         hooks,
		visible:       make(map[kernel.UUID]*visibleEntry),
		pendingReveal: make(map[kernel.UUID]*pendingEntry),
		orderStatus:   make(map[kernel.UUID]order.Status),
	}, nil
}

// Session returns a read snapshot of the deliverer session state.
func (e *Engine) Session() SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := SessionSnapshot{
		DelivererID: e.sess.DelivererID(),
		IsOnline:    e.sess.IsOnline(),
		Stage:       e.sess.Stage(),
		JobCredit:   e.sess.JobCredit(),
	}
	if id := e.sess.CurrentOrderID(); id != nil {
		v := *id
		snap.CurrentOrderID = &v
	}
	return snap
}

// SessionSnapshot is a point-in-time copy of the deliverer session exposed to
// UI layers.
type SessionSnapshot struct {
	DelivererID    kernel.UUID
	IsOnline       bool
	CurrentOrderID *kernel.UUID
	Stage          session.Stage
	JobCredit      int
}

// SetOnline marks the deliverer as accepting work. Requires a positive
// job-credit balance. Offer visibility resumes with the next poll or push.
func (e *Engine) SetOnline() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	return e.sess.GoOnline()
}

// SetOffline marks the deliverer as unavailable and atomically clears the
// visible set and every pending deferred-reveal and countdown timer, so no
// stale callback can resurrect a removed offer.
func (e *Engine) SetOffline() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sess.GoOffline()
	e.clearGateLocked()
}

// Dispatch feeds one push-channel event into the engine. Events irrelevant to
// the courier actor are ignored.
func (e *Engine) Dispatch(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case AssignmentOffered:
		e.offerCandidate(ev.Offer)
	case AssignmentRemoved:
		e.RemoveOffer(ev.AssignmentID)
	case OrderStatusChanged:
		e.setOrderStatus(ev.OrderID, ev.Status)
	case JobCancelled:
		e.handleRemoteCancel(ctx, ev.OrderID, ev.Reason)
	case NewOrder:
		// Shop-side event; the OrderTracker consumes it.
	}
}

// setOrderStatus records the backing store's authoritative shop-order status.
// The mirror only feeds the pickup gate, so terminal statuses evict the entry
// instead of occupying it for the rest of the session.
func (e *Engine) setOrderStatus(orderID kernel.UUID, status order.Status) {
	if status.Validate() != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if status.IsTerminal() {
		delete(e.orderStatus, orderID)
		return
	}
	e.orderStatus[orderID] = status
}

// OrderStatus returns the last observed status for the shop order, if any.
func (e *Engine) OrderStatus(orderID kernel.UUID) (order.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.orderStatus[orderID]
	return s, ok
}

// handleRemoteCancel reacts to a store-side cancellation of the active job.
func (e *Engine) handleRemoteCancel(ctx context.Context, orderID kernel.UUID, reason string) {
	e.mu.Lock()

	current := e.sess.CurrentOrderID()
	if current == nil || !current.IsEqual(orderID) {
		e.mu.Unlock()
		return
	}

	if err := e.sess.CancelJob(); err != nil {
		// The store cancelled a job we consider past pickup; keep local state
		// and let the next status poll reconcile.
		e.logger.WarnContext(ctx, "remote cancel ignored", "order", orderID.String(), "error", err)
		e.mu.Unlock()
		return
	}
	e.activeFee = 0
	delete(e.orderStatus, orderID)
	e.mu.Unlock()

	if err := e.stages.Delete(ctx, orderID); err != nil {
		e.logger.WarnContext(ctx, "failed to clear persisted stage", "order", orderID.String(), "error", err)
	}

	e.logger.InfoContext(ctx, "job cancelled remotely", "order", orderID.String(), "reason", reason)
	if e.hooks.OnJobCancelledRemotely != nil {
		e.hooks.OnJobCancelledRemotely(orderID, reason)
	}
}

// Close tears the engine down, synchronously cancelling all outstanding
// timers. The engine is unusable afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.clearGateLocked()
}
