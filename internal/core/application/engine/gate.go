package engine

import (
	"context"
	"sort"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
	"dispatch/internal/pkg/clock"
)

// AcceptanceWindow is how long a revealed offer stays acceptable before it is
// silently removed from the visible set.
const AcceptanceWindow = 30 * time.Second

// visibleEntry is a revealed offer counting down its acceptance window.
type visibleEntry struct {
	offer    offer.Offer
	deadline time.Time
	timer    clock.Timer

	// acceptInFlight marks an Accept gateway call issued for this entry; the
	// countdown expiring mid-call must not fire the timeout hook, the call's
	// verdict decides.
	acceptInFlight bool
}

// pendingEntry is an offer waiting out its reveal delay.
type pendingEntry struct {
	offer offer.Offer
	timer clock.Timer
}

// offerCandidate admits one assignment into the candidate pool. An id already
// visible or pending is ignored: its deadline and reveal schedule are kept.
//
// The reveal delay is measured from the offer's creation instant at the
// store, so an offer learned about late (poll catching up after missed
// pushes) reveals sooner or immediately rather than restarting its window.
func (e *Engine) offerCandidate(o offer.Offer) {
	if o.Validate() != nil {
		return
	}

	e.mu.Lock()

	if e.closed || !e.sess.IsEligibleForOffers() {
		e.mu.Unlock()
		return
	}

	id := o.AssignmentID()
	if _, ok := e.visible[id]; ok {
		e.mu.Unlock()
		return
	}
	if _, ok := e.pendingReveal[id]; ok {
		e.mu.Unlock()
		return
	}

	remaining := o.RevealDelay() - e.sched.Now().Sub(o.CreatedAt())
	if remaining <= 0 {
		revealed := e.revealLocked(o)
		e.mu.Unlock()
		if revealed && e.hooks.OnOfferVisible != nil {
			e.hooks.OnOfferVisible(o)
		}
		return
	}

	entry := &pendingEntry{offer: o}
	e.pendingReveal[id] = entry
	entry.timer = e.sched.After(remaining, func() {
		e.onRevealDue(id)
	})
	e.mu.Unlock()

	e.logger.Debug("offer reveal deferred",
		"assignment", id.String(), "delay", remaining, "distance_km", o.DistanceKm())
}

// onRevealDue fires when a deferred offer's reveal delay elapses. The entry
// is re-checked under the lock: an eviction or offline transition between
// scheduling and firing wins.
func (e *Engine) onRevealDue(id kernel.UUID) {
	e.mu.Lock()

	entry, ok := e.pendingReveal[id]
	if !ok || e.closed {
		e.mu.Unlock()
		return
	}
	delete(e.pendingReveal, id)

	if !e.sess.IsEligibleForOffers() {
		e.mu.Unlock()
		return
	}

	o := entry.offer
	revealed := e.revealLocked(o)
	e.mu.Unlock()

	if revealed && e.hooks.OnOfferVisible != nil {
		e.hooks.OnOfferVisible(o)
	}
}

// revealLocked moves an offer into the visible set and arms its acceptance
// countdown. Caller holds e.mu and fires OnOfferVisible after unlocking.
func (e *Engine) revealLocked(o offer.Offer) bool {
	id := o.AssignmentID()
	if _, ok := e.visible[id]; ok {
		return false
	}

	entry := &visibleEntry{
		offer:    o,
		deadline: e.sched.Now().Add(AcceptanceWindow),
	}
	e.visible[id] = entry
	entry.timer = e.sched.After(AcceptanceWindow, func() {
		e.onAcceptanceExpired(id)
	})

	e.logger.Debug("offer visible", "assignment", id.String(), "order", o.OrderID().String())
	return true
}

// onAcceptanceExpired fires when a visible offer's countdown elapses. The
// timeout hook fires at most once per reveal: any path that already removed
// the entry (accept, eviction, offline) suppresses it.
func (e *Engine) onAcceptanceExpired(id kernel.UUID) {
	e.mu.Lock()

	entry, ok := e.visible[id]
	if !ok || e.closed {
		e.mu.Unlock()
		return
	}
	if entry.acceptInFlight {
		// The gateway call's verdict supersedes the local countdown.
		e.mu.Unlock()
		return
	}
	delete(e.visible, id)
	e.mu.Unlock()

	e.logger.Debug("offer expired", "assignment", id.String())
	if e.hooks.OnOfferTimeout != nil {
		e.hooks.OnOfferTimeout(id)
	}
}

// RemoveOffer evicts an assignment from both the deferred queue and the
// visible set without firing any hook. Used for push removals and race-lost
// accepts; unknown ids are ignored.
func (e *Engine) RemoveOffer(id kernel.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeOfferLocked(id)
}

func (e *Engine) removeOfferLocked(id kernel.UUID) {
	if entry, ok := e.pendingReveal[id]; ok {
		entry.timer.Stop()
		delete(e.pendingReveal, id)
	}
	if entry, ok := e.visible[id]; ok {
		entry.timer.Stop()
		delete(e.visible, id)
	}
}

// ApplyPoll merges a full poll snapshot into the candidate pool:
//
//   - ids present in both are kept with their acceptance deadline untouched,
//   - new ids are admitted through the usual reveal-delay path,
//   - deferred ids absent from the snapshot are dropped silently.
//
// Visible offers absent from the snapshot are kept; their removal arrives as
// an explicit push or as a local expiry, whichever comes first.
func (e *Engine) ApplyPoll(offers []offer.Offer) {
	e.mu.Lock()

	if e.closed || !e.sess.IsEligibleForOffers() {
		e.mu.Unlock()
		return
	}

	present := make(map[kernel.UUID]struct{}, len(offers))
	for _, o := range offers {
		if o.Validate() == nil {
			present[o.AssignmentID()] = struct{}{}
		}
	}

	for id, entry := range e.pendingReveal {
		if _, ok := present[id]; !ok {
			entry.timer.Stop()
			delete(e.pendingReveal, id)
		}
	}
	e.mu.Unlock()

	for _, o := range offers {
		e.offerCandidate(o)
	}
}

// Poll fetches the candidate pool snapshot from the backing store and merges
// it. A poll failure leaves local state untouched.
func (e *Engine) Poll(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if !e.sess.IsEligibleForOffers() {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	offers, err := e.assignments.Poll(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "assignment poll failed", "error", err)
		return err
	}

	e.ApplyPoll(offers)
	return nil
}

// VisibleOffer is one row of the deliverer's offer list.
type VisibleOffer struct {
	Offer offer.Offer

	// Deadline is when the acceptance window closes.
	Deadline time.Time
}

// VisibleOffers returns a snapshot of the visible set ordered by acceptance
// deadline, earliest first.
func (e *Engine) VisibleOffers() []VisibleOffer {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]VisibleOffer, 0, len(e.visible))
	for _, entry := range e.visible {
		out = append(out, VisibleOffer{Offer: entry.offer, Deadline: entry.deadline})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].Offer.AssignmentID().String() < out[j].Offer.AssignmentID().String()
	})
	return out
}

// clearGateLocked wipes the candidate pool, stopping every outstanding reveal
// and countdown timer. Caller holds e.mu.
func (e *Engine) clearGateLocked() {
	for id, entry := range e.pendingReveal {
		entry.timer.Stop()
		delete(e.pendingReveal, id)
	}
	for id, entry := range e.visible {
		entry.timer.Stop()
		delete(e.visible, id)
	}
}
