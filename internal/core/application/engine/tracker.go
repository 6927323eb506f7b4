package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/clock"
	"dispatch/internal/pkg/errs"
)

// Timing policy for pending shop orders.
const (
	// AutoCancelAfter is how long an order may stay pending before it is
	// cancelled on the shop's behalf.
	AutoCancelAfter = 5 * time.Minute

	// PreparationTarget is the soft preparation deadline shown to the shop.
	// Crossing it changes the countdown display only; nothing is enforced.
	PreparationTarget = 10 * time.Minute

	// autoCancelRetry is the delay before re-attempting an auto-cancel whose
	// gateway call failed.
	autoCancelRetry = 30 * time.Second
)

// AutoCancelReason is the cancellation reason recorded for orders no shop
// accepted in time.
const AutoCancelReason = "not accepted — auto-cancelled"

// TrackerHooks are the tracker's outbound signals to the shop UI layer.
// Invoked with the tracker mutex released.
type TrackerHooks struct {
	// OnNewOrder fires when a pending order enters tracking.
	OnNewOrder func(shopOrderID kernel.UUID)

	// OnStatusChanged fires when a tracked order's status changes, locally or
	// by store push.
	OnStatusChanged func(shopOrderID kernel.UUID, status order.Status)

	// OnAutoCancelled fires after the pending timeout cancelled an order.
	OnAutoCancelled func(shopOrderID kernel.UUID)
}

// OrderTracker is the shop-side actor: it tracks the shop's open orders,
// enforces the pending auto-cancel timeout, and renders the preparation
// countdown. One instance per logged-in shop.
//
// The auto-cancel deadline is derived from the order's creation instant on
// every evaluation, never from an accumulated local countdown, so a tab kept
// in the background cancels at the same wall-clock moment as an active one.
type OrderTracker struct {
	mu     sync.Mutex
	sched  clock.Scheduler
	logger *slog.Logger

	orders ports.OrderGateway
	hooks  TrackerHooks

	tracked map[kernel.UUID]*trackedOrder
	closed  bool
}

type trackedOrder struct {
	shopOrder   *order.ShopOrder
	cancelTimer clock.Timer
}

// NewOrderTracker creates a tracker for one shop.
func NewOrderTracker(
	sched clock.Scheduler,
	orders ports.OrderGateway,
	hooks TrackerHooks,
	logger *slog.Logger,
) (*OrderTracker, error) {
	if sched == nil {
		return nil, errs.NewValueIsRequiredError("sched")
	}
	if orders == nil {
		return nil, errs.NewValueIsRequiredError("orders")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OrderTracker{
		sched:   sched,
		logger:  logger.With("component", "order_tracker"),
		orders:  orders,
		hooks:   hooks,
		tracked: make(map[kernel.UUID]*trackedOrder),
	}, nil
}

// HandleEvent feeds one push-channel event into the tracker. Events
// irrelevant to the shop actor are ignored.
func (t *OrderTracker) HandleEvent(ev Event) {
	switch ev := ev.(type) {
	case NewOrder:
		t.Track(ev.ShopOrder)
	case OrderStatusChanged:
		t.applyStatus(ev.OrderID, ev.Status)
	}
}

// Track admits a shop order. Pending orders arm the auto-cancel timer; an id
// already tracked is ignored, keeping its deadline.
func (t *OrderTracker) Track(so *order.ShopOrder) {
	if so == nil || so.Validate() != nil {
		return
	}

	t.mu.Lock()

	id := so.ID()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if _, ok := t.tracked[id]; ok {
		t.mu.Unlock()
		return
	}

	entry := &trackedOrder{shopOrder: so}
	t.tracked[id] = entry
	isPending := so.Status() == order.Pending
	if isPending {
		t.armCancelLocked(entry)
	}
	t.mu.Unlock()

	t.logger.Info("order tracked", "order", id.String(), "status", so.Status().String())
	if isPending && t.hooks.OnNewOrder != nil {
		t.hooks.OnNewOrder(id)
	}
}

// armCancelLocked schedules the auto-cancel tick relative to the order's
// creation instant. A deadline already in the past fires on the next tick.
func (t *OrderTracker) armCancelLocked(entry *trackedOrder) {
	id := entry.shopOrder.ID()
	remaining := AutoCancelAfter - t.sched.Now().Sub(entry.shopOrder.CreatedAt())
	if remaining < 0 {
		remaining = 0
	}
	entry.cancelTimer = t.sched.After(remaining, func() {
		t.onAutoCancelDue(id)
	})
}

// onAutoCancelDue fires when a pending order's grace window may have elapsed.
// Pessimistic commit: the gateway cancel must succeed before local state
// changes, so a store that raced ahead (shop accepted at 4:59) keeps the
// order alive.
func (t *OrderTracker) onAutoCancelDue(id kernel.UUID) {
	t.mu.Lock()

	entry, ok := t.tracked[id]
	if !ok || t.closed || entry.shopOrder.Status() != order.Pending {
		t.mu.Unlock()
		return
	}
	if remaining := AutoCancelAfter - t.sched.Now().Sub(entry.shopOrder.CreatedAt()); remaining > 0 {
		// The wall clock disagrees with the timer (suspend/resume); re-derive.
		entry.cancelTimer = t.sched.After(remaining, func() {
			t.onAutoCancelDue(id)
		})
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.orders.CancelOrder(ctx, id, AutoCancelReason); err != nil {
		t.logger.Warn("auto-cancel call failed", "order", id.String(), "error", err)
		t.mu.Lock()
		if entry, ok := t.tracked[id]; ok && entry.shopOrder.Status() == order.Pending {
			entry.cancelTimer = t.sched.After(autoCancelRetry, func() {
				t.onAutoCancelDue(id)
			})
		}
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	entry, ok = t.tracked[id]
	if !ok || entry.shopOrder.Status() != order.Pending {
		t.mu.Unlock()
		return
	}
	if err := entry.shopOrder.Cancel(AutoCancelReason); err != nil {
		t.mu.Unlock()
		t.logger.Warn("auto-cancel local apply failed", "order", id.String(), "error", err)
		return
	}
	t.mu.Unlock()

	t.logger.Info("order auto-cancelled", "order", id.String())
	if t.hooks.OnAutoCancelled != nil {
		t.hooks.OnAutoCancelled(id)
	}
	if t.hooks.OnStatusChanged != nil {
		t.hooks.OnStatusChanged(id, order.Cancelled)
	}
}

// applyStatus overwrites a tracked order's status with the store's
// authoritative value. Leaving the pending status disarms the auto-cancel
// timer.
func (t *OrderTracker) applyStatus(id kernel.UUID, status order.Status) {
	if status.Validate() != nil {
		return
	}

	t.mu.Lock()

	entry, ok := t.tracked[id]
	if !ok || t.closed {
		t.mu.Unlock()
		return
	}
	if entry.shopOrder.Status() == status {
		t.mu.Unlock()
		return
	}

	if err := entry.shopOrder.ApplyStatus(status); err != nil {
		t.mu.Unlock()
		t.logger.Warn("status apply failed", "order", id.String(), "status", status.String(), "error", err)
		return
	}
	if status != order.Pending && entry.cancelTimer != nil {
		entry.cancelTimer.Stop()
		entry.cancelTimer = nil
	}
	t.mu.Unlock()

	if t.hooks.OnStatusChanged != nil {
		t.hooks.OnStatusChanged(id, status)
	}
}

// CancelOrder cancels a tracked order on the shop's behalf. A cancellation
// the order's state no longer allows (picked up, delivered, already
// cancelled) is rejected synchronously without a gateway call; otherwise the
// store is told first and local state follows on success.
func (t *OrderTracker) CancelOrder(ctx context.Context, id kernel.UUID, reason string) error {
	t.mu.Lock()

	entry, ok := t.tracked[id]
	if !ok || t.closed {
		t.mu.Unlock()
		return errs.NewObjectNotFoundError("shopOrder", id)
	}
	if err := entry.shopOrder.Status().ValidateCancel(); err != nil {
		t.mu.Unlock()
		return err
	}
	if entry.shopOrder.PickedUpAt() != nil {
		t.mu.Unlock()
		return order.ErrAlreadyPickedUp
	}
	t.mu.Unlock()

	if err := t.orders.CancelOrder(ctx, id, reason); err != nil {
		t.logger.WarnContext(ctx, "cancel call failed", "order", id.String(), "error", err)
		return err
	}

	t.mu.Lock()
	entry, ok = t.tracked[id]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	if entry.cancelTimer != nil {
		entry.cancelTimer.Stop()
		entry.cancelTimer = nil
	}
	err := entry.shopOrder.Cancel(reason)
	t.mu.Unlock()

	if err != nil {
		t.logger.WarnContext(ctx, "cancel local apply failed", "order", id.String(), "error", err)
		return nil
	}

	t.logger.InfoContext(ctx, "order cancelled by shop", "order", id.String(), "reason", reason)
	if t.hooks.OnStatusChanged != nil {
		t.hooks.OnStatusChanged(id, order.Cancelled)
	}
	return nil
}

// Order returns the tracked shop order, or nil when unknown.
func (t *OrderTracker) Order(id kernel.UUID) *order.ShopOrder {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.tracked[id]; ok {
		return entry.shopOrder
	}
	return nil
}

// TrackedIDs returns the ids of all tracked orders.
func (t *OrderTracker) TrackedIDs() []kernel.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]kernel.UUID, 0, len(t.tracked))
	for id := range t.tracked {
		out = append(out, id)
	}
	return out
}

// CountdownDisplay renders the shop's timer column for the order:
//
//   - pending: time left until auto-cancel, "MM:SS",
//   - preparing and out-for-delivery: preparation countdown "MM:SS", flipping
//     to "+MM:SS" overtime once the soft target is crossed,
//   - terminal or unknown orders: empty string.
//
// The preparation clock starts at acceptance when that instant is known and
// falls back to the order's creation instant otherwise.
func (t *OrderTracker) CountdownDisplay(id kernel.UUID) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tracked[id]
	if !ok {
		return ""
	}

	now := t.sched.Now()
	so := entry.shopOrder

	switch so.Status() {
	case order.Pending:
		remaining := AutoCancelAfter - now.Sub(so.CreatedAt())
		if remaining < 0 {
			remaining = 0
		}
		return formatClock(remaining)
	case order.Preparing, order.OutForDelivery:
		remaining := PreparationTarget - now.Sub(so.PreparingClockStart())
		if remaining >= 0 {
			return formatClock(remaining)
		}
		return "+" + formatClock(-remaining)
	default:
		return ""
	}
}

// Untrack drops an order, disarming its timer.
func (t *OrderTracker) Untrack(id kernel.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.tracked[id]; ok {
		if entry.cancelTimer != nil {
			entry.cancelTimer.Stop()
		}
		delete(t.tracked, id)
	}
}

// Close tears the tracker down, stopping all timers.
func (t *OrderTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for id, entry := range t.tracked {
		if entry.cancelTimer != nil {
			entry.cancelTimer.Stop()
		}
		delete(t.tracked, id)
	}
}

// formatClock renders a non-negative duration as "MM:SS", rounding down to
// whole seconds.
func formatClock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
