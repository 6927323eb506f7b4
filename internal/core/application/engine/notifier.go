package engine

import (
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/clock"
	"dispatch/internal/pkg/errs"
)

// ShopChimeInterval is how often the shop's new-order alert repeats while
// unacknowledged.
const ShopChimeInterval = 5 * time.Second

// AlertSink receives the audible/visible alerts the Notifier decides to
// raise. The sink is presentation glue (sound, toast, badge); it never
// filters, the Notifier owns all dedupe and suppression.
type AlertSink interface {
	ShopNewOrderAlert(shopOrderID kernel.UUID)
	CourierNewOfferAlert(assignmentID kernel.UUID)
}

// Notifier turns engine and tracker signals into at-most-one alert per
// logical event, regardless of how many times the event arrives across the
// poll and push channels.
//
// Shop side: a new pending order alerts immediately and re-chimes every five
// seconds until it is acknowledged or leaves the pending status. Courier
// side: an offer alerts once when it enters the visible set; redundant
// arrivals, and anything received while a job is active or the offer list is
// already on screen, stay silent.
type Notifier struct {
	mu     sync.Mutex
	sched  clock.Scheduler
	logger *slog.Logger
	sink   AlertSink

	// notifiedOrders and notifiedOffers are the dedupe sets; ids stay in them
	// after acknowledgement so a late duplicate cannot re-alert.
	notifiedOrders map[kernel.UUID]struct{}
	notifiedOffers map[kernel.UUID]struct{}

	chimes map[kernel.UUID]clock.Timer

	viewedOrder   *kernel.UUID
	viewingOffers bool
	courierBusy   bool
}

// NewNotifier creates a notifier delivering to the given sink.
func NewNotifier(sched clock.Scheduler, sink AlertSink, logger *slog.Logger) (*Notifier, error) {
	if sched == nil {
		return nil, errs.NewValueIsRequiredError("sched")
	}
	if sink == nil {
		return nil, errs.NewValueIsRequiredError("sink")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{
		sched:          sched,
		logger:         logger.With("component", "notifier"),
		sink:           sink,
		notifiedOrders: make(map[kernel.UUID]struct{}),
		notifiedOffers: make(map[kernel.UUID]struct{}),
		chimes:         make(map[kernel.UUID]clock.Timer),
	}, nil
}

// OrderPending signals that a shop order entered (or was observed in) the
// pending status. First observation alerts and starts the chime; repeats are
// ignored.
func (n *Notifier) OrderPending(shopOrderID kernel.UUID) {
	n.mu.Lock()

	if _, ok := n.notifiedOrders[shopOrderID]; ok {
		n.mu.Unlock()
		return
	}
	n.notifiedOrders[shopOrderID] = struct{}{}

	if n.viewedOrder != nil && n.viewedOrder.IsEqual(shopOrderID) {
		// Already on the detail screen counts as acknowledged.
		n.mu.Unlock()
		return
	}

	n.armChimeLocked(shopOrderID)
	n.mu.Unlock()

	n.sink.ShopNewOrderAlert(shopOrderID)
}

// armChimeLocked schedules the next repeat for an unacknowledged order.
// Caller holds n.mu.
func (n *Notifier) armChimeLocked(shopOrderID kernel.UUID) {
	n.chimes[shopOrderID] = n.sched.After(ShopChimeInterval, func() {
		n.onChime(shopOrderID)
	})
}

func (n *Notifier) onChime(shopOrderID kernel.UUID) {
	n.mu.Lock()

	if _, ok := n.chimes[shopOrderID]; !ok {
		n.mu.Unlock()
		return
	}
	n.armChimeLocked(shopOrderID)
	suppressed := n.viewedOrder != nil && n.viewedOrder.IsEqual(shopOrderID)
	n.mu.Unlock()

	if !suppressed {
		n.sink.ShopNewOrderAlert(shopOrderID)
	}
}

// AcknowledgeOrder stops the chime for an order. The dedupe entry stays, so
// the order can never alert again.
func (n *Notifier) AcknowledgeOrder(shopOrderID kernel.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopChimeLocked(shopOrderID)
}

// OrderLeftPending silences an order that was accepted, cancelled, or
// auto-cancelled while still chiming.
func (n *Notifier) OrderLeftPending(shopOrderID kernel.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopChimeLocked(shopOrderID)
}

func (n *Notifier) stopChimeLocked(shopOrderID kernel.UUID) {
	if timer, ok := n.chimes[shopOrderID]; ok {
		timer.Stop()
		delete(n.chimes, shopOrderID)
	}
}

// SetViewedOrder records which order detail screen the shop has open, nil for
// none. Opening a chiming order's detail screen acknowledges it.
func (n *Notifier) SetViewedOrder(shopOrderID *kernel.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if shopOrderID == nil {
		n.viewedOrder = nil
		return
	}
	id := *shopOrderID
	n.viewedOrder = &id
	n.stopChimeLocked(id)
}

// OfferVisible signals that an assignment entered the courier's visible set.
// Alerts at most once per assignment id; arrivals while a job is active or
// the offer list is on screen are swallowed, not deferred.
func (n *Notifier) OfferVisible(assignmentID kernel.UUID) {
	n.mu.Lock()

	if _, ok := n.notifiedOffers[assignmentID]; ok {
		n.mu.Unlock()
		return
	}
	n.notifiedOffers[assignmentID] = struct{}{}
	suppressed := n.courierBusy || n.viewingOffers
	n.mu.Unlock()

	if !suppressed {
		n.sink.CourierNewOfferAlert(assignmentID)
	}
}

// SetViewingOffers records whether the courier has the offer list on screen.
func (n *Notifier) SetViewingOffers(viewing bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.viewingOffers = viewing
}

// SetCourierBusy records whether the courier has an active job.
func (n *Notifier) SetCourierBusy(busy bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.courierBusy = busy
}

// Reset clears all dedupe state and stops every chime, for sign-out.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, timer := range n.chimes {
		timer.Stop()
		delete(n.chimes, id)
	}
	n.notifiedOrders = make(map[kernel.UUID]struct{})
	n.notifiedOffers = make(map[kernel.UUID]struct{})
	n.viewedOrder = nil
	n.viewingOffers = false
	n.courierBusy = false
}
