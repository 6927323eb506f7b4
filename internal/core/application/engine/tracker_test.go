package engine_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"dispatch/internal/core/application/engine"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type trackerFixture struct {
	clk    *clock.Manual
	orders *MockOrderGateway
	trk    *engine.OrderTracker

	mu            sync.Mutex
	autoCancelled []kernel.UUID
	statusChanges []order.Status
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()

	f := &trackerFixture{
		clk:    clock.NewManual(fixtureStart),
		orders: &MockOrderGateway{},
	}

	var err error
	f.trk, err = engine.NewOrderTracker(f.clk, f.orders, engine.TrackerHooks{
		OnAutoCancelled: func(id kernel.UUID) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.autoCancelled = append(f.autoCancelled, id)
		},
		OnStatusChanged: func(_ kernel.UUID, status order.Status) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.statusChanges = append(f.statusChanges, status)
		},
	}, nil)
	require.NoError(t, err)
	return f
}

func TestOrderTracker_AutoCancel(t *testing.T) {
	t.Run("pending order cancels after five minutes", func(t *testing.T) {
		f := newTrackerFixture(t)
		so := newShopOrderAt(t, f.clk.Now())
		f.trk.Track(so)

		f.orders.On("CancelOrder", mock.Anything, so.ID(), "not accepted — auto-cancelled").
			Return(nil).Once()

		f.clk.Advance(5*time.Minute - time.Second)
		assert.Equal(t, order.Pending, so.Status())

		f.clk.Advance(time.Second)
		assert.Equal(t, order.Cancelled, so.Status())
		assert.Equal(t, "not accepted — auto-cancelled", so.CancelReason())
		require.Len(t, f.autoCancelled, 1)
		f.orders.AssertExpectations(t)
	})

	t.Run("deadline derives from creation not tracking time", func(t *testing.T) {
		f := newTrackerFixture(t)
		// Learned about 4 minutes late: only one minute of grace remains.
		so := newShopOrderAt(t, f.clk.Now().Add(-4*time.Minute))
		f.trk.Track(so)

		f.orders.On("CancelOrder", mock.Anything, so.ID(), mock.Anything).Return(nil).Once()

		f.clk.Advance(time.Minute)
		assert.Equal(t, order.Cancelled, so.Status())
		f.orders.AssertExpectations(t)
	})

	t.Run("acceptance before the deadline disarms the timer", func(t *testing.T) {
		f := newTrackerFixture(t)
		so := newShopOrderAt(t, f.clk.Now())
		f.trk.Track(so)

		f.clk.Advance(3 * time.Minute)
		f.trk.HandleEvent(engine.OrderStatusChanged{OrderID: so.ID(), Status: order.Preparing})

		f.clk.Advance(time.Hour)
		assert.Equal(t, order.Preparing, so.Status())
		assert.Empty(t, f.autoCancelled)
	})

	t.Run("gateway failure keeps the order pending and retries", func(t *testing.T) {
		f := newTrackerFixture(t)
		so := newShopOrderAt(t, f.clk.Now())
		f.trk.Track(so)

		f.orders.On("CancelOrder", mock.Anything, so.ID(), mock.Anything).
			Return(errors.New("store unreachable")).Once()
		f.orders.On("CancelOrder", mock.Anything, so.ID(), mock.Anything).Return(nil).Once()

		f.clk.Advance(5 * time.Minute)
		assert.Equal(t, order.Pending, so.Status())

		f.clk.Advance(30 * time.Second)
		assert.Equal(t, order.Cancelled, so.Status())
		f.orders.AssertExpectations(t)
	})
}

func TestOrderTracker_CountdownDisplay(t *testing.T) {
	f := newTrackerFixture(t)
	so := newShopOrderAt(t, f.clk.Now())
	f.trk.Track(so)

	assert.Equal(t, "05:00", f.trk.CountdownDisplay(so.ID()))

	f.clk.Advance(90 * time.Second)
	assert.Equal(t, "03:30", f.trk.CountdownDisplay(so.ID()))

	require.NoError(t, so.StartPreparing(f.clk.Now()))
	assert.Equal(t, "10:00", f.trk.CountdownDisplay(so.ID()))

	f.clk.Advance(9*time.Minute + 45*time.Second)
	assert.Equal(t, "00:15", f.trk.CountdownDisplay(so.ID()))

	// Soft deadline: crossing it only flips the display into overtime.
	f.clk.Advance(40 * time.Second)
	assert.Equal(t, "+00:25", f.trk.CountdownDisplay(so.ID()))
	assert.Equal(t, order.Preparing, so.Status())

	require.NoError(t, so.MarkReady())
	require.NoError(t, so.AssignDeliverer(kernel.NewUUID()))
	require.NoError(t, so.MarkDelivered(f.clk.Now()))
	assert.Equal(t, "", f.trk.CountdownDisplay(so.ID()))

	assert.Equal(t, "", f.trk.CountdownDisplay(kernel.NewUUID()))
}

func TestOrderTracker_PreparingClockFallsBackToCreation(t *testing.T) {
	f := newTrackerFixture(t)
	so := newShopOrderAt(t, f.clk.Now())
	f.trk.Track(so)

	// Status pushed without an acceptance timestamp: the preparation clock
	// anchors on creation.
	f.clk.Advance(2 * time.Minute)
	f.trk.HandleEvent(engine.OrderStatusChanged{OrderID: so.ID(), Status: order.Preparing})
	assert.Equal(t, "08:00", f.trk.CountdownDisplay(so.ID()))
}

func TestOrderTracker_ShopCancel(t *testing.T) {
	t.Run("pending order cancels through the gateway", func(t *testing.T) {
		f := newTrackerFixture(t)
		so := newShopOrderAt(t, f.clk.Now())
		f.trk.Track(so)

		f.orders.On("CancelOrder", mock.Anything, so.ID(), "out of stock").Return(nil).Once()

		require.NoError(t, f.trk.CancelOrder(t.Context(), so.ID(), "out of stock"))
		assert.Equal(t, order.Cancelled, so.Status())
		assert.Equal(t, "out of stock", so.CancelReason())

		// The auto-cancel timer is disarmed; no second gateway call.
		f.clk.Advance(time.Hour)
		f.orders.AssertExpectations(t)
	})

	t.Run("picked-up order rejects synchronously", func(t *testing.T) {
		f := newTrackerFixture(t)
		so := newShopOrderAt(t, f.clk.Now())
		require.NoError(t, so.StartPreparing(f.clk.Now()))
		require.NoError(t, so.MarkReady())
		require.NoError(t, so.AssignDeliverer(kernel.NewUUID()))
		require.NoError(t, so.MarkPickedUp(f.clk.Now()))
		f.trk.Track(so)

		err := f.trk.CancelOrder(t.Context(), so.ID(), "changed my mind")
		require.Error(t, err)
		assert.Equal(t, order.OutForDelivery, so.Status())
		f.orders.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		f := newTrackerFixture(t)

		err := f.trk.CancelOrder(t.Context(), kernel.NewUUID(), "whatever")
		require.Error(t, err)
	})
}

func TestOrderTracker_StatusPush(t *testing.T) {
	f := newTrackerFixture(t)
	so := newShopOrderAt(t, f.clk.Now())
	f.trk.HandleEvent(engine.NewOrder{ShopOrder: so})

	f.trk.HandleEvent(engine.OrderStatusChanged{OrderID: so.ID(), Status: order.Preparing})
	f.trk.HandleEvent(engine.OrderStatusChanged{OrderID: so.ID(), Status: order.OutForDelivery})
	assert.Equal(t, order.OutForDelivery, so.Status())
	assert.Equal(t, []order.Status{order.Preparing, order.OutForDelivery}, f.statusChanges)

	// Duplicate push is a no-op.
	f.trk.HandleEvent(engine.OrderStatusChanged{OrderID: so.ID(), Status: order.OutForDelivery})
	assert.Len(t, f.statusChanges, 2)
}
