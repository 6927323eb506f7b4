package engine_test

import (
	"errors"
	"testing"
	"time"

	"dispatch/internal/core/application/engine"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/session"
	"dispatch/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEngine_AttemptAccept_Success(t *testing.T) {
	f := newEngineFixture(t)
	o := newOfferAt(t, f.clk.Now().Add(-time.Minute), 0.05)
	other := newOfferAt(t, f.clk.Now().Add(-time.Minute), 0.05)
	f.engine.Dispatch(t.Context(), engine.AssignmentOffered{Offer: o})
	f.engine.Dispatch(t.Context(), engine.AssignmentOffered{Offer: other})
	require.Len(t, f.engine.VisibleOffers(), 2)

	f.acceptOffer(t, o)

	snap := f.engine.Session()
	require.NotNil(t, snap.CurrentOrderID)
	assert.True(t, snap.CurrentOrderID.IsEqual(o.OrderID()))
	assert.Equal(t, session.TravelingToRestaurant, snap.Stage)

	// Busy couriers see no offers; the whole pool is gone, timers included.
	assert.Empty(t, f.engine.VisibleOffers())
	f.clk.Advance(time.Hour)
	assert.Empty(t, f.rec.timedOutIDs())

	rec, ok := f.stages.stored(o.OrderID())
	require.True(t, ok)
	assert.Equal(t, session.TravelingToRestaurant, rec.Stage)
	assert.InDelta(t, o.DeliveryFee(), rec.Fee, 1e-9)

	f.assignments.AssertExpectations(t)
}

func TestEngine_AttemptAccept_NotVisible(t *testing.T) {
	t.Run("unknown assignment", func(t *testing.T) {
		f := newEngineFixture(t)

		err := f.engine.AttemptAccept(t.Context(), kernel.NewUUID())
		require.ErrorIs(t, err, engine.ErrOfferNotVisible)
	})

	t.Run("still deferred", func(t *testing.T) {
		f := newEngineFixture(t)
		o := newOfferAt(t, f.clk.Now(), 5.0)
		f.engine.Dispatch(t.Context(), engine.AssignmentOffered{Offer: o})

		err := f.engine.AttemptAccept(t.Context(), o.AssignmentID())
		require.ErrorIs(t, err, engine.ErrOfferNotVisible)
	})

	t.Run("already expired", func(t *testing.T) {
		f := newEngineFixture(t)
		o := newOfferAt(t, f.clk.Now().Add(-time.Minute), 0.05)
		f.engine.Dispatch(t.Context(), engine.AssignmentOffered{Offer: o})
		f.clk.Advance(engine.AcceptanceWindow)

		err := f.engine.AttemptAccept(t.Context(), o.AssignmentID())
		require.ErrorIs(t, err, engine.ErrOfferNotVisible)
	})
}

func TestEngine_AttemptAccept_RaceLost(t *testing.T) {
	f := newEngineFixture(t)
	o := newOfferAt(t, f.clk.Now().Add(-time.Minute), 0.05)
	f.engine.Dispatch(t.Context(), engine.AssignmentOffered{Offer: o})

	f.assignments.On("Accept", mock.Anything, o.AssignmentID()).Return(ports.ErrOfferTaken).Once()

	err := f.engine.AttemptAccept(t.Context(), o.AssignmentID())
	require.ErrorIs(t, err, ports.ErrOfferTaken)

	// No residual entry, no timeout callback, session untouched.
	assert.Empty(t, f.engine.VisibleOffers())
	f.clk.Advance(time.Hour)
	assert.Empty(t, f.rec.timedOutIDs())
	assert.Nil(t, f.engine.Session().CurrentOrderID)

	require.Len(t, f.rec.rejected, 1)
	f.assignments.AssertExpectations(t)
}

func TestEngine_AttemptAccept_TransientFailure(t *testing.T) {
	f := newEngineFixture(t)
	o := newOfferAt(t, f.clk.Now().Add(-time.Minute), 0.05)
	f.engine.Dispatch(t.Context(), engine.AssignmentOffered{Offer: o})

	netErr := errors.New("connection reset")
	f.assignments.On("Accept", mock.Anything, o.AssignmentID()).Return(netErr).Once()
	f.assignments.On("Accept", mock.Anything, o.AssignmentID()).Return(nil).Once()

	err := f.engine.AttemptAccept(t.Context(), o.AssignmentID())
	require.ErrorIs(t, err, netErr)

	// The offer is still there; a manual retry can succeed.
	require.Len(t, f.engine.VisibleOffers(), 1)
	require.NoError(t, f.engine.AttemptAccept(t.Context(), o.AssignmentID()))
	assert.NotNil(t, f.engine.Session().CurrentOrderID)

	f.assignments.AssertExpectations(t)
}

func TestEngine_AttemptAccept_ExpiryDuringCall(t *testing.T) {
	f := newEngineFixture(t)
	o := newOfferAt(t, f.clk.Now().Add(-time.Minute), 0.05)
	f.engine.Dispatch(t.Context(), engine.AssignmentOffered{Offer: o})

	// The countdown elapses while the gateway call is still in flight, and
	// the call then fails transiently.
	netErr := errors.New("connection reset")
	f.assignments.On("Accept", mock.Anything, o.AssignmentID()).
		Run(func(mock.Arguments) { f.clk.Advance(engine.AcceptanceWindow + time.Second) }).
		Return(netErr).Once()

	err := f.engine.AttemptAccept(t.Context(), o.AssignmentID())
	require.ErrorIs(t, err, netErr)

	// The offer expired during the call: it leaves the visible set and the
	// timeout fires once, with no second firing later.
	assert.Empty(t, f.engine.VisibleOffers())
	require.Len(t, f.rec.timedOutIDs(), 1)
	assert.True(t, f.rec.timedOutIDs()[0].IsEqual(o.AssignmentID()))

	f.clk.Advance(10 * time.Minute)
	assert.Len(t, f.rec.timedOutIDs(), 1)

	err = f.engine.AttemptAccept(t.Context(), o.AssignmentID())
	require.ErrorIs(t, err, engine.ErrOfferNotVisible)
	f.assignments.AssertExpectations(t)
}

func TestEngine_AttemptAccept_BusyCourier(t *testing.T) {
	f := newEngineFixture(t)
	first := newOfferAt(t, f.clk.Now().Add(-time.Minute), 0.05)
	f.engine.Dispatch(t.Context(), engine.AssignmentOffered{Offer: first})
	f.acceptOffer(t, first)

	err := f.engine.AttemptAccept(t.Context(), kernel.NewUUID())
	require.ErrorIs(t, err, session.ErrAlreadyOnJob)
}
