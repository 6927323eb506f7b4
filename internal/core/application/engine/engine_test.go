package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"dispatch/internal/core/application/engine"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/session"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/clock"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAssignmentGateway struct{ mock.Mock }

func (m *MockAssignmentGateway) Poll(ctx context.Context) ([]offer.Offer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]offer.Offer), args.Error(1)
}

func (m *MockAssignmentGateway) Accept(ctx context.Context, assignmentID kernel.UUID) error {
	args := m.Called(ctx, assignmentID)
	return args.Error(0)
}

type MockJobGateway struct{ mock.Mock }

func (m *MockJobGateway) ConfirmPickup(ctx context.Context, orderID kernel.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockJobGateway) ConfirmDelivery(ctx context.Context, orderID kernel.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockJobGateway) CancelJob(ctx context.Context, orderID kernel.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type MockOrderGateway struct{ mock.Mock }

func (m *MockOrderGateway) CancelOrder(ctx context.Context, orderID kernel.UUID, reason string) error {
	args := m.Called(ctx, orderID, reason)
	return args.Error(0)
}

type MockSettlementLedger struct{ mock.Mock }

func (m *MockSettlementLedger) Accrue(ctx context.Context, delivererID, orderID kernel.UUID, fee float64) error {
	args := m.Called(ctx, delivererID, orderID, fee)
	return args.Error(0)
}

// memStageStore is a map-backed stage store for round-trip assertions.
type memStageStore struct {
	mu      sync.Mutex
	records map[kernel.UUID]ports.JobRecord
}

func newMemStageStore() *memStageStore {
	return &memStageStore{records: make(map[kernel.UUID]ports.JobRecord)}
}

func (s *memStageStore) Get(_ context.Context, orderID kernel.UUID) (ports.JobRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	return rec, ok, nil
}

func (s *memStageStore) Set(_ context.Context, orderID kernel.UUID, rec ports.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[orderID] = rec
	return nil
}

func (s *memStageStore) Delete(_ context.Context, orderID kernel.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, orderID)
	return nil
}

func (s *memStageStore) stored(orderID kernel.UUID) (ports.JobRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[orderID]
	return rec, ok
}

// hookRecorder captures engine hook invocations in arrival order.
type hookRecorder struct {
	mu        sync.Mutex
	visible   []kernel.UUID
	timedOut  []kernel.UUID
	accepted  []kernel.UUID
	rejected  []kernel.UUID
	cancelled []kernel.UUID
}

func (r *hookRecorder) hooks() engine.Hooks {
	return engine.Hooks{
		OnOfferVisible: func(o offer.Offer) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.visible = append(r.visible, o.AssignmentID())
		},
		OnOfferTimeout: func(id kernel.UUID) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.timedOut = append(r.timedOut, id)
		},
		OnOfferAccepted: func(id kernel.UUID) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.accepted = append(r.accepted, id)
		},
		OnOfferRejected: func(id kernel.UUID) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.rejected = append(r.rejected, id)
		},
		OnJobCancelledRemotely: func(orderID kernel.UUID, _ string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.cancelled = append(r.cancelled, orderID)
		},
	}
}

func (r *hookRecorder) visibleIDs() []kernel.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kernel.UUID(nil), r.visible...)
}

func (r *hookRecorder) timedOutIDs() []kernel.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kernel.UUID(nil), r.timedOut...)
}

// engineFixture wires an engine onto a manual clock with mock collaborators.
type engineFixture struct {
	clk         *clock.Manual
	sess        *session.DelivererSession
	assignments *MockAssignmentGateway
	jobs        *MockJobGateway
	stages      *memStageStore
	ledger      *MockSettlementLedger
	rec         *hookRecorder
	engine      *engine.Engine
}

var fixtureStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	sess, err := session.NewDelivererSession(kernel.NewUUID(), 3)
	require.NoError(t, err)

	f := &engineFixture{
		clk:         clock.NewManual(fixtureStart),
		sess:        sess,
		assignments: &MockAssignmentGateway{},
		jobs:        &MockJobGateway{},
		stages:      newMemStageStore(),
		ledger:      &MockSettlementLedger{},
		rec:         &hookRecorder{},
	}

	f.engine, err = engine.NewEngine(
		f.clk, f.sess, f.assignments, f.jobs, f.stages, f.ledger, f.rec.hooks(), nil,
	)
	require.NoError(t, err)
	require.NoError(t, f.engine.SetOnline())
	return f
}

// newOfferAt builds an offer created at the given instant with the given
// deliverer distance.
func newOfferAt(t *testing.T, createdAt time.Time, distanceKm float64) offer.Offer {
	t.Helper()

	pickup, err := kernel.NewGeoPoint(55.75, 37.62)
	require.NoError(t, err)

	o, err := offer.NewOffer(
		kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(),
		createdAt, distanceKm, 4.5, pickup, "12 Main St",
	)
	require.NoError(t, err)
	return o
}

// acceptOffer drives the fixture through a successful accept of the given
// visible offer.
func (f *engineFixture) acceptOffer(t *testing.T, o offer.Offer) {
	t.Helper()

	f.assignments.On("Accept", mock.Anything, o.AssignmentID()).Return(nil).Once()
	require.NoError(t, f.engine.AttemptAccept(t.Context(), o.AssignmentID()))
}

func newShopOrderAt(t *testing.T, createdAt time.Time) *order.ShopOrder {
	t.Helper()

	so, err := order.NewShopOrder(
		kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(),
		18.0,
		[]order.Item{{Name: "Pad Thai", Quantity: 2, Price: 9.0}},
		createdAt,
	)
	require.NoError(t, err)
	return so
}
