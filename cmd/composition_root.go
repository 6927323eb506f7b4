package cmd

import (
	"context"
	"log/slog"

	"dispatch/internal/adapters/in/push"
	"dispatch/internal/adapters/out/backend"
	"dispatch/internal/adapters/out/postgres/settlementrepo"
	"dispatch/internal/adapters/out/postgres/stagestore"
	"dispatch/internal/core/application/engine"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/session"
	"dispatch/internal/jobs"
	"dispatch/internal/pkg/clock"

	"gorm.io/gorm"
)

// CompositionRoot wires the engine, the tracker, and their adapters together.
type CompositionRoot struct {
	gormDB *gorm.DB
	logger *slog.Logger

	engine   *engine.Engine
	tracker  *engine.OrderTracker
	notifier *engine.Notifier
	consumer *push.Consumer
	jobs     *jobs.JobManager
}

// NewCompositionRoot builds the full object graph from the configuration.
func NewCompositionRoot(cfg Config, gormDB *gorm.DB, logger *slog.Logger) (*CompositionRoot, error) {
	if err := gormDB.AutoMigrate(&stagestore.JobStageDTO{}, &settlementrepo.AccrualDTO{}); err != nil {
		return nil, err
	}

	delivererID, err := kernel.UUIDFromString(cfg.DelivererID)
	if err != nil {
		return nil, err
	}
	sess, err := session.NewDelivererSession(delivererID, cfg.JobCredit)
	if err != nil {
		return nil, err
	}

	client, err := backend.NewClient(cfg.BackendURL, delivererID, logger)
	if err != nil {
		return nil, err
	}

	sched := clock.NewSystem()

	notifier, err := engine.NewNotifier(sched, logAlertSink{logger: logger}, logger)
	if err != nil {
		return nil, err
	}

	// The engine never reveals offers while a job is active, so the notifier
	// only needs the visibility signal here; screen-state suppression is
	// driven by the presentation layer.
	hooks := engine.Hooks{
		OnOfferVisible: func(o offer.Offer) {
			notifier.OfferVisible(o.AssignmentID())
		},
	}

	eng, err := engine.NewEngine(
		sched, sess,
		client, client,
		stagestore.NewGormStageStore(gormDB),
		settlementrepo.NewGormSettlementLedger(gormDB),
		hooks, logger,
	)
	if err != nil {
		return nil, err
	}

	trackerHooks := engine.TrackerHooks{
		OnNewOrder: func(id kernel.UUID) {
			notifier.OrderPending(id)
		},
		OnStatusChanged: func(id kernel.UUID, status order.Status) {
			if status != order.Pending {
				notifier.OrderLeftPending(id)
			}
		},
		OnAutoCancelled: func(id kernel.UUID) {
			notifier.OrderLeftPending(id)
		},
	}
	tracker, err := engine.NewOrderTracker(sched, client, trackerHooks, logger)
	if err != nil {
		return nil, err
	}

	root := &CompositionRoot{
		gormDB:   gormDB,
		logger:   logger,
		engine:   eng,
		tracker:  tracker,
		notifier: notifier,
	}

	consumer, err := push.NewConsumer(
		[]string{cfg.KafkaHost},
		cfg.KafkaConsumerGroup,
		cfg.KafkaEventsTopic,
		root.dispatchEvent,
		logger,
	)
	if err != nil {
		return nil, err
	}
	root.consumer = consumer
	root.jobs = jobs.NewJobManager(eng, logger)

	return root, nil
}

// dispatchEvent fans one push event out to both actors; each ignores the
// variants that are not its concern.
func (r *CompositionRoot) dispatchEvent(ctx context.Context, ev engine.Event) {
	r.engine.Dispatch(ctx, ev)
	r.tracker.HandleEvent(ev)
}

// Engine returns the courier-side engine.
func (r *CompositionRoot) Engine() *engine.Engine {
	return r.engine
}

// Tracker returns the shop-side order tracker.
func (r *CompositionRoot) Tracker() *engine.OrderTracker {
	return r.tracker
}

// CreateGetEarningsQueryHandler returns a handler for earnings queries.
func (r *CompositionRoot) CreateGetEarningsQueryHandler() queries.GetEarningsQueryHandler {
	return queries.NewGetEarningsQueryHandler(r.gormDB)
}

// StartBackground launches the scheduled jobs and the push consumer. The
// consumer runs until ctx is cancelled.
func (r *CompositionRoot) StartBackground(ctx context.Context) error {
	if err := r.jobs.StartAll(); err != nil {
		return err
	}

	go func() {
		if err := r.consumer.Run(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("push consumer stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown stops background work and tears the actors down.
func (r *CompositionRoot) Shutdown() {
	r.jobs.StopAll()
	if err := r.consumer.Close(); err != nil {
		r.logger.Warn("failed to close push consumer", "error", err)
	}
	r.engine.Close()
	r.tracker.Close()
	r.notifier.Reset()
}

// logAlertSink renders alerts into the structured log; a real deployment
// replaces it with the UI bridge.
type logAlertSink struct {
	logger *slog.Logger
}

func (s logAlertSink) ShopNewOrderAlert(shopOrderID kernel.UUID) {
	s.logger.Info("ALERT new order", "order", shopOrderID.String())
}

func (s logAlertSink) CourierNewOfferAlert(assignmentID kernel.UUID) {
	s.logger.Info("ALERT new offer", "assignment", assignmentID.String())
}
