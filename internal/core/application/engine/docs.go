// Package engine implements the client-side dispatch engine: the timer-driven
// application core that coordinates a deliverer's offer visibility, acceptance
// arbitration, and active-job progression, plus the shop-side order tracker
// and the alert reconciliation spanning both.
//
// The package is organized around three actors:
//
//   - Engine: the courier-side engine, one instance per logged-in deliverer.
//     It owns the VisibleOfferSet with its reveal and acceptance timers
//     (gate.go), the at-most-one-accept arbitration against the backing store
//     (accept.go), and the stage progression of the active job with durable
//     resumability (job.go).
//   - OrderTracker: the shop-side engine tracking pending/preparing orders,
//     the five-minute auto-cancel timer, and the ten-minute soft deadline
//     with its countdown display (tracker.go).
//   - Notifier: the reconciliation layer deduplicating alerts across the
//     poll and push channels (notifier.go).
//
// All state is guarded by one mutex per engine instance and every delay goes
// through a clock.Scheduler, so timer callbacks and API calls serialize and
// tests can drive time deterministically. Gateway calls are issued with the
// mutex released and their results re-validated on reacquisition: a timer may
// legitimately fire while a network call for the same assignment is in
// flight, and the backing store's rejection always wins over optimistic local
// state.
package engine
