// Package session provides the deliverer-side domain model: the
// DelivererSession aggregate and the job Stage state machine.
//
// The package includes:
//   - DelivererSession: per-logged-in-deliverer state (online flag, active
//     job, job-credit balance), one instance per deliverer, reset on sign-out
//   - Stage: the courier-side step within an active job, distinct from the
//     shop-side order status
//
// Key business rules:
//   - A deliverer holds at most one active job at a time
//   - Going online requires a positive job-credit balance
//   - Stage progression is strictly ordered; the courier cancel exit is
//     reachable only before pickup
//   - Stages are persisted by order id so a reload resumes the correct stage
package session
