package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/session"
)

// JobRecord is the durable snapshot of an in-flight job: the courier's
// current stage plus the delivery fee owed on completion. The fee travels
// with the stage so a resumed job still settles the amount the deliverer
// accepted.
type JobRecord struct {
	Stage session.Stage
	Fee   float64
}

// StageStore is the durable key-value store for job resumability, scoped by
// order id. A reload reads the stored record back and resumes the job flow
// there instead of restarting it.
//
// The store holds at most one record per order; Set overwrites. Terminal
// stages are never stored: completion and cancellation Delete the key.
type StageStore interface {
	// Get returns the persisted job record for the order. The second result
	// is false when nothing is stored.
	Get(ctx context.Context, orderID kernel.UUID) (JobRecord, bool, error)

	// Set persists the job record for the order, overwriting any previous
	// value.
	Set(ctx context.Context, orderID kernel.UUID, rec JobRecord) error

	// Delete removes the persisted record. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, orderID kernel.UUID) error
}
