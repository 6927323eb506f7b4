package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
)

// SettlementLedger records the deliverer's earnings. A delivered order
// triggers exactly one accrual; the ledger is append-only and owned by the
// settlement adapter, not by the job flow that calls it.
type SettlementLedger interface {
	// Accrue records the delivery fee earned by the deliverer for the order.
	Accrue(ctx context.Context, delivererID kernel.UUID, orderID kernel.UUID, fee float64) error
}
