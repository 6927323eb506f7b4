package queries

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var (
	ErrGetEarningsQueryIsNotConstructed = errors.New(
		"GetEarningsQuery must be created via NewGetEarningsQuery constructor",
	)
)

// GetEarningsQuery retrieves the settlement accruals of one deliverer.
// Returns every recorded delivery fee, newest first.
type GetEarningsQuery struct {
	delivererID kernel.UUID

	guard guard.ConstructorGuard
}

// NewGetEarningsQuery creates a query for the given deliverer's earnings.
func NewGetEarningsQuery(delivererID kernel.UUID) (GetEarningsQuery, error) {
	if err := delivererID.Validate(); err != nil {
		return GetEarningsQuery{}, err
	}

	return GetEarningsQuery{
		delivererID: delivererID,
		guard:       guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the query was created through the constructor.
// Returns ErrGetEarningsQueryIsNotConstructed if validation fails.
func (q GetEarningsQuery) Validate() error {
	return q.guard.Validate(ErrGetEarningsQueryIsNotConstructed)
}

// DelivererID returns the deliverer whose earnings are requested.
func (q GetEarningsQuery) DelivererID() kernel.UUID {
	return q.delivererID
}

// GetEarningsQueryResponse represents one settlement accrual row.
type GetEarningsQueryResponse struct {
	OrderID   kernel.UUID
	Fee       float64
	AccruedAt time.Time
}
