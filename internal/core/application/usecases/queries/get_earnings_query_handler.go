package queries

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetEarningsQueryHandler retrieves a deliverer's settlement accruals from
// the database. Reads the ledger directly; the job flow never goes through
// this path.
type GetEarningsQueryHandler struct {
	db *gorm.DB
}

// NewGetEarningsQueryHandler creates a handler for earnings queries.
// Requires a GORM database connection for query execution.
func NewGetEarningsQueryHandler(db *gorm.DB) GetEarningsQueryHandler {
	return GetEarningsQueryHandler{db: db}
}

// Handle executes the query to retrieve all accruals for the deliverer,
// newest first.
func (h GetEarningsQueryHandler) Handle(
	ctx context.Context,
	query GetEarningsQuery,
) ([]GetEarningsQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	accruals := make([]GetEarningsQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			order_id,
			fee,
			accrued_at
		FROM settlement_accruals
		WHERE deliverer_id = ?
		ORDER BY accrued_at DESC
	`, query.DelivererID().Bytes()).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp GetEarningsQueryResponse
		var id uuid.UUID

		if err = rows.Scan(&id, &resp.Fee, &resp.AccruedAt); err != nil {
			return nil, err
		}

		orderID, idErr := kernel.UUIDFromBytes(id[:])
		if idErr != nil {
			return nil, idErr
		}
		resp.OrderID = orderID
		accruals = append(accruals, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return accruals, nil
}
