// Package settlementrepo records deliverer earnings as append-only accrual
// rows. Each delivered order produces exactly one row; the caller enforces
// that, the repository only appends.
package settlementrepo

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccrualDTO represents the database structure for one earnings accrual.
type AccrualDTO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DelivererID uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Fee         float64   `gorm:"type:numeric;not null"`
	AccruedAt   time.Time `gorm:"not null"`
}

// TableName specifies the database table name for accrual rows.
func (AccrualDTO) TableName() string {
	return "settlement_accruals"
}

// GormSettlementLedger implements SettlementLedger using GORM.
type GormSettlementLedger struct {
	db *gorm.DB
}

// NewGormSettlementLedger creates a new GORM settlement ledger.
func NewGormSettlementLedger(db *gorm.DB) *GormSettlementLedger {
	return &GormSettlementLedger{db: db}
}

// Accrue appends one earnings row for the delivered order.
func (l *GormSettlementLedger) Accrue(ctx context.Context, delivererID, orderID kernel.UUID, fee float64) error {
	if err := delivererID.Validate(); err != nil {
		return err
	}
	if err := orderID.Validate(); err != nil {
		return err
	}
	if fee < 0 {
		return errs.NewValueIsInvalidError("fee")
	}

	dto := AccrualDTO{
		ID:          kernel.NewUUID().Bytes(),
		DelivererID: delivererID.Bytes(),
		OrderID:     orderID.Bytes(),
		Fee:         fee,
		AccruedAt:   time.Now().UTC(),
	}

	return l.db.WithContext(ctx).Create(&dto).Error
}
