package stagestore

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/session"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStageStore implements StageStore using GORM.
type GormStageStore struct {
	db *gorm.DB
}

// NewGormStageStore creates a new GORM stage store.
func NewGormStageStore(db *gorm.DB) *GormStageStore {
	return &GormStageStore{db: db}
}

// Get retrieves the persisted job record for the order. Returns false when
// nothing is stored.
func (s *GormStageStore) Get(ctx context.Context, orderID kernel.UUID) (ports.JobRecord, bool, error) {
	if err := orderID.Validate(); err != nil {
		return ports.JobRecord{}, false, err
	}

	var dto JobStageDTO
	if err := s.db.WithContext(ctx).First(&dto, "order_id = ?", orderID.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.JobRecord{}, false, nil
		}
		return ports.JobRecord{}, false, err
	}

	stage, err := session.StageFromString(dto.Stage)
	if err != nil {
		return ports.JobRecord{}, false, err
	}
	return ports.JobRecord{Stage: stage, Fee: dto.Fee}, true, nil
}

// Set persists the job record for the order, overwriting any previous row.
func (s *GormStageStore) Set(ctx context.Context, orderID kernel.UUID, rec ports.JobRecord) error {
	if err := orderID.Validate(); err != nil {
		return err
	}
	if err := rec.Stage.Validate(); err != nil {
		return err
	}
	if rec.Fee < 0 {
		return errs.NewValueIsInvalidError("fee")
	}

	dto := JobStageDTO{
		OrderID:   orderID.Bytes(),
		Stage:     rec.Stage.String(),
		Fee:       rec.Fee,
		UpdatedAt: time.Now().UTC(),
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stage", "fee", "updated_at"}),
	}).Create(&dto).Error
}

// Delete removes the persisted record. Deleting a missing row is not an
// error.
func (s *GormStageStore) Delete(ctx context.Context, orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Delete(&JobStageDTO{}, "order_id = ?", orderID.Bytes()).Error
}
