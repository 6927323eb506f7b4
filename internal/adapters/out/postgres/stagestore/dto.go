// Package stagestore persists the deliverer's in-flight job for
// resumability. One row per order; a reload reads the row back and resumes
// the job flow at the stored stage with the stored delivery fee.
package stagestore

import (
	"time"

	"github.com/google/uuid"
)

// JobStageDTO represents the database structure for the persisted job
// record.
type JobStageDTO struct {
	OrderID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Stage     string    `gorm:"type:varchar(32);not null"`
	Fee       float64   `gorm:"type:numeric;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the database table name for job stage rows.
func (JobStageDTO) TableName() string {
	return "job_stages"
}
