package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

// CycleStore upserts dispatch cycle summaries.
type CycleStore struct {
	db *gorm.DB
}

func NewCycleStore(db *gorm.DB) *CycleStore {
	return &CycleStore{db: db}
}

func (s *CycleStore) UpsertCycle(ctx context.Context, rec models.CycleRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cycle_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "class", "recipients", "delivered", "transient", "permanent", "detail", "updated_at",
			}),
		}).Create(&rec).Error
}
