package repository

import (
	"gorm.io/gorm"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

// Migrate creates or updates every table the notifier reads or writes.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Device{},
		&models.LocationTag{},
		&models.Recipient{},
		&models.User{},
		&models.CycleRecord{},
	)
}
