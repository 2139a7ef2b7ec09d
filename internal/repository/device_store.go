package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

// DeviceStore reads the device registry and the location tags.
type DeviceStore struct {
	db *gorm.DB
}

func NewDeviceStore(db *gorm.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// Devices returns every device keyed by id.
func (s *DeviceStore) Devices(ctx context.Context) (map[models.DeviceID]models.Device, error) {
	var rows []models.Device
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	devices := make(map[models.DeviceID]models.Device, len(rows))
	for _, d := range rows {
		devices[d.ID] = d
	}
	return devices, nil
}

// Locations returns the location tag of every tagged device.
func (s *DeviceStore) Locations(ctx context.Context) (models.LocationTags, error) {
	var rows []models.LocationTag
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	tags := make(models.LocationTags, len(rows))
	for _, t := range rows {
		tags[t.DeviceID] = t.Location
	}
	return tags, nil
}
