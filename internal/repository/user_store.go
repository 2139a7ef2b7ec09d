package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

// UserStore is the user directory. Pages are keyset-paginated by id and the
// continuation token is the last id of the previous page.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) ListUsers(ctx context.Context, pageSize int, pageToken string) (models.UserPage, error) {
	q := s.db.WithContext(ctx).Order("id").Limit(pageSize)
	if pageToken != "" {
		q = q.Where("id > ?", pageToken)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return models.UserPage{}, err
	}

	page := models.UserPage{Users: users}
	if len(users) == pageSize {
		page.NextPageToken = users[len(users)-1].ID
	}
	return page, nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{}).Error
}
