package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

// RecipientStore is the recipient registry backed by the notification_tokens
// table. Token is the primary key, so duplicates cannot exist.
type RecipientStore struct {
	db *gorm.DB
}

func NewRecipientStore(db *gorm.DB) *RecipientStore {
	return &RecipientStore{db: db}
}

func (s *RecipientStore) Recipients(ctx context.Context) ([]models.Recipient, error) {
	var rows []models.Recipient
	if err := s.db.WithContext(ctx).Order("token").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Register adds a recipient or updates the tier of an existing token.
func (s *RecipientStore) Register(ctx context.Context, r models.Recipient) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"level"}),
		}).Create(&r).Error
}

// RemoveRecipient deletes token. Deleting a token that is already gone is
// not an error.
func (s *RecipientStore) RemoveRecipient(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Recipient{}).Error
}
