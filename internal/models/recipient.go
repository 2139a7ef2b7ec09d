package models

import "time"

// Tier is the subscription level of a recipient.
type Tier int

const (
	TierUnset        Tier = 0
	TierStateChanges Tier = 1
	TierSystemHealth Tier = 2
	TierEverything   Tier = 3
)

// Recipient is a registered push endpoint.
type Recipient struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	Tier      Tier      `json:"level" gorm:"column:level"`
	CreatedAt time.Time `json:"created_at"`
}

func (Recipient) TableName() string { return "notification_tokens" }
