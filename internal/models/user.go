package models

import "time"

// User is an account in the user directory.
type User struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	LastSeenAt time.Time `json:"last_seen_at" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserPage is one page of the paged user listing. An empty NextPageToken
// marks the last page.
type UserPage struct {
	Users         []User
	NextPageToken string
}

// CleanupCandidate is an account selected for deletion.
type CleanupCandidate struct {
	UserID     string
	LastSeenAt time.Time
}
