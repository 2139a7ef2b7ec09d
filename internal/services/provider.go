package services

import (
	"context"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

// PushPayload is the fully composed payload handed to a provider.
type PushPayload struct {
	Tokens   []string
	Title    string
	Body     string
	Priority models.Priority
	Data     map[string]string
}

// PushProvider represents a downstream push transport. Send returns one
// result per token; a non-nil error means the call as a whole failed.
type PushProvider interface {
	Name() string
	Send(ctx context.Context, payload *PushPayload) ([]models.PushResult, error)
}
