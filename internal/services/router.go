package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CyberwizD/sensor-notifier/internal/models"
	"github.com/CyberwizD/sensor-notifier/pkg/metrics"
)

var (
	// ErrUnknownEvent marks a trigger whose kind is not handled.
	ErrUnknownEvent = errors.New("unknown trigger kind")
	// ErrMissingInfo marks an info update without the new record.
	ErrMissingInfo = errors.New("info update without info record")
)

// IsMalformed reports errors that retrying the same event cannot fix.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, ErrMissingInfo) ||
		errors.Is(err, models.ErrInvalidDeviceID)
}

// Router hands each trigger event to the component responsible for it.
type Router struct {
	notifier *Notifier
	cleanup  *CleanupJob
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewRouter(notifier *Notifier, cleanup *CleanupJob, metrics *metrics.Metrics, logger *slog.Logger) *Router {
	return &Router{
		notifier: notifier,
		cleanup:  cleanup,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle runs the cycle for one trigger event. A returned error means the
// invocation failed and may be redelivered.
func (r *Router) Handle(ctx context.Context, event *models.TriggerEvent) error {
	r.metrics.IncTrigger(string(event.Kind))

	switch event.Kind {
	case models.TriggerStateWrite, models.TriggerDeviceCreated:
		id, err := models.ParseDeviceID(event.DevicePath)
		if err != nil {
			return err
		}
		if event.Kind == models.TriggerStateWrite {
			_, err = r.notifier.HandleStateWrite(ctx, id, event.After)
		} else {
			_, err = r.notifier.HandleDeviceCreated(ctx, id, event.After)
		}
		return err

	case models.TriggerInfoUpdate:
		if event.InfoAfter == nil {
			return ErrMissingInfo
		}
		_, err := r.notifier.HandleInfoUpdate(ctx, *event.InfoAfter)
		return err

	case models.TriggerScheduledTick:
		if r.cleanup == nil {
			return fmt.Errorf("%w: cleanup is not configured", ErrUnknownEvent)
		}
		_, err := r.cleanup.Run(ctx)
		if errors.Is(err, ErrCleanupRunning) {
			r.logger.Info("cleanup tick skipped, previous run still active", slog.String("event_id", event.EventID))
			return nil
		}
		return err

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Kind)
	}
}
