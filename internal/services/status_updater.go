package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// CycleStore persists dispatch cycle summaries.
type CycleStore interface {
	UpsertCycle(ctx context.Context, rec models.CycleRecord) error
}

// StatusUpdater records the lifecycle of each dispatch cycle. Store errors are
// logged and never fail the cycle. A nil *StatusUpdater records nothing.
type StatusUpdater struct {
	store  CycleStore
	logger *slog.Logger
}

func NewStatusUpdater(store CycleStore, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
	}
}

func (s *StatusUpdater) MarkProcessing(ctx context.Context, cycleID string, trigger models.TriggerKind, class models.MessageClass, recipients int) {
	s.write(ctx, models.CycleRecord{
		CycleID:    cycleID,
		Trigger:    string(trigger),
		Class:      string(class),
		Status:     StatusProcessing,
		Recipients: recipients,
	})
}

func (s *StatusUpdater) MarkCompleted(ctx context.Context, trigger models.TriggerKind, report DispatchReport) {
	s.write(ctx, models.CycleRecord{
		CycleID:    report.CycleID,
		Trigger:    string(trigger),
		Class:      string(report.Class),
		Status:     StatusCompleted,
		Recipients: len(report.Outcomes),
		Delivered:  report.Delivered,
		Transient:  report.Transient,
		Permanent:  report.Permanent,
	})
}

func (s *StatusUpdater) MarkFailed(ctx context.Context, cycleID string, trigger models.TriggerKind, detail string) {
	s.write(ctx, models.CycleRecord{
		CycleID: cycleID,
		Trigger: string(trigger),
		Status:  StatusFailed,
		Detail:  detail,
	})
}

func (s *StatusUpdater) write(ctx context.Context, rec models.CycleRecord) {
	if s == nil || s.store == nil {
		return
	}
	rec.UpdatedAt = time.Now().UTC()
	if err := s.store.UpsertCycle(ctx, rec); err != nil {
		s.logger.Error("failed to record dispatch cycle",
			slog.String("cycle_id", rec.CycleID),
			slog.String("status", rec.Status),
			slog.Any("error", err))
	}
}
