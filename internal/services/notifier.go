package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CyberwizD/sensor-notifier/internal/models"
	"github.com/CyberwizD/sensor-notifier/pkg/metrics"
)

// DeviceRegistry returns a snapshot of every device keyed by id.
type DeviceRegistry interface {
	Devices(ctx context.Context) (map[models.DeviceID]models.Device, error)
}

// LocationStore returns a snapshot of the location tags.
type LocationStore interface {
	Locations(ctx context.Context) (models.LocationTags, error)
}

// RecipientRegistry returns a snapshot of the registered recipients.
type RecipientRegistry interface {
	Recipients(ctx context.Context) ([]models.Recipient, error)
}

// TokenChecker reports which of the given tokens were pruned but may still
// appear in a snapshot.
type TokenChecker interface {
	SuppressedTokens(ctx context.Context, tokens []string) (map[string]bool, error)
}

// Notifier runs one dispatch cycle per trigger: snapshot reads, composition,
// filtering and fan-out.
type Notifier struct {
	devices    DeviceRegistry
	locations  LocationStore
	recipients RecipientRegistry
	suppressed TokenChecker
	dispatcher *Dispatcher
	status     *StatusUpdater
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewNotifier(
	devices DeviceRegistry,
	locations LocationStore,
	recipients RecipientRegistry,
	suppressed TokenChecker,
	dispatcher *Dispatcher,
	status *StatusUpdater,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{
		devices:    devices,
		locations:  locations,
		recipients: recipients,
		suppressed: suppressed,
		dispatcher: dispatcher,
		status:     status,
		metrics:    metrics,
		logger:     logger,
	}
}

type snapshot struct {
	devices    map[models.DeviceID]models.Device
	locations  models.LocationTags
	recipients []models.Recipient
}

// HandleStateWrite notifies about a state write on device id. fallback is
// used when the registry snapshot no longer has the device.
func (n *Notifier) HandleStateWrite(ctx context.Context, id models.DeviceID, fallback *models.Device) (DispatchReport, error) {
	return n.cycle(ctx, models.TriggerStateWrite, true, func(s snapshot) (models.NotificationMessage, bool) {
		return ComposeStateChange(n.lookup(s, id, fallback), s.locations)
	})
}

// HandleDeviceCreated announces a newly registered device to everyone.
func (n *Notifier) HandleDeviceCreated(ctx context.Context, id models.DeviceID, fallback *models.Device) (DispatchReport, error) {
	return n.cycle(ctx, models.TriggerDeviceCreated, true, func(s snapshot) (models.NotificationMessage, bool) {
		return ComposeDeviceJoined(n.lookup(s, id, fallback)), true
	})
}

// HandleInfoUpdate reports power or security failures from the info record.
func (n *Notifier) HandleInfoUpdate(ctx context.Context, info models.InfoRecord) (DispatchReport, error) {
	return n.cycle(ctx, models.TriggerInfoUpdate, false, func(snapshot) (models.NotificationMessage, bool) {
		return ComposeInfoUpdate(info)
	})
}

func (n *Notifier) cycle(
	ctx context.Context,
	kind models.TriggerKind,
	needDevices bool,
	compose func(snapshot) (models.NotificationMessage, bool),
) (DispatchReport, error) {
	cycleID := uuid.NewString()
	log := n.logger.With(slog.String("cycle_id", cycleID), slog.String("trigger", string(kind)))

	snap, err := n.readSnapshot(ctx, needDevices)
	if err != nil {
		n.metrics.IncCycleFailed(string(kind))
		n.status.MarkFailed(ctx, cycleID, kind, err.Error())
		return DispatchReport{CycleID: cycleID}, fmt.Errorf("read snapshot: %w", err)
	}

	msg, ok := compose(snap)
	if !ok {
		log.Debug("transition suppressed, nothing to send")
		return DispatchReport{CycleID: cycleID}, nil
	}

	eligible := n.dropSuppressed(ctx, FilterRecipients(snap.recipients, msg.Class))
	n.status.MarkProcessing(ctx, cycleID, kind, msg.Class, len(eligible))

	report := n.dispatcher.Dispatch(ctx, msg, eligible)
	report.CycleID = cycleID
	n.status.MarkCompleted(ctx, kind, report)

	log.Info("dispatch cycle finished",
		slog.String("class", string(msg.Class)),
		slog.Int("recipients", len(eligible)),
		slog.Int("delivered", report.Delivered),
		slog.Int("transient", report.Transient),
		slog.Int("pruned", report.Permanent))
	return report, nil
}

// readSnapshot loads every input of the cycle before any send starts.
func (n *Notifier) readSnapshot(ctx context.Context, needDevices bool) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recipients, err := n.recipients.Recipients(gctx)
		if err != nil {
			return fmt.Errorf("recipients: %w", err)
		}
		snap.recipients = recipients
		return nil
	})
	if needDevices {
		g.Go(func() error {
			devices, err := n.devices.Devices(gctx)
			if err != nil {
				return fmt.Errorf("devices: %w", err)
			}
			snap.devices = devices
			return nil
		})
		g.Go(func() error {
			locations, err := n.locations.Locations(gctx)
			if err != nil {
				return fmt.Errorf("locations: %w", err)
			}
			snap.locations = locations
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func (n *Notifier) lookup(s snapshot, id models.DeviceID, fallback *models.Device) models.Device {
	if d, ok := s.devices[id]; ok {
		d.ID = id
		return d
	}
	if fallback != nil {
		d := *fallback
		d.ID = id
		return d
	}
	n.logger.Warn("device missing from registry snapshot", slog.Int64("device_id", int64(id)))
	return models.Device{ID: id}
}

func (n *Notifier) dropSuppressed(ctx context.Context, recipients []models.Recipient) []models.Recipient {
	if n.suppressed == nil || len(recipients) == 0 {
		return recipients
	}
	tokens := make([]string, 0, len(recipients))
	for _, r := range recipients {
		tokens = append(tokens, r.Token)
	}
	suppressed, err := n.suppressed.SuppressedTokens(ctx, tokens)
	if err != nil {
		n.logger.Warn("token suppression lookup failed", slog.Int("tokens", len(tokens)), slog.Any("error", err))
		return recipients
	}

	kept := recipients[:0]
	for _, r := range recipients {
		if !suppressed[r.Token] {
			kept = append(kept, r)
		}
	}
	return kept
}
