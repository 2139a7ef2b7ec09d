package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/CyberwizD/sensor-notifier/internal/models"
	"github.com/CyberwizD/sensor-notifier/pkg/batch"
	"github.com/CyberwizD/sensor-notifier/pkg/metrics"
)

var errNoResult = errors.New("transport returned no result")

// Pruner removes dead recipient tokens from the registry.
type Pruner interface {
	Prune(ctx context.Context, tokens []string)
}

// DispatchReport summarises one fan-out.
type DispatchReport struct {
	CycleID   string
	Class     models.MessageClass
	Outcomes  []models.DeliveryOutcome
	PruneList []string
	Delivered int
	Transient int
	Permanent int
}

// Dispatcher fans a message out to recipients through the batch processor.
type Dispatcher struct {
	transport   PushProvider
	pruner      Pruner
	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxInFlight int
}

// NewDispatcher builds a dispatcher. maxInFlight <= 0 lets every recipient of
// a cycle be in flight at once.
func NewDispatcher(transport PushProvider, pruner Pruner, maxInFlight int, metrics *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport:   transport,
		pruner:      pruner,
		metrics:     metrics,
		logger:      logger,
		maxInFlight: maxInFlight,
	}
}

// Dispatch delivers msg to every recipient, never retrying, and hands the
// tokens that failed permanently to the pruner before returning.
func (d *Dispatcher) Dispatch(ctx context.Context, msg models.NotificationMessage, recipients []models.Recipient) DispatchReport {
	report := DispatchReport{Class: msg.Class}
	if len(recipients) == 0 {
		return report
	}

	limit := d.maxInFlight
	if limit <= 0 || limit > len(recipients) {
		limit = len(recipients)
	}

	results := batch.Values(ctx, recipients, limit, func(ctx context.Context, r models.Recipient) (models.PushResult, error) {
		return d.sendOne(ctx, msg, r.Token)
	})

	report.Outcomes = make([]models.DeliveryOutcome, 0, len(results))
	for _, res := range results {
		outcome := classify(res.Item.Token, res.Value, res.Err)
		report.Outcomes = append(report.Outcomes, outcome)
		d.metrics.IncDelivery(string(outcome.Result))

		switch outcome.Result {
		case models.OutcomeDelivered:
			report.Delivered++
		case models.OutcomeTransient:
			report.Transient++
			d.logger.Warn("failure sending notification",
				slog.String("token", outcome.Token),
				slog.String("class", string(msg.Class)),
				slog.String("code", outcome.ErrorCode),
				slog.Any("error", outcome.Err))
		case models.OutcomePermanent:
			report.Permanent++
			report.PruneList = append(report.PruneList, outcome.Token)
			d.logger.Error("recipient token is dead",
				slog.String("token", outcome.Token),
				slog.String("code", outcome.ErrorCode))
		}
	}

	if len(report.PruneList) > 0 && d.pruner != nil {
		d.pruner.Prune(ctx, report.PruneList)
	}
	return report
}

func (d *Dispatcher) sendOne(ctx context.Context, msg models.NotificationMessage, token string) (models.PushResult, error) {
	results, err := d.transport.Send(ctx, &PushPayload{
		Tokens:   []string{token},
		Title:    msg.Title,
		Body:     msg.Body,
		Priority: msg.Priority,
		Data:     map[string]string{"class": string(msg.Class)},
	})
	if err != nil {
		return models.PushResult{Token: token}, err
	}
	for _, res := range results {
		if res.Token == token {
			return res, nil
		}
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return models.PushResult{Token: token}, errNoResult
}

// classify maps a transport result onto a delivery outcome. Only the
// invalid and unregistered token codes are permanent.
func classify(token string, res models.PushResult, err error) models.DeliveryOutcome {
	outcome := models.DeliveryOutcome{Token: token, ErrorCode: res.ErrorCode, Err: err}
	switch {
	case err != nil:
		outcome.Result = models.OutcomeTransient
	case res.ErrorCode == "":
		outcome.Result = models.OutcomeDelivered
	case models.IsPermanentCode(res.ErrorCode):
		outcome.Result = models.OutcomePermanent
	default:
		outcome.Result = models.OutcomeTransient
	}
	return outcome
}
