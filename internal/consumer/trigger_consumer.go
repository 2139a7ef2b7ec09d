package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/sensor-notifier/internal/models"
	"github.com/CyberwizD/sensor-notifier/internal/services"
)

// TriggerHandler runs the cycle for one trigger event.
type TriggerHandler interface {
	Handle(ctx context.Context, event *models.TriggerEvent) error
}

// attemptsHeader counts the failed handlings of a trigger across its
// republished copies.
const attemptsHeader = "x-attempts"

// acknowledger is the subset of amqp.Delivery the consumer settles with.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

// republisher puts a trigger back on the queue for another attempt.
type republisher interface {
	Republish(ctx context.Context, msg amqp.Publishing) error
}

type TriggerConsumer struct {
	base          *BaseConsumer
	handler       TriggerHandler
	retries       republisher
	logger        *slog.Logger
	maxDeliveries int
}

func NewTriggerConsumer(base *BaseConsumer, handler TriggerHandler, logger *slog.Logger, maxDeliveries int) *TriggerConsumer {
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	return &TriggerConsumer{
		base:          base,
		handler:       handler,
		retries:       base,
		logger:        logger,
		maxDeliveries: maxDeliveries,
	}
}

func (p *TriggerConsumer) Start(ctx context.Context) error {
	return p.base.Start(ctx, p.handleDelivery)
}

func (p *TriggerConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	return p.settle(ctx, msg, &msg)
}

// settle handles one delivery and decides its fate: ack on success, reject
// for payloads no retry can fix, republish with a bumped attempt count while
// below maxDeliveries, and dead-letter after that.
func (p *TriggerConsumer) settle(ctx context.Context, msg amqp.Delivery, ack acknowledger) error {
	var event models.TriggerEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		p.logger.Error("failed to unmarshal trigger event", slog.Any("error", err))
		_ = ack.Reject(false)
		return err
	}

	err := p.handler.Handle(ctx, &event)
	if err == nil {
		return ack.Ack(false)
	}
	log := p.logger.With(slog.String("event_id", event.EventID), slog.String("kind", string(event.Kind)))

	if services.IsMalformed(err) {
		log.Error("trigger event rejected", slog.Any("error", err))
		_ = ack.Reject(false)
		return err
	}

	attempts := deliveryAttempts(&msg) + 1
	if attempts >= p.maxDeliveries {
		log.Error("cycle failed, trigger dead-lettered", slog.Int("attempts", attempts), slog.Any("error", err))
		_ = ack.Nack(false, false)
		return err
	}

	if pubErr := p.retries.Republish(ctx, retryPublishing(msg, attempts)); pubErr != nil {
		log.Error("failed to republish trigger, requeueing", slog.Any("error", pubErr))
		_ = ack.Nack(false, true)
		return errors.Join(err, pubErr)
	}
	log.Warn("cycle failed, trigger republished", slog.Int("attempts", attempts), slog.Any("error", err))
	_ = ack.Ack(false)
	return err
}

func retryPublishing(msg amqp.Delivery, attempts int) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int32(attempts)
	return amqp.Publishing{
		Headers:      headers,
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageId,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	}
}

// deliveryAttempts returns how many times the trigger has already failed.
func deliveryAttempts(msg *amqp.Delivery) int {
	switch n := msg.Headers[attemptsHeader].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
