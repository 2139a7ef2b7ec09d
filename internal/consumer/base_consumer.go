package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// BaseConsumer wires RabbitMQ connectivity, queue declaration and worker handling.
type BaseConsumer struct {
	conn         *amqp.Connection
	queue        string
	dlq          string
	prefetch     int
	workerCount  int
	logger       *slog.Logger
	exchangeName string
	routingKeys  []string

	mu sync.RWMutex
	ch *amqp.Channel
}

var errNotConsuming = errors.New("consumer: no open channel")

func NewBaseConsumer(conn *amqp.Connection, queue, dlq string, prefetch, workerCount int, logger *slog.Logger) *BaseConsumer {
	if prefetch <= 0 {
		prefetch = 50
	}
	if workerCount <= 0 {
		workerCount = 4
	}
	return &BaseConsumer{
		conn:         conn,
		queue:        queue,
		dlq:          dlq,
		prefetch:     prefetch,
		workerCount:  workerCount,
		logger:       logger,
		exchangeName: "sensors.events",
		routingKeys:  []string{"state_write", "device_created", "info_update", "scheduled_tick"},
	}
}

// Start consumes until ctx is done or the broker closes the channel. Each
// worker handles one delivery at a time, so distinct devices are processed
// concurrently.
func (c *BaseConsumer) Start(ctx context.Context, handler func(context.Context, amqp.Delivery) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	c.setChannel(ch)
	defer c.setChannel(nil)

	if err := c.declare(ch); err != nil {
		return fmt.Errorf("queue setup failed: %w", err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.Info("trigger consumer started", slog.String("queue", c.queue), slog.Int("workers", c.workerCount))

	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.work(ctx, id, deliveries, handler)
		}(i)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case amqpErr, ok := <-closed:
		if ok && amqpErr != nil {
			runErr = fmt.Errorf("channel closed by broker: %w", amqpErr)
		}
	}
	wg.Wait()
	return runErr
}

func (c *BaseConsumer) work(ctx context.Context, id int, deliveries <-chan amqp.Delivery, handler func(context.Context, amqp.Delivery) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			if err := handler(ctx, msg); err != nil {
				c.logger.Error("handler returned error",
					slog.Int("worker", id),
					slog.String("routing_key", msg.RoutingKey),
					slog.Any("error", err))
			}
		}
	}
}

// declare sets up the direct exchange, the trigger queue bound to every
// trigger kind, and the dead-letter queue.
func (c *BaseConsumer) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchangeName, err)
	}

	args := amqp.Table{}
	if c.dlq != "" {
		if _, err := ch.QueueDeclare(c.dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", c.dlq, err)
		}
		args["x-dead-letter-exchange"] = ""
		args["x-dead-letter-routing-key"] = c.dlq
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare %s: %w", c.queue, err)
	}

	for _, key := range c.routingKeys {
		if err := ch.QueueBind(c.queue, key, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func (c *BaseConsumer) setChannel(ch *amqp.Channel) {
	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()
}

// Republish puts msg at the tail of the trigger queue through the default
// exchange.
func (c *BaseConsumer) Republish(_ context.Context, msg amqp.Publishing) error {
	if c == nil {
		return errNotConsuming
	}
	c.mu.RLock()
	ch := c.ch
	c.mu.RUnlock()
	if ch == nil {
		return errNotConsuming
	}
	if err := ch.Publish("", c.queue, false, false, msg); err != nil {
		return fmt.Errorf("republish to %s: %w", c.queue, err)
	}
	return nil
}
