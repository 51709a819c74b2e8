package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed reports that the broker closed the delivery stream,
// usually because the connection died. The consumer exits so the supervisor
// can restart the process rather than idle on a dead channel.
var ErrDeliveriesClosed = errors.New("bus: delivery channel closed")

// Handler processes one delivery body. A non-nil error rejects the delivery
// without requeueing it; redelivering a message that failed to decode or
// persist would just fail again.
type Handler func(ctx context.Context, body []byte) error

// Consumer reads records off the queue and feeds them to a handler,
// acknowledging each delivery manually.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	tag     string
	logger  *slog.Logger
}

func NewConsumer(cfg Config, consumerTag string, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("consuming from rabbitmq",
		"queue", cfg.QueueName,
		"consumer_tag", consumerTag,
	)

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   cfg.QueueName,
		tag:     consumerTag,
		logger:  logger,
	}, nil
}

// Run consumes deliveries until ctx is canceled (returns nil) or the broker
// closes the stream (returns ErrDeliveriesClosed).
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		c.tag,
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	if err := handler(ctx, delivery.Body); err != nil {
		c.logger.Error("delivery rejected", "error", err, "delivery_tag", delivery.DeliveryTag)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("nack failed", "error", nackErr)
		}
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("ack failed", "error", ackErr)
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
