// Package bus moves records between the acquisition and persistence
// processes over AMQP.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/danya02/multibooru-mirror/internal/record"
)

// Config holds the AMQP topology shared by publisher and consumer.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// Publisher sends records to the record exchange. Deliveries are persistent
// and mandatory, so a record published while the queue is missing comes back
// instead of vanishing.
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
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

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	// Mandatory publishes that the broker cannot route come back here.
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))
	go func() {
		for ret := range returns {
			logger.Error("record returned as unroutable",
				"reply_code", ret.ReplyCode,
				"reply_text", ret.ReplyText,
				"routing_key", ret.RoutingKey,
			)
		}
	}()

	return &Publisher{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// declareTopology sets up the durable direct exchange, the durable queue and
// the binding. Declarations are idempotent, so both ends of the bus perform
// them and neither cares which started first.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	err := ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Publish sends one record.
func (p *Publisher) Publish(ctx context.Context, rec record.Record) error {
	body, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish record: %w", err)
	}

	p.logger.Debug("published record", "id", rec.ID, "key", rec.Key())

	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
