//go:build integration

package bus

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/danya02/multibooru-mirror/internal/record"
)

type BusIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *BusIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *BusIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestBusIntegrationSuite(t *testing.T) {
	suite.Run(t, new(BusIntegrationSuite))
}

func (s *BusIntegrationSuite) TestPublishConsumeRoundTrip() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-records",
		RoutingKey: "test-records",
		QueueName:  "test-records",
	}

	pub, err := NewPublisher(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	sent := record.New(record.Rule34Comment{
		ID: 1001,
		State: record.Rule34CommentState{
			Kind: record.StatePresent,
			Present: &record.Rule34CommentData{
				PostID:     77,
				AuthorName: "alice",
				CreatedAt:  time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC),
				Body:       "first!",
			},
		},
	})
	s.Require().NoError(pub.Publish(s.ctx, sent))

	consumer, err := NewConsumer(cfg, "test-reader", s.logger)
	s.Require().NoError(err)
	defer consumer.Close()

	received := make(chan record.Record, 1)
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	go func() {
		_ = consumer.Run(ctx, func(ctx context.Context, body []byte) error {
			rec, err := record.Decode(body)
			if err != nil {
				return err
			}
			received <- rec
			cancel()
			return nil
		})
	}()

	select {
	case got := <-received:
		s.Equal(sent.ID, got.ID)
		s.Equal(sent.Key(), got.Key())
		s.Equal(sent.Data, got.Data)
	case <-ctx.Done():
		s.Fail("timeout waiting for record")
	}
}

func (s *BusIntegrationSuite) TestBadDeliveryIsDropped() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-bad-records",
		RoutingKey: "test-bad-records",
		QueueName:  "test-bad-records",
	}

	pub, err := NewPublisher(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	sent := record.New(record.Rule34Comment{
		ID:    5,
		State: record.Rule34CommentState{Kind: record.StateAbsent},
	})
	s.Require().NoError(pub.Publish(s.ctx, sent))

	consumer, err := NewConsumer(cfg, "test-bad-reader", s.logger)
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	attempts := 0
	go func() {
		_ = consumer.Run(ctx, func(ctx context.Context, body []byte) error {
			attempts++
			cancel()
			return errors.New("unknown record variant")
		})
	}()

	<-ctx.Done()
	// rejected without requeue: the delivery must not come back
	time.Sleep(time.Second)
	s.Equal(1, attempts)
}
