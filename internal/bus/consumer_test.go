package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

// fakeAcknowledger records the acknowledgement decision for one delivery.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func testConsumer() *Consumer {
	return &Consumer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHandleDeliveryAcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)}

	testConsumer().handleDelivery(context.Background(), delivery, func(ctx context.Context, body []byte) error {
		assert.Equal(t, []byte(`{}`), body)
		return nil
	})

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestHandleDeliveryNacksWithoutRequeueOnFailure(t *testing.T) {
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`garbage`)}

	testConsumer().handleDelivery(context.Background(), delivery, func(ctx context.Context, body []byte) error {
		return errors.New("unknown record variant")
	})

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue, "a failed delivery must not be requeued")
}
