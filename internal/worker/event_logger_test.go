package worker

import (
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked  int
	nacked int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked++
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

type stubConsumer struct {
	handler func(amqp091.Delivery)
	closed  bool
}

func (c *stubConsumer) Consume(handler func(amqp091.Delivery)) error {
	c.handler = handler
	return nil
}

func (c *stubConsumer) Close() error {
	c.closed = true
	return nil
}

func TestEventLoggerAcksWellFormedEvents(t *testing.T) {
	consumer := &stubConsumer{}
	require.NoError(t, NewEventLogger(consumer).Start())
	require.NotNil(t, consumer.handler)

	acker := &fakeAcknowledger{}
	consumer.handler(amqp091.Delivery{
		Acknowledger: acker,
		RoutingKey:   "service.closed",
		Body:         []byte(`{"event":"service.closed","serviceId":"abc"}`),
	})

	assert.Equal(t, 1, acker.acked)
	assert.Zero(t, acker.nacked)
}

func TestEventLoggerDropsMalformedPayloads(t *testing.T) {
	consumer := &stubConsumer{}
	require.NoError(t, NewEventLogger(consumer).Start())

	acker := &fakeAcknowledger{}
	consumer.handler(amqp091.Delivery{
		Acknowledger: acker,
		RoutingKey:   "payment.debt.reminder",
		Body:         []byte("not json"),
	})

	assert.Zero(t, acker.acked)
	assert.Equal(t, 1, acker.nacked)
}

func TestEventLoggerStartWithoutConsumerIsNoop(t *testing.T) {
	require.NoError(t, NewEventLogger(nil).Start())
}
