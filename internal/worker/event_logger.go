package worker

import (
	"encoding/json"
	"log"

	"github.com/rabbitmq/amqp091-go"

	"github.com/example/fieldserv/backend/internal/mq"
)

// EventLogger drains the bound service event queue and writes each event to
// the process log. Richer notification channels (mail, push) hang off the
// same queue; until one exists this keeps deliveries acknowledged.
type EventLogger struct {
	consumer mq.Consumer
}

// NewEventLogger builds the logger over an already-bound consumer.
func NewEventLogger(consumer mq.Consumer) *EventLogger {
	return &EventLogger{consumer: consumer}
}

// Start registers the handler and returns; deliveries arrive on the
// consumer's goroutine.
func (l *EventLogger) Start() error {
	if l.consumer == nil {
		return nil
	}
	return l.consumer.Consume(l.handle)
}

func (l *EventLogger) handle(msg amqp091.Delivery) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		log.Printf("event %s: malformed payload: %v", msg.RoutingKey, err)
		_ = msg.Nack(false, false)
		return
	}
	log.Printf("event %s: %s", msg.RoutingKey, msg.Body)
	_ = msg.Ack(false)
}
