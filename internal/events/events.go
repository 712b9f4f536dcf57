// Package events publishes order and basket lifecycle events to Kafka.
// Publishing is fire-and-forget: a slow or missing broker never blocks a
// request, and events that cannot be queued are dropped with a warning.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderPaid          = "order.paid"
	BasketConverted    = "basket.converted"
	BasketExpired      = "basket.expired"
)

// Envelope wraps every published event.
type Envelope struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// NewEnvelope stamps data with a fresh id and the current time.
func NewEnvelope(eventType string, data any) Envelope {
	return Envelope{ID: uuid.New(), Type: eventType, OccurredAt: time.Now().UTC(), Data: data}
}

// Publisher queues events for delivery. Implementations must not block.
type Publisher interface {
	Publish(key string, e Envelope)
}

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(string, Envelope) {}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher routes order.* events to the orders topic and basket.*
// events to the baskets topic. A single goroutine drains the queue.
type KafkaPublisher struct {
	w            messageWriter
	ordersTopic  string
	basketsTopic string
	inbox        chan kafka.Message
	done         chan struct{}
}

// NewKafkaPublisher starts a publisher writing to brokers. Call Close on
// shutdown to flush queued events.
func NewKafkaPublisher(brokers []string, ordersTopic, basketsTopic string, buf int) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafkaPublisher(w, ordersTopic, basketsTopic, buf)
}

func newKafkaPublisher(w messageWriter, ordersTopic, basketsTopic string, buf int) *KafkaPublisher {
	p := &KafkaPublisher{
		w:            w,
		ordersTopic:  ordersTopic,
		basketsTopic: basketsTopic,
		inbox:        make(chan kafka.Message, buf),
		done:         make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *KafkaPublisher) loop() {
	defer close(p.done)
	for m := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.w.WriteMessages(ctx, m); err != nil {
			slog.Warn("event publish failed", "topic", m.Topic, "error", err)
		}
		cancel()
	}
	if err := p.w.Close(); err != nil {
		slog.Warn("event writer close failed", "error", err)
	}
}

// Publish queues e keyed by key, which keeps events for one order or
// basket on one partition.
func (p *KafkaPublisher) Publish(key string, e Envelope) {
	value, err := json.Marshal(e)
	if err != nil {
		slog.Warn("event encode failed", "type", e.Type, "error", err)
		return
	}
	m := kafka.Message{
		Topic: p.topicFor(e.Type),
		Key:   []byte(key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	select {
	case p.inbox <- m:
	default:
		slog.Warn("event queue full, dropping event", "type", e.Type, "key", key)
	}
}

func (p *KafkaPublisher) topicFor(eventType string) string {
	if strings.HasPrefix(eventType, "basket.") {
		return p.basketsTopic
	}
	return p.ordersTopic
}

// Close flushes queued events and closes the writer. Publish must not be
// called after Close.
func (p *KafkaPublisher) Close() {
	close(p.inbox)
	<-p.done
}
