package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header keys set on every shift event.
const (
	HeaderEventType = "event_type"
	HeaderSyncKey   = "sync_key"
)

// Writer is the subset of kafka.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes shift events to a single topic keyed by sync key,
// so every event for a household lands on the same partition in order.
type KafkaPublisher struct {
	writer Writer
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher with a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		Async:                  false,
	})
}

// NewPublisher wraps an existing writer.
func NewPublisher(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

// Publish encodes evt and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Envelope) error {
	msg, err := Encode(evt, p.now())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Encode renders evt as a Kafka message with a JSON payload.
func Encode(evt Envelope, ts time.Time) (kafka.Message, error) {
	if evt.Type == "" {
		return kafka.Message{}, fmt.Errorf("event type is required")
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s payload: %w", evt.Type, err)
	}
	return kafka.Message{
		Key:   []byte(evt.SyncKey),
		Value: payload,
		Time:  ts.UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(evt.Type)},
			{Key: HeaderSyncKey, Value: []byte(evt.SyncKey)},
		},
	}, nil
}

// NoopPublisher discards events. Used when no brokers are configured.
type NoopPublisher struct{}

// Publish implements the publisher contract without side effects.
func (NoopPublisher) Publish(context.Context, Envelope) error { return nil }

// Close is a no-op.
func (NoopPublisher) Close() error { return nil }
