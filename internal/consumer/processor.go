// Package consumer reads shift events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/nannytracker/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is a decoded shift event record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	EventType string
	SyncKey   string
	Payload   json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetryBackoff sets the first and the longest wait between handler attempts.
func WithRetryBackoff(initial, longest time.Duration) Option {
	return func(p *Processor) {
		p.initialBackoff = initial
		p.maxBackoff = longest
	}
}

// Processor pulls shift events from Kafka and records each one through a Handler.
// A record is committed only once the handler has accepted it, so a later
// offset is never committed past one that is still failing.
type Processor struct {
	reader         Reader
	handler        Handler
	logger         *log.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:         reader,
		handler:        handler,
		logger:         log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
		initialBackoff: 250 * time.Millisecond,
		maxBackoff:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes records until the context is cancelled. Undecodable records are
// committed and dropped; a handler failure is retried until it succeeds.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Printf("fetch: %v", err)
			continue
		}

		if err := p.process(ctx, record); err != nil {
			return err
		}
	}
}

// process returns an error only when ctx ends before the record was handled.
func (p *Processor) process(ctx context.Context, record kafka.Message) error {
	event, err := decodeMessage(record)
	if err != nil {
		p.logger.Printf("dropping %s/%d@%d: %v", record.Topic, record.Partition, record.Offset, err)
		recordDecodeError(record.Topic)
		p.commit(ctx, record)
		return nil
	}

	if err := p.handleWithRetry(ctx, event); err != nil {
		return err
	}
	if p.commit(ctx, record) {
		recordProcessed(event)
	}
	return nil
}

func (p *Processor) handleWithRetry(ctx context.Context, event Message) error {
	wait := p.initialBackoff
	for attempt := 1; ; attempt++ {
		err := p.handler.Handle(ctx, event)
		if err == nil {
			return nil
		}
		recordHandlerError(event)
		p.logger.Printf("%s for %s at offset %d failed (attempt %d, next in %s): %v",
			event.EventType, event.SyncKey, event.Offset, attempt, wait, err)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(2*wait, p.maxBackoff)
	}
}

// commit reports whether the offset was stored. kafka-go commits are
// cumulative, so a failed commit is covered by the next one.
func (p *Processor) commit(ctx context.Context, record kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, record); err != nil {
		p.logger.Printf("commit %s/%d@%d: %v", record.Topic, record.Partition, record.Offset, err)
		return false
	}
	return true
}

func decodeMessage(msg kafka.Message) (Message, error) {
	eventType, ok := headerValue(msg, events.HeaderEventType)
	if !ok || len(eventType) == 0 {
		return Message{}, errors.New("missing event_type header")
	}
	if !json.Valid(msg.Value) {
		return Message{}, fmt.Errorf("payload is not valid JSON (%d bytes)", len(msg.Value))
	}

	syncKey, ok := headerValue(msg, events.HeaderSyncKey)
	if !ok {
		syncKey = msg.Key
	}
	if len(syncKey) == 0 {
		return Message{}, errors.New("missing sync key")
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		EventType: string(eventType),
		SyncKey:   string(syncKey),
		Payload:   json.RawMessage(append([]byte(nil), msg.Value...)),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
