package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishEncodesShiftCompleted(t *testing.T) {
	w := &captureWriter{}
	p := NewPublisher(w)

	start := time.Date(2025, time.March, 24, 9, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), Envelope{
		Type:    TypeShiftCompleted,
		SyncKey: "smith-family",
		Payload: ShiftCompleted{
			SessionID:   "s-1",
			SyncKey:     "smith-family",
			StartedAt:   start,
			EndedAt:     start.Add(90 * time.Minute),
			DurationMin: 90,
		},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "smith-family", string(msg.Key))
	require.Equal(t, TypeShiftCompleted, header(msg, HeaderEventType))
	require.Equal(t, "smith-family", header(msg, HeaderSyncKey))
	require.JSONEq(t, `{
		"session_id":"s-1",
		"sync_key":"smith-family",
		"started_at":"2025-03-24T09:00:00Z",
		"ended_at":"2025-03-24T10:30:00Z",
		"duration_min":90,
		"out_of_bounds":false
	}`, string(msg.Value))

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestPublishPropagatesWriterError(t *testing.T) {
	p := NewPublisher(&captureWriter{err: errors.New("broker down")})
	err := p.Publish(context.Background(), Envelope{Type: TypeShiftStarted, SyncKey: "k", Payload: ShiftStarted{}})
	require.ErrorContains(t, err, "broker down")
}

func TestEncodeRequiresType(t *testing.T) {
	_, err := Encode(Envelope{SyncKey: "k"}, time.Now())
	require.Error(t, err)
}
