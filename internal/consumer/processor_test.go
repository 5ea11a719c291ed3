package consumer

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/nannytracker/internal/events"
)

func shiftMessage(offset int64, eventType string, payload string) kafka.Message {
	return kafka.Message{
		Topic:     "nanny.shift.events.v1",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Key:       []byte("smith-family"),
		Value:     []byte(payload),
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(eventType)},
			{Key: events.HeaderSyncKey, Value: []byte("smith-family")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := `{"session_id":"abc","duration_min":90}`
	reader := &stubReader{
		messages: []kafka.Message{shiftMessage(10, events.TypeShiftCompleted, payload)},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, []int64{10}, reader.committed)
	require.Equal(t, events.TypeShiftCompleted, handler.last.EventType)
	require.Equal(t, "smith-family", handler.last.SyncKey)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, payload, string(handler.last.Payload))
}

func TestProcessorRetriesFailedRecordBeforeMovingOn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{
			shiftMessage(10, events.TypeShiftStarted, `{"session_id":"a"}`),
			shiftMessage(11, events.TypeShiftCompleted, `{"session_id":"a","duration_min":30}`),
		},
		after: contextCanceled,
	}
	handler := &stubHandler{failures: 1, err: errors.New("connection reset")}

	processor := NewProcessor(reader, handler,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond),
	)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, []int64{10, 10, 11}, handler.offsets)
	require.Equal(t, []int64{10, 11}, reader.committed)
}

func TestProcessorStopsWithoutCommittingWhileHandlerFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{
			shiftMessage(20, events.TypeShiftStarted, `{"session_id":"def"}`),
			shiftMessage(21, events.TypeShiftStarted, `{"session_id":"ghi"}`),
		},
		after: contextCanceled,
	}
	handler := &stubHandler{failures: -1, err: errors.New("boom")}
	handler.onCall = func() {
		if len(handler.offsets) == 3 {
			cancel()
		}
	}

	processor := NewProcessor(reader, handler,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithRetryBackoff(time.Millisecond, time.Millisecond),
	)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, []int64{20, 20, 20}, handler.offsets)
	require.Empty(t, reader.committed)
	require.Equal(t, 1, reader.index, "later records must not be fetched")
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noHeader := shiftMessage(1, events.TypeShiftStarted, `{}`)
	noHeader.Headers = nil
	reader := &stubReader{
		messages: []kafka.Message{
			shiftMessage(0, events.TypeShiftStarted, `not json`),
			noHeader,
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 0, handler.calls)
	require.Equal(t, []int64{0, 1}, reader.committed)
}

func TestDecodeFallsBackToMessageKey(t *testing.T) {
	msg := shiftMessage(3, events.TypeShiftStarted, `{}`)
	msg.Headers = msg.Headers[:1]

	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, "smith-family", decoded.SyncKey)

	msg.Key = nil
	_, err = decodeMessage(msg)
	require.Error(t, err)
}

type stubReader struct {
	messages  []kafka.Message
	index     int
	committed []int64
	after     func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

// stubHandler returns err for the first failures calls, or for every call when failures is negative.
type stubHandler struct {
	calls    int
	failures int
	err      error
	last     Message
	offsets  []int64
	onCall   func()
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	h.offsets = append(h.offsets, msg.Offset)
	if h.onCall != nil {
		h.onCall()
	}
	if h.failures < 0 || h.calls <= h.failures {
		return h.err
	}
	return nil
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
