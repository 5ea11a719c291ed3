package consumer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerHandler appends shift events to shift_event_log for payroll auditing.
type LedgerHandler struct {
	pool *pgxpool.Pool
}

// NewLedgerHandler constructs a handler backed by the provided pool.
func NewLedgerHandler(pool *pgxpool.Pool) *LedgerHandler {
	return &LedgerHandler{pool: pool}
}

// Handle stores the event. Redelivered records are ignored by (topic, partition, offset).
func (h *LedgerHandler) Handle(ctx context.Context, msg Message) error {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	tag, err := conn.Exec(ctx,
		`INSERT INTO shift_event_log (event_type, sync_key, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.SyncKey,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		receivedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		recordDuplicate()
	}
	return nil
}
