// Package events defines the shift event payloads exchanged over Kafka.
package events

import "time"

// Event types carried in the event_type header.
const (
	TypeShiftStarted   = "shift.started"
	TypeShiftCompleted = "shift.completed"
)

// ShiftStarted is emitted after a successful clock-in.
type ShiftStarted struct {
	SessionID      string    `json:"session_id"`
	SyncKey        string    `json:"sync_key"`
	StartedAt      time.Time `json:"started_at"`
	Lat            *float64  `json:"lat,omitempty"`
	Lng            *float64  `json:"lng,omitempty"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
}

// ShiftCompleted is emitted after a clock-out closes the active session.
type ShiftCompleted struct {
	SessionID   string    `json:"session_id"`
	SyncKey     string    `json:"sync_key"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	DurationMin int       `json:"duration_min"`
	Note        string    `json:"note,omitempty"`
	OutOfBounds bool      `json:"out_of_bounds"`
}

// Envelope pairs a payload with its routing metadata.
type Envelope struct {
	Type    string
	SyncKey string
	Payload any
}
