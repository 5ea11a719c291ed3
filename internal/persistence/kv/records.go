package kv

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/geofence"
)

// sessionRecord is the stored form of a session. Field names follow the browser
// app's local storage layout so exported data can be loaded as-is.
type sessionRecord struct {
	ID                string      `json:"id"`
	StartTime         int64       `json:"startTime"`
	EndTime           *int64      `json:"endTime,omitempty"`
	DurationInMinutes *int        `json:"durationInMinutes,omitempty"`
	Note              string      `json:"note,omitempty"`
	IsOutOfBounds     bool        `json:"isOutOfBounds,omitempty"`
	Location          *coordinate `json:"location,omitempty"`
}

type coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type settingsRecord struct {
	Home       *homeRecord `json:"home,omitempty"`
	HourlyRate *float64    `json:"hourlyRate,omitempty"`
}

type homeRecord struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radiusMeters"`
}

func toRecord(s domain.Session) sessionRecord {
	rec := sessionRecord{
		ID:                s.ID,
		StartTime:         s.StartTime.UnixMilli(),
		DurationInMinutes: s.DurationInMinutes,
		Note:              s.Note,
		IsOutOfBounds:     s.IsOutOfBounds,
	}
	if s.EndTime != nil {
		end := s.EndTime.UnixMilli()
		rec.EndTime = &end
	}
	if s.Location != nil {
		rec.Location = &coordinate{Lat: s.Location.Lat, Lng: s.Location.Lng}
	}
	return rec
}

func fromRecord(rec sessionRecord) domain.Session {
	s := domain.Session{
		ID:                rec.ID,
		StartTime:         time.UnixMilli(rec.StartTime).UTC(),
		DurationInMinutes: rec.DurationInMinutes,
		Note:              rec.Note,
		IsOutOfBounds:     rec.IsOutOfBounds,
	}
	if rec.EndTime != nil {
		end := time.UnixMilli(*rec.EndTime).UTC()
		s.EndTime = &end
	}
	if rec.Location != nil {
		s.Location = &geofence.Coordinate{Lat: rec.Location.Lat, Lng: rec.Location.Lng}
	}
	return s
}

func encodeSessions(sessions []domain.Session) ([]byte, error) {
	records := make([]sessionRecord, 0, len(sessions))
	for _, s := range sessions {
		records = append(records, toRecord(s))
	}
	return json.Marshal(records)
}

func decodeSessions(raw []byte) ([]domain.Session, error) {
	var records []sessionRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	out := make([]domain.Session, 0, len(records))
	for _, rec := range records {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

func encodeActive(s domain.Session) ([]byte, error) {
	return json.Marshal(toRecord(s))
}

func decodeActive(raw []byte) (*domain.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode active session: %w", err)
	}
	s := fromRecord(rec)
	return &s, nil
}

func encodeSettings(s domain.Settings) ([]byte, error) {
	rec := settingsRecord{HourlyRate: s.HourlyRate}
	if s.Home != nil {
		rec.Home = &homeRecord{Lat: s.Home.Lat, Lng: s.Home.Lng, RadiusMeters: s.Home.RadiusMeters}
	}
	return json.Marshal(rec)
}

func decodeSettings(raw []byte) (domain.Settings, error) {
	var rec settingsRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	out := domain.Settings{HourlyRate: rec.HourlyRate}
	if rec.Home != nil {
		out.Home = &geofence.HomeConfig{Lat: rec.Home.Lat, Lng: rec.Home.Lng, RadiusMeters: rec.Home.RadiusMeters}
	}
	return out, nil
}
