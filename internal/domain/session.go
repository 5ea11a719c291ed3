package domain

import (
	"math"
	"time"

	"example.com/nannytracker/internal/geofence"
)

// ClockStatus is the clock state of a household.
type ClockStatus string

const (
	StatusClockedOut ClockStatus = "CLOCKED_OUT"
	StatusClockedIn  ClockStatus = "CLOCKED_IN"
)

// Session is one shift. EndTime and DurationInMinutes are nil while the shift is active.
type Session struct {
	ID                string
	StartTime         time.Time
	EndTime           *time.Time
	DurationInMinutes *int
	Note              string
	IsOutOfBounds     bool
	Location          *geofence.Coordinate
}

// Active reports whether the session is still in progress.
func (s Session) Active() bool {
	return s.EndTime == nil
}

// Minutes returns the recorded duration, treating a missing duration as zero.
func (s Session) Minutes() int {
	if s.DurationInMinutes == nil {
		return 0
	}
	return *s.DurationInMinutes
}

// Complete closes the session at end. The duration is rounded to the nearest
// minute and never negative.
func (s Session) Complete(end time.Time, note string) Session {
	minutes := int(math.Round(float64(end.Sub(s.StartTime)) / float64(time.Minute)))
	if minutes < 0 {
		minutes = 0
	}
	s.EndTime = &end
	s.DurationInMinutes = &minutes
	if note != "" {
		s.Note = note
	}
	return s
}

// Settings holds per-household configuration. A nil HourlyRate has never been
// set and takes the service default; zero is a valid rate.
type Settings struct {
	Home       *geofence.HomeConfig
	HourlyRate *float64
}

// Rate returns the hourly rate, or zero when none is set.
func (s Settings) Rate() float64 {
	if s.HourlyRate == nil {
		return 0
	}
	return *s.HourlyRate
}

// Snapshot is everything stored under a single sync key.
type Snapshot struct {
	Sessions []Session // completed, newest first
	Active   *Session
	Settings Settings
}

// Empty reports whether nothing has ever been stored.
func (s Snapshot) Empty() bool {
	return len(s.Sessions) == 0 && s.Active == nil && s.Settings.Home == nil && s.Settings.HourlyRate == nil
}

// Status derives the clock status from the active slot.
func (s Snapshot) Status() ClockStatus {
	if s.Active != nil {
		return StatusClockedIn
	}
	return StatusClockedOut
}
