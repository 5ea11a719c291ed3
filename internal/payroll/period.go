// Package payroll computes rolling 14-day pay periods over completed shifts.
package payroll

import (
	"errors"
	"math"
	"time"

	"example.com/nannytracker/internal/domain"
)

// PeriodLength is the span of one pay period.
const PeriodLength = 14 * 24 * time.Hour

// ErrInvalidOffset is returned for negative period offsets.
var ErrInvalidOffset = errors.New("period offset must be >= 0")

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// PeriodWindow returns the window for offset periods back from now (0 = current).
// Windows roll with now rather than being anchored to a calendar.
func PeriodWindow(now time.Time, offset int) (Window, error) {
	if offset < 0 {
		return Window{}, ErrInvalidOffset
	}
	start := now.Add(-time.Duration(offset+1) * PeriodLength)
	return Window{Start: start, End: start.Add(PeriodLength)}, nil
}

// Filter keeps sessions whose start time falls inside w, preserving order.
func Filter(sessions []domain.Session, w Window) []domain.Session {
	out := make([]domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if w.Contains(s.StartTime) {
			out = append(out, s)
		}
	}
	return out
}

// DayBucket is the hours worked on one weekday of the period.
type DayBucket struct {
	Weekday time.Weekday
	Name    string
	Hours   float64
}

// Report is the aggregate for a single pay period.
type Report struct {
	Offset       int
	Window       Window
	Sessions     []domain.Session
	TotalMinutes int
	TotalHours   float64
	TotalPay     float64
	HourlyRate   float64
	Chart        []DayBucket
}

// Compute filters sessions into the period and totals hours and pay, both rounded to cents.
func Compute(sessions []domain.Session, offset int, hourlyRate float64, now time.Time, loc *time.Location) (Report, error) {
	window, err := PeriodWindow(now, offset)
	if err != nil {
		return Report{}, err
	}
	if loc == nil {
		loc = time.Local
	}

	filtered := Filter(sessions, window)
	minutes := 0
	for _, s := range filtered {
		minutes += s.Minutes()
	}
	hours := float64(minutes) / 60

	return Report{
		Offset:       offset,
		Window:       window,
		Sessions:     filtered,
		TotalMinutes: minutes,
		TotalHours:   Round2(hours),
		TotalPay:     Round2(hours * hourlyRate),
		HourlyRate:   hourlyRate,
		Chart:        WeekdayChart(filtered, loc),
	}, nil
}

// ForSnapshot computes the report for a household's completed shifts at its configured rate.
func ForSnapshot(snapshot domain.Snapshot, offset int, now time.Time, loc *time.Location) (Report, error) {
	return Compute(snapshot.Sessions, offset, snapshot.Settings.Rate(), now, loc)
}

// WeekdayChart sums hours per local weekday. Only weekdays that occur are returned, Sunday first.
func WeekdayChart(sessions []domain.Session, loc *time.Location) []DayBucket {
	var (
		minutes [7]int
		seen    [7]bool
	)
	for _, s := range sessions {
		day := s.StartTime.In(loc).Weekday()
		minutes[day] += s.Minutes()
		seen[day] = true
	}

	buckets := make([]DayBucket, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if !seen[day] {
			continue
		}
		buckets = append(buckets, DayBucket{Weekday: day, Name: day.String(), Hours: Round2(float64(minutes[day]) / 60)})
	}
	return buckets
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
