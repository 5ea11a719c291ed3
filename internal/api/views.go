package api

import (
	"time"

	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/geofence"
	"example.com/nannytracker/internal/payroll"
)

// ClockInRequest carries the device fix, or the error the device reported instead.
type ClockInRequest struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error,omitempty"`
}

// ClockOutRequest is the payload for POST .../clock-out.
type ClockOutRequest struct {
	Note string `json:"note"`
}

// HomeRequest sets the geofence center. A missing radius uses the configured default.
type HomeRequest struct {
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	RadiusMeters *float64 `json:"radius_meters,omitempty"`
}

// UpdateSettingsRequest is a partial settings change.
type UpdateSettingsRequest struct {
	Home       *HomeRequest `json:"home,omitempty"`
	ClearHome  bool         `json:"clear_home,omitempty"`
	HourlyRate *float64     `json:"hourly_rate,omitempty"`
}

// LocationView is a captured position.
type LocationView struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SessionView exposes one shift.
type SessionView struct {
	ID                string        `json:"id"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	DurationInMinutes *int          `json:"duration_in_minutes,omitempty"`
	Note              string        `json:"note,omitempty"`
	IsOutOfBounds     bool          `json:"is_out_of_bounds"`
	Location          *LocationView `json:"location,omitempty"`
}

// StatusResponse describes the clock state of a household.
type StatusResponse struct {
	Status        string       `json:"status"`
	Role          string       `json:"role"`
	ActiveSession *SessionView `json:"active_session"`
}

// ClockResponse is returned by clock-in and clock-out. Changed is false for a clock-out with nothing active.
type ClockResponse struct {
	Status  string       `json:"status"`
	Changed bool         `json:"changed"`
	Session *SessionView `json:"session"`
}

// SessionsResponse lists completed shifts, newest first.
type SessionsResponse struct {
	Items         []SessionView `json:"items"`
	ActiveSession *SessionView  `json:"active_session"`
}

// HomeView is the configured geofence.
type HomeView struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radius_meters"`
}

// SettingsView exposes effective household settings.
type SettingsView struct {
	Home       *HomeView `json:"home"`
	HourlyRate float64   `json:"hourly_rate"`
}

// DayView is one bar of the weekday chart.
type DayView struct {
	Weekday string  `json:"weekday"`
	Hours   float64 `json:"hours"`
}

// ReportResponse is the aggregate for one pay period.
type ReportResponse struct {
	Offset       int           `json:"offset"`
	PeriodStart  time.Time     `json:"period_start"`
	PeriodEnd    time.Time     `json:"period_end"`
	TotalMinutes int           `json:"total_minutes"`
	TotalHours   float64       `json:"total_hours"`
	TotalPay     float64       `json:"total_pay"`
	HourlyRate   float64       `json:"hourly_rate"`
	Sessions     []SessionView `json:"sessions"`
	Chart        []DayView     `json:"chart"`
}

// SummaryResponse carries generated or fallback text.
type SummaryResponse struct {
	Offset  int    `json:"offset"`
	Summary string `json:"summary"`
}

// GeofenceErrorResponse extends the error body with the measured distance.
type GeofenceErrorResponse struct {
	Type           string  `json:"type"`
	Detail         string  `json:"detail"`
	DistanceMeters float64 `json:"distance_meters"`
	RadiusMeters   float64 `json:"radius_meters"`
}

func toSessionView(s domain.Session) SessionView {
	view := SessionView{
		ID:                s.ID,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		DurationInMinutes: s.DurationInMinutes,
		Note:              s.Note,
		IsOutOfBounds:     s.IsOutOfBounds,
	}
	if s.Location != nil {
		view.Location = &LocationView{Lat: s.Location.Lat, Lng: s.Location.Lng}
	}
	return view
}

func toSessionViewPtr(s *domain.Session) *SessionView {
	if s == nil {
		return nil
	}
	view := toSessionView(*s)
	return &view
}

func toSettingsView(s domain.Settings) SettingsView {
	view := SettingsView{HourlyRate: s.Rate()}
	if s.Home.Configured() {
		view.Home = toHomeView(*s.Home)
	}
	return view
}

func toHomeView(h geofence.HomeConfig) *HomeView {
	return &HomeView{Lat: h.Lat, Lng: h.Lng, RadiusMeters: h.RadiusMeters}
}

func toReportView(r payroll.Report) ReportResponse {
	resp := ReportResponse{
		Offset:       r.Offset,
		PeriodStart:  r.Window.Start,
		PeriodEnd:    r.Window.End,
		TotalMinutes: r.TotalMinutes,
		TotalHours:   r.TotalHours,
		TotalPay:     r.TotalPay,
		HourlyRate:   r.HourlyRate,
		Sessions:     make([]SessionView, 0, len(r.Sessions)),
		Chart:        make([]DayView, 0, len(r.Chart)),
	}
	for _, s := range r.Sessions {
		resp.Sessions = append(resp.Sessions, toSessionView(s))
	}
	for _, d := range r.Chart {
		resp.Chart = append(resp.Chart, DayView{Weekday: d.Name, Hours: d.Hours})
	}
	return resp
}
