// Package domain defines the shift lifecycle for a household: clock-in, clock-out and settings.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/nannytracker/internal/events"
	"example.com/nannytracker/internal/geofence"
	"example.com/nannytracker/internal/observability"
)

const maxSyncKeyLength = 128

// SessionRepository persists a household snapshot under its sync key.
type SessionRepository interface {
	Load(ctx context.Context, syncKey string) (Snapshot, error)
	Save(ctx context.Context, syncKey string, snapshot Snapshot) error
	Delete(ctx context.Context, syncKey string) error
}

// LocateOptions mirrors the knobs a device geolocation API accepts.
type LocateOptions struct {
	Timeout      time.Duration
	HighAccuracy bool
}

// LocationProvider yields the current device position.
type LocationProvider interface {
	CurrentLocation(ctx context.Context, opts LocateOptions) (geofence.Coordinate, error)
}

// EventPublisher hands shift events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, evt events.Envelope) error
}

// Defaults apply when a household has not configured its own values.
type Defaults struct {
	HourlyRate   float64
	RadiusMeters float64
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithPublisher sets the shift event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger overrides the logger used to report background failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocateTimeout bounds location acquisition during clock-in.
func WithLocateTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.locateTimeout = d
	}
}

// WithDefaults sets the fallback hourly rate and geofence radius.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// Service orchestrates clock-in/clock-out against the repository.
type Service struct {
	repo          SessionRepository
	publisher     EventPublisher
	logger        *log.Logger
	now           func() time.Time
	locateTimeout time.Duration
	defaults      Defaults
	locks         keyedMutex
}

// NewService constructs a Service.
func NewService(repo SessionRepository, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		logger:        log.New(log.Writer(), "[domain] ", log.LstdFlags),
		now:           time.Now,
		locateTimeout: 10 * time.Second,
		defaults:      Defaults{HourlyRate: 20, RadiusMeters: 100},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StatusView is the current clock state of a household.
type StatusView struct {
	Status ClockStatus
	Active *Session
}

// ClockIn starts a shift after verifying the device position against the household geofence.
func (s *Service) ClockIn(ctx context.Context, syncKey string, locator LocationProvider) (*Session, error) {
	syncKey, err := normalizeKey(syncKey)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(syncKey)
	defer unlock()

	snapshot, err := s.repo.Load(ctx, syncKey)
	if err != nil {
		observability.RecordClockIn(observability.ClockInError)
		return nil, err
	}
	if snapshot.Active != nil {
		observability.RecordClockIn(observability.ClockInAlreadyActive)
		return nil, ErrAlreadyClockedIn
	}

	point, err := s.locate(ctx, locator)
	if err != nil {
		observability.RecordClockIn(observability.ClockInLocationUnavailable)
		return nil, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}

	check := geofence.Evaluate(snapshot.Settings.Home, point)
	if check.Checked {
		observability.ObserveGeofenceDistance(check.DistanceMeters)
	}
	if check.Outside {
		observability.RecordClockIn(observability.ClockInGeofenceViolation)
		return nil, &GeofenceViolationError{DistanceMeters: check.DistanceMeters, RadiusMeters: check.RadiusMeters}
	}

	session := Session{
		ID:            uuid.NewString(),
		StartTime:     s.now(),
		IsOutOfBounds: false,
		Location:      &point,
	}
	snapshot.Active = &session
	if err := s.repo.Save(ctx, syncKey, snapshot); err != nil {
		observability.RecordClockIn(observability.ClockInError)
		return nil, err
	}
	observability.RecordClockIn(observability.ClockInOK)

	started := events.ShiftStarted{
		SessionID: session.ID,
		SyncKey:   syncKey,
		StartedAt: session.StartTime.UTC(),
		Lat:       &point.Lat,
		Lng:       &point.Lng,
	}
	if check.Checked {
		started.DistanceMeters = &check.DistanceMeters
	}
	s.publish(ctx, events.Envelope{Type: events.TypeShiftStarted, SyncKey: syncKey, Payload: started})

	return &session, nil
}

// ClockOut closes the active shift. It returns (nil, nil) and writes nothing when no shift is active.
func (s *Service) ClockOut(ctx context.Context, syncKey, note string) (*Session, error) {
	syncKey, err := normalizeKey(syncKey)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(syncKey)
	defer unlock()

	snapshot, err := s.repo.Load(ctx, syncKey)
	if err != nil {
		return nil, err
	}
	if snapshot.Active == nil {
		return nil, nil
	}

	completed := snapshot.Active.Complete(s.now(), strings.TrimSpace(note))
	history := make([]Session, 0, len(snapshot.Sessions)+1)
	history = append(history, completed)
	history = append(history, snapshot.Sessions...)
	snapshot.Sessions = history
	snapshot.Active = nil

	if err := s.repo.Save(ctx, syncKey, snapshot); err != nil {
		return nil, err
	}
	observability.RecordShiftCompleted(*completed.EndTime, completed.Minutes())

	s.publish(ctx, events.Envelope{Type: events.TypeShiftCompleted, SyncKey: syncKey, Payload: events.ShiftCompleted{
		SessionID:   completed.ID,
		SyncKey:     syncKey,
		StartedAt:   completed.StartTime.UTC(),
		EndedAt:     completed.EndTime.UTC(),
		DurationMin: completed.Minutes(),
		Note:        completed.Note,
		OutOfBounds: completed.IsOutOfBounds,
	}})

	return &completed, nil
}

// Status reports whether a shift is active.
func (s *Service) Status(ctx context.Context, syncKey string) (StatusView, error) {
	snapshot, err := s.Snapshot(ctx, syncKey)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{Status: snapshot.Status(), Active: snapshot.Active}, nil
}

// Snapshot loads everything stored for the household with defaults applied to its settings.
func (s *Service) Snapshot(ctx context.Context, syncKey string) (Snapshot, error) {
	syncKey, err := normalizeKey(syncKey)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot, err := s.repo.Load(ctx, syncKey)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Settings = s.effective(snapshot.Settings)
	return snapshot, nil
}

// Settings returns the effective household settings.
func (s *Service) Settings(ctx context.Context, syncKey string) (Settings, error) {
	snapshot, err := s.Snapshot(ctx, syncKey)
	if err != nil {
		return Settings{}, err
	}
	return snapshot.Settings, nil
}

// HomeUpdate sets the geofence center. A nil radius falls back to the default radius.
type HomeUpdate struct {
	Lat          float64
	Lng          float64
	RadiusMeters *float64
}

// SettingsUpdate is a partial settings change; nil fields are left untouched.
type SettingsUpdate struct {
	Home       *HomeUpdate
	ClearHome  bool
	HourlyRate *float64
}

// UpdateSettings applies a partial settings change and returns the effective result.
func (s *Service) UpdateSettings(ctx context.Context, syncKey string, update SettingsUpdate) (Settings, error) {
	syncKey, err := normalizeKey(syncKey)
	if err != nil {
		return Settings{}, err
	}
	if update.HourlyRate != nil && (*update.HourlyRate < 0 || math.IsNaN(*update.HourlyRate)) {
		return Settings{}, fmt.Errorf("%w: hourly_rate must be >= 0", ErrInvalidSettings)
	}

	var home *geofence.HomeConfig
	if update.Home != nil {
		radius := s.defaults.RadiusMeters
		if update.Home.RadiusMeters != nil {
			radius = *update.Home.RadiusMeters
		}
		home = &geofence.HomeConfig{Lat: update.Home.Lat, Lng: update.Home.Lng, RadiusMeters: radius}
		if err := home.Validate(); err != nil {
			return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}

	unlock := s.locks.lock(syncKey)
	defer unlock()

	snapshot, err := s.repo.Load(ctx, syncKey)
	if err != nil {
		return Settings{}, err
	}
	if update.ClearHome {
		snapshot.Settings.Home = nil
	}
	if home != nil {
		snapshot.Settings.Home = home
	}
	if update.HourlyRate != nil {
		rate := *update.HourlyRate
		snapshot.Settings.HourlyRate = &rate
	}
	if err := s.repo.Save(ctx, syncKey, snapshot); err != nil {
		return Settings{}, err
	}
	return s.effective(snapshot.Settings), nil
}

// Reset removes everything stored under the sync key.
func (s *Service) Reset(ctx context.Context, syncKey string) error {
	syncKey, err := normalizeKey(syncKey)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(syncKey)
	defer unlock()
	return s.repo.Delete(ctx, syncKey)
}

// Now exposes the service clock so period windows line up with session timestamps.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) effective(settings Settings) Settings {
	if settings.HourlyRate == nil {
		rate := s.defaults.HourlyRate
		settings.HourlyRate = &rate
	}
	return settings
}

type locateResult struct {
	point geofence.Coordinate
	err   error
}

// locate enforces the timeout even when the provider ignores its context.
func (s *Service) locate(ctx context.Context, locator LocationProvider) (geofence.Coordinate, error) {
	if locator == nil {
		return geofence.Coordinate{}, errors.New("no location provider")
	}

	opts := LocateOptions{Timeout: s.locateTimeout, HighAccuracy: true}
	if s.locateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.locateTimeout)
		defer cancel()
	}

	done := make(chan locateResult, 1)
	go func() {
		point, err := locator.CurrentLocation(ctx, opts)
		done <- locateResult{point: point, err: err}
	}()

	select {
	case <-ctx.Done():
		return geofence.Coordinate{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return geofence.Coordinate{}, res.err
		}
		if !res.point.Valid() {
			return geofence.Coordinate{}, fmt.Errorf("implausible position %.6f,%.6f", res.point.Lat, res.point.Lng)
		}
		return res.point, nil
	}
}

func (s *Service) publish(ctx context.Context, evt events.Envelope) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		observability.RecordPublishFailure(evt.Type)
		s.logger.Printf("publish %s failed (sync_key=%s): %v", evt.Type, evt.SyncKey, err)
	}
}

func normalizeKey(syncKey string) (string, error) {
	key := strings.TrimSpace(syncKey)
	if key == "" {
		return "", fmt.Errorf("%w: sync key is required", ErrInvalidSyncKey)
	}
	if len(key) > maxSyncKeyLength {
		return "", fmt.Errorf("%w: sync key longer than %d characters", ErrInvalidSyncKey, maxSyncKeyLength)
	}
	return key, nil
}
