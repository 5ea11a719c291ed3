package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrLocationUnavailable indicates the device position could not be obtained (denied or timed out).
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrOutsideGeofence matches any *GeofenceViolationError.
	ErrOutsideGeofence = errors.New("outside geofence")
	// ErrAlreadyClockedIn is returned when a clock-in is attempted while a shift is active.
	ErrAlreadyClockedIn = errors.New("a shift is already active")
	// ErrInvalidSyncKey is returned for blank or oversized partition keys.
	ErrInvalidSyncKey = errors.New("invalid sync key")
	// ErrInvalidSettings is returned when a settings update carries out-of-range values.
	ErrInvalidSettings = errors.New("invalid settings")
)

// GeofenceViolationError reports how far outside the configured radius a clock-in was attempted.
type GeofenceViolationError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *GeofenceViolationError) Error() string {
	return fmt.Sprintf("outside geofence: %.0fm from home, limit %.0fm", e.DistanceMeters, e.RadiusMeters)
}

// Is lets errors.Is(err, ErrOutsideGeofence) match.
func (e *GeofenceViolationError) Is(target error) bool {
	return target == ErrOutsideGeofence
}

// UserMessage renders clock errors as text suitable for showing to the nanny.
func UserMessage(err error) string {
	var violation *GeofenceViolationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &violation):
		return fmt.Sprintf("You are %d meters away from the home location. Please clock in when you arrive.",
			int(math.Round(violation.DistanceMeters)))
	case errors.Is(err, ErrLocationUnavailable):
		return "Could not get your location. Please enable location services and try again."
	case errors.Is(err, ErrAlreadyClockedIn):
		return "You are already clocked in."
	default:
		return err.Error()
	}
}
