// Package location adapts client-reported device fixes to domain.LocationProvider.
package location

import (
	"context"
	"errors"
	"strings"

	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/geofence"
)

// ErrNoFix is returned when the client did not include a position.
var ErrNoFix = errors.New("no position reported")

// DeviceError is a geolocation failure reported by the client, such as a denied permission.
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string {
	return "device reported: " + e.Message
}

// Reported is the position a client sent alongside its request.
type Reported struct {
	Lat   *float64
	Lng   *float64
	Error string
}

// CurrentLocation implements domain.LocationProvider.
func (r Reported) CurrentLocation(ctx context.Context, _ domain.LocateOptions) (geofence.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geofence.Coordinate{}, err
	}
	if msg := strings.TrimSpace(r.Error); msg != "" {
		return geofence.Coordinate{}, &DeviceError{Message: msg}
	}
	if r.Lat == nil || r.Lng == nil {
		return geofence.Coordinate{}, ErrNoFix
	}
	return geofence.Coordinate{Lat: *r.Lat, Lng: *r.Lng}, nil
}

// Fixed always reports the same coordinate. Used by the operator CLI.
type Fixed geofence.Coordinate

// CurrentLocation implements domain.LocationProvider.
func (f Fixed) CurrentLocation(ctx context.Context, _ domain.LocateOptions) (geofence.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geofence.Coordinate{}, err
	}
	return geofence.Coordinate(f), nil
}
