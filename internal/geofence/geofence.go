// Package geofence decides whether a reported position lies inside the household's work radius.
package geofence

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// ErrInvalidHome is returned when a home configuration carries out-of-range values.
var ErrInvalidHome = errors.New("invalid home configuration")

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) && c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// HomeConfig is the reference point and tolerance for clock-in verification.
type HomeConfig struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
}

// Configured reports whether the geofence should be enforced.
// A nil config or one stored at exactly (0,0) counts as "not yet set".
func (h *HomeConfig) Configured() bool {
	if h == nil {
		return false
	}
	return !(h.Lat == 0 && h.Lng == 0)
}

// Point returns the home position as a Coordinate.
func (h HomeConfig) Point() Coordinate {
	return Coordinate{Lat: h.Lat, Lng: h.Lng}
}

// Validate checks coordinate ranges and the radius.
func (h HomeConfig) Validate() error {
	switch {
	case math.IsNaN(h.Lat) || h.Lat < -90 || h.Lat > 90:
		return errors.Join(ErrInvalidHome, errors.New("lat must be within [-90, 90]"))
	case math.IsNaN(h.Lng) || h.Lng < -180 || h.Lng > 180:
		return errors.Join(ErrInvalidHome, errors.New("lng must be within [-180, 180]"))
	case math.IsNaN(h.RadiusMeters) || h.RadiusMeters < 0:
		return errors.Join(ErrInvalidHome, errors.New("radius_meters must be >= 0"))
	}
	return nil
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Result describes a single geofence evaluation.
type Result struct {
	Checked        bool
	DistanceMeters float64
	RadiusMeters   float64
	Outside        bool
}

// Evaluate classifies point against home. Unconfigured homes are never checked.
func Evaluate(home *HomeConfig, point Coordinate) Result {
	if !home.Configured() {
		return Result{}
	}
	distance := Distance(home.Point(), point)
	return Result{
		Checked:        true,
		DistanceMeters: distance,
		RadiusMeters:   home.RadiusMeters,
		Outside:        distance > home.RadiusMeters,
	}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
