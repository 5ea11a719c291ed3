package geofence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// north returns a coordinate the given number of meters due north of c.
func north(c Coordinate, meters float64) Coordinate {
	return Coordinate{Lat: c.Lat + meters/(EarthRadiusMeters*math.Pi/180), Lng: c.Lng}
}

func TestDistanceIsSymmetric(t *testing.T) {
	pairs := [][2]Coordinate{
		{{Lat: 40.0, Lng: -73.0}, {Lat: 40.7128, Lng: -74.0060}},
		{{Lat: -33.8688, Lng: 151.2093}, {Lat: 51.5074, Lng: -0.1278}},
		{{Lat: 0, Lng: 179.9}, {Lat: 0, Lng: -179.9}},
		{{Lat: 89.9, Lng: 10}, {Lat: -89.9, Lng: -170}},
	}
	for _, p := range pairs {
		require.InDelta(t, Distance(p[0], p[1]), Distance(p[1], p[0]), 1e-6)
	}
}

func TestDistanceToSelfIsZero(t *testing.T) {
	for _, c := range []Coordinate{{}, {Lat: 40, Lng: -73}, {Lat: -12.5, Lng: 130.25}} {
		require.Zero(t, Distance(c, c))
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// One degree of latitude along a meridian.
	d := Distance(Coordinate{Lat: 10, Lng: 20}, Coordinate{Lat: 11, Lng: 20})
	require.InDelta(t, EarthRadiusMeters*math.Pi/180, d, 0.01)
}

func TestEvaluateClassifiesAgainstRadius(t *testing.T) {
	home := &HomeConfig{Lat: 40.0, Lng: -73.0, RadiusMeters: 100}

	far := Evaluate(home, north(home.Point(), 150))
	require.True(t, far.Checked)
	require.True(t, far.Outside)
	require.InDelta(t, 150, far.DistanceMeters, 0.01)

	near := Evaluate(home, north(home.Point(), 50))
	require.True(t, near.Checked)
	require.False(t, near.Outside)
	require.InDelta(t, 50, near.DistanceMeters, 0.01)
}

func TestEvaluateOnRadiusIsInside(t *testing.T) {
	home := &HomeConfig{Lat: 10, Lng: 20, RadiusMeters: Distance(Coordinate{Lat: 10, Lng: 20}, Coordinate{Lat: 10.001, Lng: 20})}
	res := Evaluate(home, Coordinate{Lat: 10.001, Lng: 20})
	require.False(t, res.Outside)
}

func TestEvaluateSkipsUnconfiguredHome(t *testing.T) {
	far := Coordinate{Lat: 48.85, Lng: 2.35}

	require.False(t, Evaluate(nil, far).Checked)

	res := Evaluate(&HomeConfig{Lat: 0, Lng: 0, RadiusMeters: 10}, far)
	require.False(t, res.Checked)
	require.False(t, res.Outside)
}

func TestHomeConfigValidate(t *testing.T) {
	require.NoError(t, HomeConfig{Lat: 40, Lng: -73, RadiusMeters: 0}.Validate())
	require.ErrorIs(t, HomeConfig{Lat: 91}.Validate(), ErrInvalidHome)
	require.ErrorIs(t, HomeConfig{Lng: -181}.Validate(), ErrInvalidHome)
	require.ErrorIs(t, HomeConfig{RadiusMeters: -1}.Validate(), ErrInvalidHome)
	require.ErrorIs(t, HomeConfig{Lat: math.NaN()}.Validate(), ErrInvalidHome)
}
