package kernel

import (
	"errors"
	"fmt"
	"math"

	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

const (
	// MinLatitude is the minimum valid WGS84 latitude in degrees.
	MinLatitude = -90.0
	// MaxLatitude is the maximum valid WGS84 latitude in degrees.
	MaxLatitude = 90.0
	// MinLongitude is the minimum valid WGS84 longitude in degrees.
	MinLongitude = -180.0
	// MaxLongitude is the maximum valid WGS84 longitude in degrees.
	MaxLongitude = 180.0

	// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
	EarthRadiusKm = 6371.0
)

// UnknownDistance is the sentinel returned by DistanceKm when either endpoint
// is missing or carries non-finite coordinates. Any valid distance is
// non-negative, so callers check with IsUnknownDistance rather than comparing
// against the constant.
const UnknownDistance = -1.0

// ErrGeoPointIsNotConstructed is returned when validating a GeoPoint that was
// not created via NewGeoPoint.
var ErrGeoPointIsNotConstructed = errs.NewValueIsRequiredError(
	"geo point must be created via NewGeoPoint")

// GeoPoint represents a WGS84 coordinate pair. It is an immutable value
// object; the zero value is invalid and fails Validate.
type GeoPoint struct {
	lat   float64
	lon   float64
	guard guard.ConstructorGuard
}

// NewGeoPoint creates a GeoPoint from latitude and longitude in degrees.
// Both components must be finite and within WGS84 bounds.
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	p := GeoPoint{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(p.setLatitude(lat), p.setLongitude(lon)); err != nil {
		return GeoPoint{}, err
	}

	return p, nil
}

// Validate checks that the GeoPoint was created through NewGeoPoint.
func (p GeoPoint) Validate() error {
	return p.guard.Validate(ErrGeoPointIsNotConstructed)
}

// Latitude returns the latitude in degrees.
func (p GeoPoint) Latitude() float64 {
	return p.lat
}

// Longitude returns the longitude in degrees.
func (p GeoPoint) Longitude() float64 {
	return p.lon
}

// IsEqual compares two points component-wise.
func (p GeoPoint) IsEqual(other GeoPoint) bool {
	return p.lat == other.lat && p.lon == other.lon
}

// String implements fmt.Stringer.
func (p GeoPoint) String() string {
	return fmt.Sprintf("GeoPoint(%g,%g)", p.lat, p.lon)
}

func (p *GeoPoint) setLatitude(lat float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return errs.NewValueIsInvalidError("latitude")
	}
	if lat < MinLatitude || lat > MaxLatitude {
		return errs.NewValueIsOutOfRangeError("latitude", lat, MinLatitude, MaxLatitude)
	}
	p.lat = lat
	return nil
}

func (p *GeoPoint) setLongitude(lon float64) error {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return errs.NewValueIsInvalidError("longitude")
	}
	if lon < MinLongitude || lon > MaxLongitude {
		return errs.NewValueIsOutOfRangeError("longitude", lon, MinLongitude, MaxLongitude)
	}
	p.lon = lon
	return nil
}

// IsUnknownDistance reports whether d is the unknown-distance sentinel.
func IsUnknownDistance(d float64) bool {
	return d < 0 || math.IsNaN(d)
}

// DistanceKm computes the great-circle distance between two points using the
// Haversine formula. It is pure and deterministic; improperly constructed
// points yield UnknownDistance instead of an error so callers can fall back
// to the unknown-distance policy.
func DistanceKm(a, b GeoPoint) float64 {
	if a.Validate() != nil || b.Validate() != nil {
		return UnknownDistance
	}

	const degToRad = math.Pi / 180

	lat1 := a.lat * degToRad
	lat2 := b.lat * degToRad
	dLat := (b.lat - a.lat) * degToRad
	dLon := (b.lon - a.lon) * degToRad

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
