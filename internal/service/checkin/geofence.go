package checkin

import (
	"math"

	"github.com/medflow/scheduler-api/internal/model"
)

// earthRadiusMeters is the spherical-earth approximation radius.
const earthRadiusMeters = 6371000.0

// HaversineDistance returns the great-circle distance in meters
// between two coordinates.
func HaversineDistance(a, b model.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ValidateLocation checks a patient's coordinates against a check-in
// location's geofence. The measured distance is always reported so
// rejected patients can see how far off they are.
func ValidateLocation(patient model.Coordinates, location *model.CheckInLocation) model.GeofenceResult {
	distance := HaversineDistance(patient, location.Coordinates)
	return model.GeofenceResult{
		IsValid:        distance <= location.RadiusMeters,
		DistanceMeters: distance,
		RadiusMeters:   location.RadiusMeters,
	}
}
