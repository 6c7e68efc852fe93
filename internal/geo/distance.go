// Package geo computes great-circle distances between coordinates.
package geo

import (
	"math"

	"geopharm/internal/domain"
)

// EarthRadiusKm is the mean radius of the sphere used for distances
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine distance in kilometres between two points
// given in decimal degrees, rounded to two decimal places.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// rounding can push a marginally past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Asin(math.Sqrt(a))
	return round2(EarthRadiusKm * c)
}

// DistanceToPharmacy returns the distance from an origin to a pharmacy, or nil
// when the pharmacy has no coordinates.
func DistanceToPharmacy(origin domain.Origin, lat, lng *float64) *float64 {
	if lat == nil || lng == nil {
		return nil
	}
	d := DistanceKm(origin.Latitude, origin.Longitude, *lat, *lng)
	return &d
}

// ValidateCoordinates checks that a coordinate pair lies on the globe
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return domain.NewValidationError("lat", "must be between -90 and 90")
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return domain.NewValidationError("lng", "must be between -180 and 180")
	}
	return nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
