package geo

import (
	"math"

	"geopharm/internal/domain"
)

// boundsPaddingKm widens boxes so rounding at the radius edge never drops a point
const boundsPaddingKm = 0.01

// Box is a latitude/longitude rectangle enclosing a search circle
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Bounds returns a box that contains every point within radiusKm of the
// origin. Near the poles or the antimeridian the box spans all longitudes.
func Bounds(origin domain.Origin, radiusKm float64) Box {
	angular := (radiusKm + boundsPaddingKm) / EarthRadiusKm
	dLat := toDegrees(angular)

	box := Box{
		MinLat: origin.Latitude - dLat,
		MaxLat: origin.Latitude + dLat,
		MinLng: -180,
		MaxLng: 180,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.MinLat = math.Max(box.MinLat, -90)
		box.MaxLat = math.Min(box.MaxLat, 90)
		return box
	}

	dLng := toDegrees(math.Asin(math.Sin(angular) / math.Cos(toRadians(origin.Latitude))))
	minLng, maxLng := origin.Longitude-dLng, origin.Longitude+dLng
	if minLng >= -180 && maxLng <= 180 {
		box.MinLng, box.MaxLng = minLng, maxLng
	}
	return box
}

// Contains reports whether the point lies inside the box
func (b Box) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
