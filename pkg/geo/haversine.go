package geo

import "math"

const earthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance between two coordinates
// using the haversine formula.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// WithinRadiusKM reports whether the two points are within radiusKM of each other.
func WithinRadiusKM(lat1, lon1, lat2, lon2, radiusKM float64) bool {
	if radiusKM <= 0 {
		return false
	}
	return DistanceKM(lat1, lon1, lat2, lon2) <= radiusKM
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
