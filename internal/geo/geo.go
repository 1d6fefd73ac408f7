// Package geo holds the small amount of spherical geometry the replay needs.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 position in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between two positions in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Distance returns the distance from p to q in meters.
func (p Point) Distance(q Point) float64 {
	return Haversine(p.Lat, p.Lon, q.Lat, q.Lon)
}

// GroundFence hides surface traffic away from one airport.
type GroundFence struct {
	Center  Point
	RadiusM float64
}

// Excludes reports whether an aircraft on the ground at (lat, lon) lies outside the fence.
// Airborne aircraft are never excluded.
func (f GroundFence) Excludes(onGround bool, lat, lon float64) bool {
	if !onGround {
		return false
	}
	return f.Center.Distance(Point{Lat: lat, Lon: lon}) > f.RadiusM
}
