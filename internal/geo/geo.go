// Package geo holds the distance math shared by the collision loader and the
// proximity search.
package geo

import (
	"math"
	"strconv"
)

// EarthRadiusKM is the spherical Earth radius used by the haversine formula.
const EarthRadiusKM = 6371.0

// kmPerDegreeLat approximates one degree of latitude anywhere on the globe.
const kmPerDegreeLat = 111.32

// HaversineKM returns the great-circle distance in kilometres between two
// (lon, lat) points given in degrees.
func HaversineKM(lon1, lat1, lon2, lat2 float64) float64 {
	rlon1 := lon1 * math.Pi / 180
	rlat1 := lat1 * math.Pi / 180
	rlon2 := lon2 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180

	dlon := rlon2 - rlon1
	dlat := rlat2 - rlat1

	sinLat := math.Sin(dlat / 2)
	sinLon := math.Sin(dlon / 2)
	a := sinLat*sinLat + math.Cos(rlat1)*math.Cos(rlat2)*sinLon*sinLon
	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(a))
}

// Bounds is an axis-aligned lon/lat box.
type Bounds struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
}

// Contains reports whether the point lies inside the box, edges inclusive.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// BoundingBox returns an approximate box around a center point that encloses
// the given radius. Longitude degrees shrink with latitude, so the longitude
// delta divides by cos(lat); the denominator is floored to avoid blowing up
// near the poles.
func BoundingBox(lat, lon, radiusKM float64) Bounds {
	dLat := radiusKM / kmPerDegreeLat
	cosLat := math.Abs(math.Cos(lat * math.Pi / 180))
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	dLon := radiusKM / (kmPerDegreeLat * cosLat)
	return Bounds{
		MinLon: lon - dLon,
		MaxLon: lon + dLon,
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
	}
}

// IntersectionKey builds the coarse spatial grouping key for a collision:
// latitude and longitude rounded to 4 decimal places, joined as "lat:lon".
// Roughly an 11m cell, enough to cluster reports at the same intersection.
func IntersectionKey(lat, lon float64) string {
	return round4(lat) + ":" + round4(lon)
}

func round4(v float64) string {
	return strconv.FormatFloat(math.Round(v*10000)/10000, 'f', -1, 64)
}
