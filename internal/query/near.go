package query

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"

	"github.com/yycdata/collisionwx/internal/geo"
	"github.com/yycdata/collisionwx/internal/models"
)

const (
	defaultNearRadiusKM = 1.0
	maxNearRadiusKM     = 10.0
	defaultNearLimit    = 100
	maxNearLimit        = 500
)

// NearParams is a validated proximity query. Out-of-range values are clamped
// at parse time, so holders are always safe to execute.
type NearParams struct {
	Lat      float64
	Lon      float64
	RadiusKM float64
	Limit    int
}

// ParseNearParams validates the center coordinates and normalizes radius and
// limit. Missing or out-of-range coordinates are client errors; radius and
// limit are optional but must be numeric when present.
func ParseNearParams(params url.Values) (NearParams, error) {
	p := NearParams{RadiusKM: defaultNearRadiusKM, Limit: defaultNearLimit}

	lat, err := requiredFloat(params, "lat")
	if err != nil {
		return p, err
	}
	lon, err := requiredFloat(params, "lon")
	if err != nil {
		return p, err
	}
	if lat < -90 || lat > 90 {
		return p, fmt.Errorf("%w: lat %v out of range", ErrBadParam, lat)
	}
	if lon < -180 || lon > 180 {
		return p, fmt.Errorf("%w: lon %v out of range", ErrBadParam, lon)
	}
	p.Lat, p.Lon = lat, lon

	if s := params.Get("radius_km"); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return p, fmt.Errorf("%w: radius_km %q is not a number", ErrBadParam, s)
		}
		switch {
		case r <= 0:
			p.RadiusKM = defaultNearRadiusKM
		case r > maxNearRadiusKM:
			p.RadiusKM = maxNearRadiusKM
		default:
			p.RadiusKM = r
		}
	}

	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return p, fmt.Errorf("%w: limit %q is not a number", ErrBadParam, s)
		}
		switch {
		case n < 1:
			p.Limit = 1
		case n > maxNearLimit:
			p.Limit = maxNearLimit
		default:
			p.Limit = n
		}
	}

	return p, nil
}

func requiredFloat(params url.Values, key string) (float64, error) {
	s := params.Get(key)
	if s == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrBadParam, key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrBadParam, key, s)
	}
	return v, nil
}

// NearCollision annotates a collision with its distance from the center.
type NearCollision struct {
	models.Collision
	DistanceKM float64
}

// NearResult echoes the query parameters alongside the matches.
type NearResult struct {
	Lat      float64
	Lon      float64
	RadiusKM float64
	Limit    int
	Count    int
	Results  []NearCollision
}

// Near finds filtered collisions within the radius of the center, closest
// first. A coarse bounding box bounds the candidate set before exact
// distances are computed.
func (e *Engine) Near(f *Filter, p NearParams) (*NearResult, error) {
	box := geo.BoundingBox(p.Lat, p.Lon, p.RadiusKM)
	where, args := f.Compile()

	candidates, err := e.store.ListCollisionsInBox(where, args, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, err
	}

	results := make([]NearCollision, 0, len(candidates))
	for _, c := range candidates {
		d := geo.HaversineKM(p.Lon, p.Lat, c.Longitude, c.Latitude)
		if d > p.RadiusKM {
			continue
		}
		results = append(results, NearCollision{
			Collision:  c,
			DistanceKM: math.Round(d*1000) / 1000,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKM < results[j].DistanceKM
	})
	if len(results) > p.Limit {
		results = results[:p.Limit]
	}

	return &NearResult{
		Lat:      p.Lat,
		Lon:      p.Lon,
		RadiusKM: p.RadiusKM,
		Limit:    p.Limit,
		Count:    len(results),
		Results:  results,
	}, nil
}
