// Package query compiles request parameters into SQL restrictions and runs
// the read-only views over the collision set. The filter builder is pure; it
// never touches the database until a store method executes the compiled
// clause set.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yycdata/collisionwx/internal/models"
)

// ErrBadParam marks malformed client input. The HTTP layer maps it to a 400.
var ErrBadParam = errors.New("bad parameter")

// Filter accumulates independent narrowing predicates with AND semantics.
// Each predicate method is a no-op on empty input; optional tokens that fail
// to parse are also no-ops, while malformed dates are client errors.
type Filter struct {
	clauses []string
	args    []any
}

func NewFilter() *Filter {
	return &Filter{}
}

// FromParams applies every recognized query parameter in a fixed order.
func FromParams(params url.Values) (*Filter, error) {
	f := NewFilter()
	if err := f.DateRange(params.Get("from"), params.Get("to")); err != nil {
		return nil, err
	}
	f.Quadrant(params.Get("quadrant"))
	f.WeatherDayCity(params.Get("weather_day_city"))
	f.CityFlag("freeze_day_city", params.Get("freeze_day_city"))
	f.CityFlag("precip_any", params.Get("heavy_rain"))
	f.CityFlag("snow_any", params.Get("heavy_snow"))
	f.GustMin(params.Get("gust_min"))
	f.Station(params.Get("station"))
	f.Search(params.Get("search"))
	return f, nil
}

func (f *Filter) add(clause string, args ...any) {
	f.clauses = append(f.clauses, clause)
	f.args = append(f.args, args...)
}

// Compile renders the accumulated predicates into a WHERE body and its
// positional arguments. An empty filter compiles to a tautology so callers
// can always interpolate the result.
func (f *Filter) Compile() (string, []any) {
	if len(f.clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(f.clauses, " AND "), f.args
}

// Clone returns an independent copy, so a view can tighten the filter without
// leaking clauses back to the caller.
func (f *Filter) Clone() *Filter {
	c := &Filter{
		clauses: append([]string(nil), f.clauses...),
		args:    append([]any(nil), f.args...),
	}
	return c
}

// DateRange bounds the calendar date inclusively on either side. Malformed
// dates and inverted ranges are client errors.
func (f *Filter) DateRange(from, to string) error {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)

	if from != "" {
		if _, err := time.Parse(models.DateFormat, from); err != nil {
			return fmt.Errorf("%w: from %q is not a date", ErrBadParam, from)
		}
	}
	if to != "" {
		if _, err := time.Parse(models.DateFormat, to); err != nil {
			return fmt.Errorf("%w: to %q is not a date", ErrBadParam, to)
		}
	}
	if from != "" && to != "" && from > to {
		return fmt.Errorf("%w: from %s is after to %s", ErrBadParam, from, to)
	}

	if from != "" {
		f.add("collisions.date >= ?", from)
	}
	if to != "" {
		f.add("collisions.date <= ?", to)
	}
	return nil
}

// Quadrant restricts to one normalized quadrant value.
func (f *Filter) Quadrant(token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	f.add("collisions.quadrant = ?", models.NormalizeQuadrant(token))
}

// WeatherDayCity restricts to dates whose city classification matches the
// dry/wet/snowy token. Unrecognized tokens are a no-op.
func (f *Filter) WeatherDayCity(token string) {
	var code string
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "dry":
		code = models.WeatherDayDry
	case "wet":
		code = models.WeatherDayWet
	case "snowy":
		code = models.WeatherDaySnowy
	default:
		return
	}
	f.add("collisions.date IN (SELECT date FROM city_daily_weather WHERE weather_day_city = ?)", code)
}

// CityFlag restricts to dates whose city weather row has the named boolean
// column equal to the loosely parsed token. Unparseable tokens are a no-op.
func (f *Filter) CityFlag(column, token string) {
	v, ok := parseLooseBool(token)
	if !ok {
		return
	}
	f.add("collisions.date IN (SELECT date FROM city_daily_weather WHERE "+column+" = ?)", v)
}

// GustMin restricts to collisions whose nearest station recorded a same-date
// gust at or above the threshold. Non-numeric input is a no-op.
func (f *Filter) GustMin(token string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil {
		return
	}
	f.add(`EXISTS (
		SELECT 1 FROM weather_observations
		WHERE weather_observations.station_id = collisions.nearest_station_id
		  AND weather_observations.date = collisions.date
		  AND weather_observations.gust_kmh >= ?)`, v)
}

// Station matches the nearest station by numeric row id when the token is all
// digits, otherwise by exact climate id or name substring, case-insensitively.
func (f *Filter) Station(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	if id, err := strconv.ParseInt(token, 10, 64); err == nil {
		f.add("collisions.nearest_station_id = ?", id)
		return
	}
	f.add(`collisions.nearest_station_id IN (
		SELECT id FROM weather_stations
		WHERE lower(climate_id) = lower(?) OR instr(lower(name), lower(?)) > 0)`, token, token)
}

// Search matches the token as a case-insensitive substring of the description
// or location text.
func (f *Filter) Search(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	f.add(`(instr(lower(collisions.description), lower(?)) > 0
		OR instr(lower(collisions.location_text), lower(?)) > 0)`, token, token)
}

// hours restricts to an explicit hour set; used by the commute windows.
func (f *Filter) hours(hs []int) {
	marks := make([]string, len(hs))
	for i, h := range hs {
		marks[i] = "?"
		f.args = append(f.args, h)
	}
	f.clauses = append(f.clauses, "collisions.hour IN ("+strings.Join(marks, ", ")+")")
}

// parseLooseBool accepts the usual true/false spellings and reports whether
// the token parsed at all.
func parseLooseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true, true
	case "0", "false", "f", "no", "n":
		return false, true
	}
	return false, false
}
