package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_EmptyCompilesToTautology(t *testing.T) {
	where, args := NewFilter().Compile()
	assert.Equal(t, "1=1", where)
	assert.Nil(t, args)
}

func TestFilter_DateRange(t *testing.T) {
	f := NewFilter()
	require.NoError(t, f.DateRange("2024-01-01", "2024-06-30"))

	where, args := f.Compile()
	assert.Equal(t, "collisions.date >= ? AND collisions.date <= ?", where)
	assert.Equal(t, []any{"2024-01-01", "2024-06-30"}, args)
}

func TestFilter_DateRangeOneSided(t *testing.T) {
	f := NewFilter()
	require.NoError(t, f.DateRange("", "2024-06-30"))

	where, args := f.Compile()
	assert.Equal(t, "collisions.date <= ?", where)
	assert.Equal(t, []any{"2024-06-30"}, args)
}

func TestFilter_DateRangeErrors(t *testing.T) {
	assert.ErrorIs(t, NewFilter().DateRange("June 1st", ""), ErrBadParam)
	assert.ErrorIs(t, NewFilter().DateRange("", "2024-13-40"), ErrBadParam)
	assert.ErrorIs(t, NewFilter().DateRange("2024-06-30", "2024-01-01"), ErrBadParam)
}

func TestFilter_OptionalTokensAreNoOps(t *testing.T) {
	f := NewFilter()
	f.Quadrant("")
	f.WeatherDayCity("drizzly")
	f.CityFlag("freeze_day_city", "maybe")
	f.GustMin("fast")
	f.Station("   ")
	f.Search("")

	where, args := f.Compile()
	assert.Equal(t, "1=1", where)
	assert.Nil(t, args)
}

func TestFilter_WeatherDayCityTokens(t *testing.T) {
	f := NewFilter()
	f.WeatherDayCity("Snowy")

	where, args := f.Compile()
	assert.Contains(t, where, "weather_day_city = ?")
	assert.Equal(t, []any{"SNY"}, args)
}

func TestFilter_StationTokenShapes(t *testing.T) {
	f := NewFilter()
	f.Station("42")
	where, args := f.Compile()
	assert.Equal(t, "collisions.nearest_station_id = ?", where)
	assert.Equal(t, []any{int64(42)}, args)

	f = NewFilter()
	f.Station("calgary")
	where, args = f.Compile()
	assert.Contains(t, where, "weather_stations")
	assert.Equal(t, []any{"calgary", "calgary"}, args)
}

func TestFilter_GustMin(t *testing.T) {
	f := NewFilter()
	f.GustMin("40")

	where, args := f.Compile()
	assert.Contains(t, where, "EXISTS")
	assert.Contains(t, where, "gust_kmh >= ?")
	assert.Equal(t, []any{40.0}, args)
}

func TestFromParams(t *testing.T) {
	params := url.Values{
		"from":             {"2024-01-01"},
		"quadrant":         {"ne"},
		"weather_day_city": {"wet"},
		"heavy_snow":       {"yes"},
		"gust_min":         {"not a number"},
	}
	f, err := FromParams(params)
	require.NoError(t, err)

	where, args := f.Compile()
	assert.Contains(t, where, "collisions.date >= ?")
	assert.Contains(t, where, "collisions.quadrant = ?")
	assert.Contains(t, where, "snow_any = ?")
	assert.NotContains(t, where, "gust_kmh")
	assert.Equal(t, []any{"2024-01-01", "NE", "WET", true}, args)
}

func TestFromParams_BadDate(t *testing.T) {
	_, err := FromParams(url.Values{"from": {"garbage"}})
	assert.ErrorIs(t, err, ErrBadParam)
}

func TestParseLooseBool(t *testing.T) {
	for _, tok := range []string{"1", "true", "T", "yes", "Y"} {
		v, ok := parseLooseBool(tok)
		assert.True(t, ok, tok)
		assert.True(t, v, tok)
	}
	for _, tok := range []string{"0", "false", "F", "no", "N"} {
		v, ok := parseLooseBool(tok)
		assert.True(t, ok, tok)
		assert.False(t, v, tok)
	}
	for _, tok := range []string{"", "2", "nah", "si"} {
		_, ok := parseLooseBool(tok)
		assert.False(t, ok, tok)
	}
}

func TestParseNearParams(t *testing.T) {
	p, err := ParseNearParams(url.Values{"lat": {"51.05"}, "lon": {"-114.07"}})
	require.NoError(t, err)
	assert.Equal(t, 51.05, p.Lat)
	assert.Equal(t, -114.07, p.Lon)
	assert.Equal(t, 1.0, p.RadiusKM)
	assert.Equal(t, 100, p.Limit)
}

func TestParseNearParams_Clamps(t *testing.T) {
	p, err := ParseNearParams(url.Values{
		"lat": {"51.05"}, "lon": {"-114.07"},
		"radius_km": {"25"}, "limit": {"5000"},
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.RadiusKM)
	assert.Equal(t, 500, p.Limit)

	p, err = ParseNearParams(url.Values{
		"lat": {"51.05"}, "lon": {"-114.07"},
		"radius_km": {"-2"}, "limit": {"0"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.RadiusKM, "non-positive radius falls back to the default")
	assert.Equal(t, 1, p.Limit)
}

func TestParseNearParams_Errors(t *testing.T) {
	_, err := ParseNearParams(url.Values{"lon": {"-114.07"}})
	assert.ErrorIs(t, err, ErrBadParam)

	_, err = ParseNearParams(url.Values{"lat": {"91"}, "lon": {"-114.07"}})
	assert.ErrorIs(t, err, ErrBadParam)

	_, err = ParseNearParams(url.Values{"lat": {"51"}, "lon": {"-181"}})
	assert.ErrorIs(t, err, ErrBadParam)

	_, err = ParseNearParams(url.Values{"lat": {"51"}, "lon": {"-114"}, "radius_km": {"wide"}})
	assert.ErrorIs(t, err, ErrBadParam)
}
