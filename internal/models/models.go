package models

import (
	"database/sql"
	"strings"
	"time"
)

// DateFormat is the ISO calendar-date layout used everywhere a date is stored
// or compared as text.
const DateFormat = "2006-01-02"

// Quadrant codes as stored. Anything outside the four compass quadrants
// normalizes to QuadrantUnknown.
const (
	QuadrantNW      = "NW"
	QuadrantNE      = "NE"
	QuadrantSW      = "SW"
	QuadrantSE      = "SE"
	QuadrantUnknown = "UNK"
)

// Quadrants is the fixed domain used when zero-filling quadrant aggregates.
var Quadrants = []string{QuadrantNE, QuadrantNW, QuadrantSE, QuadrantSW, QuadrantUnknown}

// NormalizeQuadrant uppercases q and maps anything outside NW/NE/SW/SE to UNK.
func NormalizeQuadrant(q string) string {
	switch strings.ToUpper(strings.TrimSpace(q)) {
	case QuadrantNW:
		return QuadrantNW
	case QuadrantNE:
		return QuadrantNE
	case QuadrantSW:
		return QuadrantSW
	case QuadrantSE:
		return QuadrantSE
	}
	return QuadrantUnknown
}

// Daily weather classification codes.
const (
	WeatherDayDry   = "DRY"
	WeatherDayWet   = "WET"
	WeatherDaySnowy = "SNY"
)

type Station struct {
	ID        int64
	ClimateID string
	Name      string
	Longitude float64
	Latitude  float64
}

// Observation is one station-day of readings. Missing readings stay invalid
// rather than defaulting to zero.
type Observation struct {
	ID            int64
	StationID     int64
	Date          string
	TMaxC         sql.NullFloat64
	TMinC         sql.NullFloat64
	TMeanC        sql.NullFloat64
	TotalRainMM   sql.NullFloat64
	TotalSnowCM   sql.NullFloat64
	TotalPrecipMM sql.NullFloat64
	SnowOnGrndCM  sql.NullFloat64
	GustDir10Deg  sql.NullInt64
	GustKMH       sql.NullInt64
	WeatherDay    sql.NullString
	FreezeDay     sql.NullBool
}

// CityDailyWeather is the derived city-wide row for one calendar date. It is
// produced only by the aggregator and replaced wholesale on each run.
type CityDailyWeather struct {
	Date           string
	WeatherDayCity sql.NullString
	FreezeDayCity  sql.NullBool
	TMaxAvg        sql.NullFloat64
	TMinAvg        sql.NullFloat64
	PrecipAny      sql.NullBool
	SnowAny        sql.NullBool
	AgreementRatio sql.NullFloat64
}

type Collision struct {
	CollisionID      string
	OccurredAt       time.Time
	ModifiedAt       sql.NullTime
	Date             string
	Hour             int
	Weekday          int // 0 = Monday
	Month            int
	Quadrant         string
	Longitude        float64
	Latitude         float64
	Count            int
	Description      string
	LocationText     string
	IntersectionKey  string
	NearestStationID sql.NullInt64
}

// Flag is a user-submitted note attached to a collision.
type Flag struct {
	ID          int64
	CollisionID string
	Note        string
	CreatedAt   time.Time
}
