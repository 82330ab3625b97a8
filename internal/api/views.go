package api

import (
	"database/sql"
	"time"

	"github.com/yycdata/collisionwx/internal/models"
	"github.com/yycdata/collisionwx/internal/query"
)

// JSON views. Absent optionals render as null, matching the "missing related
// data is never an error" contract.

type collisionView struct {
	ID               string   `json:"id"`
	OccurredAt       string   `json:"occurred_at"`
	ModifiedAt       *string  `json:"modified_at"`
	Date             string   `json:"date"`
	Hour             int      `json:"hour"`
	Weekday          int      `json:"weekday"`
	Month            int      `json:"month"`
	Quadrant         string   `json:"quadrant"`
	Longitude        float64  `json:"longitude"`
	Latitude         float64  `json:"latitude"`
	Count            int      `json:"count"`
	Description      string   `json:"description"`
	LocationText     string   `json:"location_text"`
	IntersectionKey  string   `json:"intersection_key"`
	NearestStationID *int64   `json:"nearest_station_id"`
	DistanceKM       *float64 `json:"distance_km,omitempty"`
}

func newCollisionView(c models.Collision) collisionView {
	return collisionView{
		ID:               c.CollisionID,
		OccurredAt:       c.OccurredAt.Format(time.RFC3339),
		ModifiedAt:       nullTimeString(c.ModifiedAt),
		Date:             c.Date,
		Hour:             c.Hour,
		Weekday:          c.Weekday,
		Month:            c.Month,
		Quadrant:         c.Quadrant,
		Longitude:        c.Longitude,
		Latitude:         c.Latitude,
		Count:            c.Count,
		Description:      c.Description,
		LocationText:     c.LocationText,
		IntersectionKey:  c.IntersectionKey,
		NearestStationID: nullInt(c.NearestStationID),
	}
}

type observationView struct {
	Date          string   `json:"date"`
	TMaxC         *float64 `json:"t_max_c"`
	TMinC         *float64 `json:"t_min_c"`
	TMeanC        *float64 `json:"t_mean_c"`
	TotalRainMM   *float64 `json:"total_rain_mm"`
	TotalSnowCM   *float64 `json:"total_snow_cm"`
	TotalPrecipMM *float64 `json:"total_precip_mm"`
	SnowOnGrndCM  *float64 `json:"snow_on_grnd_cm"`
	GustDir10Deg  *int64   `json:"gust_dir_10deg"`
	GustKMH       *int64   `json:"gust_kmh"`
	WeatherDay    *string  `json:"weather_day"`
	FreezeDay     *bool    `json:"freeze_day"`
}

func newObservationView(o models.Observation) *observationView {
	return &observationView{
		Date:          o.Date,
		TMaxC:         nullFloat(o.TMaxC),
		TMinC:         nullFloat(o.TMinC),
		TMeanC:        nullFloat(o.TMeanC),
		TotalRainMM:   nullFloat(o.TotalRainMM),
		TotalSnowCM:   nullFloat(o.TotalSnowCM),
		TotalPrecipMM: nullFloat(o.TotalPrecipMM),
		SnowOnGrndCM:  nullFloat(o.SnowOnGrndCM),
		GustDir10Deg:  nullInt(o.GustDir10Deg),
		GustKMH:       nullInt(o.GustKMH),
		WeatherDay:    nullString(o.WeatherDay),
		FreezeDay:     nullBool(o.FreezeDay),
	}
}

type cityWeatherView struct {
	Date           string   `json:"date"`
	WeatherDayCity *string  `json:"weather_day_city"`
	FreezeDayCity  *bool    `json:"freeze_day_city"`
	TMaxAvg        *float64 `json:"t_max_avg"`
	TMinAvg        *float64 `json:"t_min_avg"`
	PrecipAny      *bool    `json:"precip_any"`
	SnowAny        *bool    `json:"snow_any"`
	AgreementRatio *float64 `json:"agreement_ratio"`
}

func newCityWeatherView(cw models.CityDailyWeather) *cityWeatherView {
	return &cityWeatherView{
		Date:           cw.Date,
		WeatherDayCity: nullString(cw.WeatherDayCity),
		FreezeDayCity:  nullBool(cw.FreezeDayCity),
		TMaxAvg:        nullFloat(cw.TMaxAvg),
		TMinAvg:        nullFloat(cw.TMinAvg),
		PrecipAny:      nullBool(cw.PrecipAny),
		SnowAny:        nullBool(cw.SnowAny),
		AgreementRatio: nullFloat(cw.AgreementRatio),
	}
}

type collisionListView struct {
	Count   int             `json:"count"`
	Results []collisionView `json:"results"`
}

type collisionDetailView struct {
	collisionView
	StationWeather *observationView `json:"station_weather"`
	CityWeather    *cityWeatherView `json:"city_weather"`
}

type nearView struct {
	Lat      float64         `json:"lat"`
	Lon      float64         `json:"lon"`
	RadiusKM float64         `json:"radius_km"`
	Limit    int             `json:"limit"`
	Count    int             `json:"count"`
	Results  []collisionView `json:"results"`
}

func newNearView(res *query.NearResult) nearView {
	out := nearView{
		Lat:      res.Lat,
		Lon:      res.Lon,
		RadiusKM: res.RadiusKM,
		Limit:    res.Limit,
		Count:    res.Count,
		Results:  make([]collisionView, 0, len(res.Results)),
	}
	for _, r := range res.Results {
		v := newCollisionView(r.Collision)
		d := r.DistanceKM
		v.DistanceKM = &d
		out.Results = append(out.Results, v)
	}
	return out
}

type flagView struct {
	ID        int64  `json:"id"`
	Collision string `json:"collision"`
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"`
}

func newFlagView(f models.Flag) flagView {
	return flagView{
		ID:        f.ID,
		Collision: f.CollisionID,
		Note:      f.Note,
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	return &v.Bool
}

func nullTimeString(v sql.NullTime) *string {
	if !v.Valid {
		return nil
	}
	s := v.Time.Format(time.RFC3339)
	return &s
}
