// Package ingest holds the batch CSV loaders. Both loaders tolerate dirty
// rows (skip and keep going) but wrap each invocation in one transaction, so
// a hard failure leaves no partial upserts behind.
package ingest

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yycdata/collisionwx/internal/metrics"
	"github.com/yycdata/collisionwx/internal/models"
	"github.com/yycdata/collisionwx/internal/store"
)

// Heuristic constants carried over from the source data conventions. Both are
// configurable on the loader; no validation data exists to confirm them.
const (
	DefaultWetThresholdMM = 0.2
	DefaultTraceAmount    = 0.0
)

// WeatherFilePattern matches Environment Canada daily climate exports.
const WeatherFilePattern = "en_climate_daily_*_P1D.csv"

// weatherColumns lists acceptable source spellings per canonical field,
// matched case-insensitively and by substring.
var weatherColumns = map[string][]string{
	"name":            {"Station Name"},
	"climate_id":      {"Climate ID"},
	"longitude":       {"Longitude (x)", "Longitude"},
	"latitude":        {"Latitude (y)", "Latitude"},
	"date":            {"Date/Time", "Date"},
	"t_max_c":         {"Max Temp"},
	"t_min_c":         {"Min Temp"},
	"t_mean_c":        {"Mean Temp"},
	"total_rain_mm":   {"Total Rain"},
	"total_snow_cm":   {"Total Snow"},
	"total_precip_mm": {"Total Precip"},
	"snow_on_grnd_cm": {"Snow on Grnd"},
	"gust_dir_10deg":  {"Dir of Max Gust"},
	"gust_kmh":        {"Spd of Max Gust"},
}

type WeatherLoader struct {
	store *store.Store

	// WetThresholdMM is the total precipitation at or above which a day
	// classifies as wet.
	WetThresholdMM float64
	// TraceAmount is the numeric value recorded for "T" (trace) readings.
	TraceAmount float64
}

func NewWeatherLoader(st *store.Store) *WeatherLoader {
	return &WeatherLoader{
		store:          st,
		WetThresholdMM: DefaultWetThresholdMM,
		TraceAmount:    DefaultTraceAmount,
	}
}

type WeatherResult struct {
	StationsCreated     int
	StationsUpdated     int
	ObservationsCreated int
	ObservationsUpdated int
}

// LoadDir ingests every weather CSV in dir inside one transaction.
func (l *WeatherLoader) LoadDir(dir string) (*WeatherResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, WeatherFilePattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(files)

	res := &WeatherResult{}
	if len(files) == 0 {
		log.Printf("weather: no files matching %s in %s", WeatherFilePattern, dir)
		return res, nil
	}

	err = l.store.InTx(func(tx *store.Store) error {
		for _, path := range files {
			if err := l.loadFile(tx, path, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("weather: stations created/updated: %d/%d; observations created/updated: %d/%d",
		res.StationsCreated, res.StationsUpdated, res.ObservationsCreated, res.ObservationsUpdated)
	return res, nil
}

func (l *WeatherLoader) loadFile(tx *store.Store, path string, res *WeatherResult) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header %s: %w", path, err)
	}
	stripBOM(header)
	cols := resolveColumns(header, weatherColumns, true)

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				continue
			}
			return fmt.Errorf("read %s: %w", path, err)
		}

		climateID := cols.get(record, "climate_id")
		if climateID == "" {
			continue
		}

		station, err := l.upsertStation(tx, cols, record, climateID, res)
		if err != nil {
			return err
		}
		if station == nil {
			continue
		}

		if err := l.upsertObservation(tx, cols, record, station.ID, res); err != nil {
			return err
		}
	}
	return nil
}

// upsertStation creates or corrects the row's station. A new station needs
// both coordinates; otherwise the row waits for a later one that has them.
func (l *WeatherLoader) upsertStation(tx *store.Store, cols columnMap, record []string, climateID string, res *WeatherResult) (*models.Station, error) {
	name := cols.get(record, "name")
	if name == "" {
		name = "Unknown"
	}
	lon := coerceFloat(cols.get(record, "longitude"), l.TraceAmount)
	lat := coerceFloat(cols.get(record, "latitude"), l.TraceAmount)

	station, err := tx.GetStationByClimateID(climateID)
	if err != nil {
		return nil, err
	}

	if station == nil {
		if !lon.Valid || !lat.Valid {
			return nil, nil
		}
		station = &models.Station{
			ClimateID: climateID,
			Name:      name,
			Longitude: lon.Float64,
			Latitude:  lat.Float64,
		}
		if err := tx.CreateStation(station); err != nil {
			return nil, err
		}
		res.StationsCreated++
		metrics.RowsIngested.WithLabelValues("weather_stations", "created").Inc()
		return station, nil
	}

	changed := false
	if name != "" && station.Name != name {
		station.Name = name
		changed = true
	}
	if lon.Valid && station.Longitude != lon.Float64 {
		station.Longitude = lon.Float64
		changed = true
	}
	if lat.Valid && station.Latitude != lat.Float64 {
		station.Latitude = lat.Float64
		changed = true
	}
	if changed {
		if err := tx.UpdateStation(*station); err != nil {
			return nil, err
		}
		res.StationsUpdated++
		metrics.RowsIngested.WithLabelValues("weather_stations", "updated").Inc()
	}
	return station, nil
}

func (l *WeatherLoader) upsertObservation(tx *store.Store, cols columnMap, record []string, stationID int64, res *WeatherResult) error {
	date, ok := parseObsDate(cols.get(record, "date"))
	if !ok {
		return nil
	}

	obs := models.Observation{
		StationID:     stationID,
		Date:          date,
		TMaxC:         coerceFloat(cols.get(record, "t_max_c"), l.TraceAmount),
		TMinC:         coerceFloat(cols.get(record, "t_min_c"), l.TraceAmount),
		TMeanC:        coerceFloat(cols.get(record, "t_mean_c"), l.TraceAmount),
		TotalRainMM:   coerceFloat(cols.get(record, "total_rain_mm"), l.TraceAmount),
		TotalSnowCM:   coerceFloat(cols.get(record, "total_snow_cm"), l.TraceAmount),
		TotalPrecipMM: coerceFloat(cols.get(record, "total_precip_mm"), l.TraceAmount),
		SnowOnGrndCM:  coerceFloat(cols.get(record, "snow_on_grnd_cm"), l.TraceAmount),
		GustDir10Deg:  coerceInt(cols.get(record, "gust_dir_10deg"), l.TraceAmount),
		GustKMH:       coerceInt(cols.get(record, "gust_kmh"), l.TraceAmount),
	}
	obs.WeatherDay = l.classifyDay(obs.TotalSnowCM, obs.TotalPrecipMM)
	if obs.TMinC.Valid {
		obs.FreezeDay = sql.NullBool{Bool: obs.TMinC.Float64 < 0, Valid: true}
	}

	created, err := tx.UpsertObservation(obs)
	if err != nil {
		return err
	}
	if created {
		res.ObservationsCreated++
		metrics.RowsIngested.WithLabelValues("weather_observations", "created").Inc()
	} else {
		res.ObservationsUpdated++
		metrics.RowsIngested.WithLabelValues("weather_observations", "updated").Inc()
	}
	return nil
}

// classifyDay derives the per-station daily classification: snowy beats wet
// beats dry, and dry requires both readings known and exactly zero. Anything
// else stays unset for lack of data.
func (l *WeatherLoader) classifyDay(snow, precip sql.NullFloat64) sql.NullString {
	switch {
	case snow.Valid && snow.Float64 > 0:
		return sql.NullString{String: models.WeatherDaySnowy, Valid: true}
	case precip.Valid && precip.Float64 >= l.WetThresholdMM:
		return sql.NullString{String: models.WeatherDayWet, Valid: true}
	case precip.Valid && precip.Float64 == 0 && snow.Valid && snow.Float64 == 0:
		return sql.NullString{String: models.WeatherDayDry, Valid: true}
	}
	return sql.NullString{}
}

// parseObsDate accepts YYYY-MM-DD, with or without a trailing time component.
func parseObsDate(s string) (string, bool) {
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(models.DateFormat, s)
	if err != nil {
		return "", false
	}
	return t.Format(models.DateFormat), true
}
