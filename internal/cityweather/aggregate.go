// Package cityweather collapses per-station observations into one derived
// city row per date.
package cityweather

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/yycdata/collisionwx/internal/metrics"
	"github.com/yycdata/collisionwx/internal/models"
	"github.com/yycdata/collisionwx/internal/store"
)

type Aggregator struct {
	store *store.Store

	// WetThresholdMM is the precipitation at or above which the city day
	// classifies as wet. Matches the loader default.
	WetThresholdMM float64
}

func New(st *store.Store) *Aggregator {
	return &Aggregator{store: st, WetThresholdMM: 0.2}
}

type Result struct {
	Dates   int
	Created int
	Updated int
}

// Run rebuilds the derived city row for every date that has observations.
// The whole rebuild runs in one transaction and is idempotent.
func (a *Aggregator) Run() (*Result, error) {
	res := &Result{}
	err := a.store.InTx(func(tx *store.Store) error {
		dates, err := tx.GetObservationDates()
		if err != nil {
			return err
		}
		for _, date := range dates {
			obs, err := tx.GetObservationsForDate(date)
			if err != nil {
				return err
			}
			cw := a.aggregate(date, obs)
			created, err := tx.UpsertCityDailyWeather(cw)
			if err != nil {
				return fmt.Errorf("upsert city weather %s: %w", date, err)
			}
			res.Dates++
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		metrics.CityWeatherBuilds.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.CityWeatherBuilds.WithLabelValues("ok").Inc()

	log.Printf("cityweather: %d dates aggregated (%d created, %d updated)", res.Dates, res.Created, res.Updated)
	return res, nil
}

// aggregate derives the city row from one date's station observations.
// Classification precedence is snowy over wet over dry; dry is the default so
// the city day is always classified.
func (a *Aggregator) aggregate(date string, obs []models.Observation) models.CityDailyWeather {
	cw := models.CityDailyWeather{Date: date}

	var (
		tMaxSum, tMinSum     float64
		tMaxN, tMinN         int
		anySnow, anyWet      bool
		precipSeen, snowSeen bool
		precipAny, snowAny   bool
		freezeTrue, freezeN  int
	)
	for _, o := range obs {
		if o.TMaxC.Valid {
			tMaxSum += o.TMaxC.Float64
			tMaxN++
		}
		if o.TMinC.Valid {
			tMinSum += o.TMinC.Float64
			tMinN++
		}
		if o.TotalPrecipMM.Valid {
			precipSeen = true
			if o.TotalPrecipMM.Float64 > 0 {
				precipAny = true
			}
			if o.TotalPrecipMM.Float64 >= a.WetThresholdMM {
				anyWet = true
			}
		}
		if o.TotalSnowCM.Valid {
			snowSeen = true
			if o.TotalSnowCM.Float64 > 0 {
				snowAny = true
				anySnow = true
			}
		}
		if o.FreezeDay.Valid {
			freezeN++
			if o.FreezeDay.Bool {
				freezeTrue++
			}
		}
	}

	if tMaxN > 0 {
		cw.TMaxAvg = sql.NullFloat64{Float64: tMaxSum / float64(tMaxN), Valid: true}
	}
	if tMinN > 0 {
		cw.TMinAvg = sql.NullFloat64{Float64: tMinSum / float64(tMinN), Valid: true}
	}
	if precipSeen {
		cw.PrecipAny = sql.NullBool{Bool: precipAny, Valid: true}
	}
	if snowSeen {
		cw.SnowAny = sql.NullBool{Bool: snowAny, Valid: true}
	}

	city := models.WeatherDayDry
	switch {
	case anySnow:
		city = models.WeatherDaySnowy
	case anyWet:
		city = models.WeatherDayWet
	}
	cw.WeatherDayCity = sql.NullString{String: city, Valid: true}

	// Majority over stations that report a freeze flag; a tie counts as true.
	if freezeN > 0 {
		cw.FreezeDayCity = sql.NullBool{Bool: freezeTrue*2 >= freezeN, Valid: true}
	}

	classified := 0
	agree := 0
	for _, o := range obs {
		if !o.WeatherDay.Valid {
			continue
		}
		classified++
		if o.WeatherDay.String == city {
			agree++
		}
	}
	if classified > 0 {
		cw.AgreementRatio = sql.NullFloat64{Float64: float64(agree) / float64(classified), Valid: true}
	}

	return cw
}
