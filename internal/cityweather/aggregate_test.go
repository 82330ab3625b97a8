package cityweather

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/yycdata/collisionwx/internal/models"
	"github.com/yycdata/collisionwx/internal/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.Exec("PRAGMA foreign_keys=ON")

	loc, err := time.LoadLocation("America/Edmonton")
	require.NoError(t, err)

	st := store.New(db, loc)
	require.NoError(t, st.Migrate())
	return st
}

func f(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
func b(v bool) sql.NullBool       { return sql.NullBool{Bool: v, Valid: true} }
func s(v string) sql.NullString   { return sql.NullString{String: v, Valid: true} }

func seedStation(t *testing.T, st *store.Store, climateID string) int64 {
	t.Helper()
	station := &models.Station{ClimateID: climateID, Name: "STN " + climateID, Longitude: -114.0, Latitude: 51.1}
	require.NoError(t, st.CreateStation(station))
	return station.ID
}

func TestAggregator_TwoStationDay(t *testing.T) {
	st := setupStore(t)
	s1 := seedStation(t, st, "3031092")
	s2 := seedStation(t, st, "3031093")

	// Station one saw snow and a freeze, station two saw rain and no freeze.
	_, err := st.UpsertObservation(models.Observation{
		StationID: s1, Date: "2024-01-15",
		TMaxC: f(-5.0), TMinC: f(-12.0),
		TotalSnowCM: f(2.0), TotalPrecipMM: f(2.0),
		WeatherDay: s(models.WeatherDaySnowy), FreezeDay: b(true),
	})
	require.NoError(t, err)
	_, err = st.UpsertObservation(models.Observation{
		StationID: s2, Date: "2024-01-15",
		TMaxC: f(1.0), TMinC: f(0.5),
		TotalSnowCM: f(0.0), TotalPrecipMM: f(1.2),
		WeatherDay: s(models.WeatherDayWet), FreezeDay: b(false),
	})
	require.NoError(t, err)

	res, err := New(st).Run()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dates)
	assert.Equal(t, 1, res.Created)

	cw, err := st.GetCityDailyWeather("2024-01-15")
	require.NoError(t, err)
	require.NotNil(t, cw)

	assert.Equal(t, models.WeatherDaySnowy, cw.WeatherDayCity.String)
	assert.True(t, cw.FreezeDayCity.Valid)
	assert.True(t, cw.FreezeDayCity.Bool, "one of two stations freezing is a tie, ties count as true")
	assert.True(t, cw.PrecipAny.Bool)
	assert.True(t, cw.SnowAny.Bool)
	assert.InDelta(t, -2.0, cw.TMaxAvg.Float64, 1e-9)
	assert.InDelta(t, -5.75, cw.TMinAvg.Float64, 1e-9)
	assert.InDelta(t, 0.5, cw.AgreementRatio.Float64, 1e-9)
}

func TestAggregator_DefaultsToDry(t *testing.T) {
	st := setupStore(t)
	s1 := seedStation(t, st, "3031092")

	// Nothing but temperatures reported; the city day still classifies.
	_, err := st.UpsertObservation(models.Observation{
		StationID: s1, Date: "2024-06-01",
		TMaxC: f(24.0), TMinC: f(11.0),
	})
	require.NoError(t, err)

	_, err = New(st).Run()
	require.NoError(t, err)

	cw, err := st.GetCityDailyWeather("2024-06-01")
	require.NoError(t, err)
	require.NotNil(t, cw)

	assert.Equal(t, models.WeatherDayDry, cw.WeatherDayCity.String)
	assert.False(t, cw.FreezeDayCity.Valid, "no freeze flags means no city freeze verdict")
	assert.False(t, cw.PrecipAny.Valid)
	assert.False(t, cw.SnowAny.Valid)
	assert.False(t, cw.AgreementRatio.Valid, "no station classification means no agreement ratio")
}

func TestAggregator_WetThreshold(t *testing.T) {
	st := setupStore(t)
	s1 := seedStation(t, st, "3031092")

	// 0.1mm is below the wet threshold but still nonzero precipitation.
	_, err := st.UpsertObservation(models.Observation{
		StationID: s1, Date: "2024-05-01",
		TotalPrecipMM: f(0.1), TotalSnowCM: f(0.0),
		WeatherDay: s(models.WeatherDayDry),
	})
	require.NoError(t, err)
	_, err = st.UpsertObservation(models.Observation{
		StationID: s1, Date: "2024-05-02",
		TotalPrecipMM: f(0.2), TotalSnowCM: f(0.0),
		WeatherDay: s(models.WeatherDayWet),
	})
	require.NoError(t, err)

	_, err = New(st).Run()
	require.NoError(t, err)

	cw, err := st.GetCityDailyWeather("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, models.WeatherDayDry, cw.WeatherDayCity.String)
	assert.True(t, cw.PrecipAny.Bool, "trace rain is still precipitation")
	assert.InDelta(t, 1.0, cw.AgreementRatio.Float64, 1e-9)

	cw, err = st.GetCityDailyWeather("2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, models.WeatherDayWet, cw.WeatherDayCity.String)
}

func TestAggregator_Idempotent(t *testing.T) {
	st := setupStore(t)
	s1 := seedStation(t, st, "3031092")

	_, err := st.UpsertObservation(models.Observation{
		StationID: s1, Date: "2024-05-01",
		TotalPrecipMM: f(1.0), TotalSnowCM: f(0.0),
	})
	require.NoError(t, err)

	agg := New(st)
	first, err := agg.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := agg.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
}

func TestAggregator_FreezeMajority(t *testing.T) {
	st := setupStore(t)
	ids := []int64{
		seedStation(t, st, "3031092"),
		seedStation(t, st, "3031093"),
		seedStation(t, st, "3031094"),
	}

	// Two of three flagged stations report no freeze; majority wins.
	flags := []bool{true, false, false}
	for i, id := range ids {
		_, err := st.UpsertObservation(models.Observation{
			StationID: id, Date: "2024-03-10", FreezeDay: b(flags[i]),
		})
		require.NoError(t, err)
	}

	_, err := New(st).Run()
	require.NoError(t, err)

	cw, err := st.GetCityDailyWeather("2024-03-10")
	require.NoError(t, err)
	require.True(t, cw.FreezeDayCity.Valid)
	assert.False(t, cw.FreezeDayCity.Bool)
}
