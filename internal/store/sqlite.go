// Package store is the SQLite persistence layer. All SQL lives here; the
// ingest and query packages hand it typed rows and compiled WHERE fragments.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yycdata/collisionwx/internal/models"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so every
// store method works both standalone and inside a loader transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type Store struct {
	db   dbtx
	root *sql.DB
	loc  *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, root: db, loc: loc}
}

// Location returns the local timezone collisions are interpreted in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// InTx runs fn with a Store bound to a single transaction. The loaders wrap
// whole file batches in this so row-level skips tolerate dirty data while a
// hard failure rolls back every upsert in the run.
func (s *Store) InTx(fn func(*Store) error) error {
	tx, err := s.root.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&Store{db: tx, root: s.root, loc: s.loc}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) GetStationByClimateID(climateID string) (*models.Station, error) {
	row := s.db.QueryRow(`
		SELECT id, climate_id, name, longitude, latitude
		FROM weather_stations
		WHERE climate_id = ?
	`, climateID)

	var st models.Station
	err := row.Scan(&st.ID, &st.ClimateID, &st.Name, &st.Longitude, &st.Latitude)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) GetStationByID(id int64) (*models.Station, error) {
	row := s.db.QueryRow(`
		SELECT id, climate_id, name, longitude, latitude
		FROM weather_stations
		WHERE id = ?
	`, id)

	var st models.Station
	err := row.Scan(&st.ID, &st.ClimateID, &st.Name, &st.Longitude, &st.Latitude)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateStation inserts a station and fills in its assigned row id.
func (s *Store) CreateStation(st *models.Station) error {
	res, err := s.db.Exec(`
		INSERT INTO weather_stations (climate_id, name, longitude, latitude)
		VALUES (?, ?, ?, ?)
	`, st.ClimateID, st.Name, st.Longitude, st.Latitude)
	if err != nil {
		return err
	}
	st.ID, err = res.LastInsertId()
	return err
}

// UpdateStation corrects name/coordinates in place. Identity (climate_id)
// never changes.
func (s *Store) UpdateStation(st models.Station) error {
	_, err := s.db.Exec(`
		UPDATE weather_stations SET name = ?, longitude = ?, latitude = ?
		WHERE id = ?
	`, st.Name, st.Longitude, st.Latitude, st.ID)
	return err
}

func (s *Store) GetStations() ([]models.Station, error) {
	rows, err := s.db.Query(`
		SELECT id, climate_id, name, longitude, latitude
		FROM weather_stations
		ORDER BY climate_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.ID, &st.ClimateID, &st.Name, &st.Longitude, &st.Latitude); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// UpsertObservation writes one station-day row, keyed on (station, date).
// Returns whether a new row was created.
func (s *Store) UpsertObservation(obs models.Observation) (bool, error) {
	var existing int64
	err := s.db.QueryRow(
		`SELECT id FROM weather_observations WHERE station_id = ? AND date = ?`,
		obs.StationID, obs.Date,
	).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	if err == sql.ErrNoRows {
		_, err := s.db.Exec(`
			INSERT INTO weather_observations
				(station_id, date, t_max_c, t_min_c, t_mean_c, total_rain_mm, total_snow_cm,
				 total_precip_mm, snow_on_grnd_cm, gust_dir_10deg, gust_kmh, weather_day, freeze_day)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, obs.StationID, obs.Date, obs.TMaxC, obs.TMinC, obs.TMeanC, obs.TotalRainMM,
			obs.TotalSnowCM, obs.TotalPrecipMM, obs.SnowOnGrndCM, obs.GustDir10Deg,
			obs.GustKMH, obs.WeatherDay, obs.FreezeDay)
		return true, err
	}

	_, err = s.db.Exec(`
		UPDATE weather_observations SET
			t_max_c = ?, t_min_c = ?, t_mean_c = ?, total_rain_mm = ?, total_snow_cm = ?,
			total_precip_mm = ?, snow_on_grnd_cm = ?, gust_dir_10deg = ?, gust_kmh = ?,
			weather_day = ?, freeze_day = ?
		WHERE id = ?
	`, obs.TMaxC, obs.TMinC, obs.TMeanC, obs.TotalRainMM, obs.TotalSnowCM,
		obs.TotalPrecipMM, obs.SnowOnGrndCM, obs.GustDir10Deg, obs.GustKMH,
		obs.WeatherDay, obs.FreezeDay, existing)
	return false, err
}

func (s *Store) GetObservation(stationID int64, date string) (*models.Observation, error) {
	row := s.db.QueryRow(`
		SELECT id, station_id, date, t_max_c, t_min_c, t_mean_c, total_rain_mm, total_snow_cm,
		       total_precip_mm, snow_on_grnd_cm, gust_dir_10deg, gust_kmh, weather_day, freeze_day
		FROM weather_observations
		WHERE station_id = ? AND date = ?
	`, stationID, date)

	var obs models.Observation
	err := scanObservation(row.Scan, &obs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// GetObservationDates returns every distinct date with at least one station
// observation, ascending. The aggregator iterates exactly this set.
func (s *Store) GetObservationDates() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT date FROM weather_observations ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (s *Store) GetObservationsForDate(date string) ([]models.Observation, error) {
	rows, err := s.db.Query(`
		SELECT id, station_id, date, t_max_c, t_min_c, t_mean_c, total_rain_mm, total_snow_cm,
		       total_precip_mm, snow_on_grnd_cm, gust_dir_10deg, gust_kmh, weather_day, freeze_day
		FROM weather_observations
		WHERE date = ?
		ORDER BY station_id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var obs models.Observation
		if err := scanObservation(rows.Scan, &obs); err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

func scanObservation(scan func(...any) error, obs *models.Observation) error {
	return scan(&obs.ID, &obs.StationID, &obs.Date, &obs.TMaxC, &obs.TMinC, &obs.TMeanC,
		&obs.TotalRainMM, &obs.TotalSnowCM, &obs.TotalPrecipMM, &obs.SnowOnGrndCM,
		&obs.GustDir10Deg, &obs.GustKMH, &obs.WeatherDay, &obs.FreezeDay)
}
