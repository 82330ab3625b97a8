package store

import (
	"database/sql"

	"github.com/yycdata/collisionwx/internal/models"
)

// UpsertCityDailyWeather replaces the derived city row for one date.
// Returns whether a new row was created.
func (s *Store) UpsertCityDailyWeather(cw models.CityDailyWeather) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM city_daily_weather WHERE date = ?`, cw.Date).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	if err == sql.ErrNoRows {
		_, err := s.db.Exec(`
			INSERT INTO city_daily_weather
				(date, weather_day_city, freeze_day_city, t_max_avg, t_min_avg, precip_any, snow_any, agreement_ratio)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, cw.Date, cw.WeatherDayCity, cw.FreezeDayCity, cw.TMaxAvg, cw.TMinAvg,
			cw.PrecipAny, cw.SnowAny, cw.AgreementRatio)
		return true, err
	}

	_, err = s.db.Exec(`
		UPDATE city_daily_weather SET
			weather_day_city = ?, freeze_day_city = ?, t_max_avg = ?, t_min_avg = ?,
			precip_any = ?, snow_any = ?, agreement_ratio = ?
		WHERE date = ?
	`, cw.WeatherDayCity, cw.FreezeDayCity, cw.TMaxAvg, cw.TMinAvg,
		cw.PrecipAny, cw.SnowAny, cw.AgreementRatio, cw.Date)
	return false, err
}

func (s *Store) GetCityDailyWeather(date string) (*models.CityDailyWeather, error) {
	row := s.db.QueryRow(`
		SELECT date, weather_day_city, freeze_day_city, t_max_avg, t_min_avg,
		       precip_any, snow_any, agreement_ratio
		FROM city_daily_weather
		WHERE date = ?
	`, date)

	var cw models.CityDailyWeather
	err := row.Scan(&cw.Date, &cw.WeatherDayCity, &cw.FreezeDayCity, &cw.TMaxAvg,
		&cw.TMinAvg, &cw.PrecipAny, &cw.SnowAny, &cw.AgreementRatio)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cw, nil
}
