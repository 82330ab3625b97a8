package store

import "database/sql"

// The stats queries all sum the collision count field, not row count, over a
// compiled filter. Zero-filling fixed domains happens in the query package.

func (s *Store) totalsByInt(column, where string, args []any) (map[int]int, error) {
	rows, err := s.db.Query(
		`SELECT `+column+`, COALESCE(SUM(count), 0) FROM collisions WHERE `+where+` GROUP BY `+column,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[int]int)
	for rows.Next() {
		var key, total int
		if err := rows.Scan(&key, &total); err != nil {
			return nil, err
		}
		totals[key] = total
	}
	return totals, rows.Err()
}

func (s *Store) MonthlyTotals(where string, args []any) (map[int]int, error) {
	return s.totalsByInt("month", where, args)
}

func (s *Store) HourlyTotals(where string, args []any) (map[int]int, error) {
	return s.totalsByInt("hour", where, args)
}

func (s *Store) WeekdayTotals(where string, args []any) (map[int]int, error) {
	return s.totalsByInt("weekday", where, args)
}

func (s *Store) QuadrantTotals(where string, args []any) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT quadrant, COALESCE(SUM(count), 0) FROM collisions WHERE `+where+` GROUP BY quadrant`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var key string
		var total int
		if err := rows.Scan(&key, &total); err != nil {
			return nil, err
		}
		totals[key] = total
	}
	return totals, rows.Err()
}

// IntersectionGroup is one (intersection_key, location_text) grouping. The
// query package merges these per key and picks a representative label.
type IntersectionGroup struct {
	Key        string
	Label      string
	Total      int
	Collisions int
}

func (s *Store) IntersectionGroups(where string, args []any) ([]IntersectionGroup, error) {
	rows, err := s.db.Query(`
		SELECT intersection_key, location_text, COALESCE(SUM(count), 0), COUNT(*)
		FROM collisions
		WHERE `+where+` AND intersection_key != ''
		GROUP BY intersection_key, location_text
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []IntersectionGroup
	for rows.Next() {
		var g IntersectionGroup
		if err := rows.Scan(&g.Key, &g.Label, &g.Total, &g.Collisions); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// DateWeatherTotal carries one date's summed collision count alongside that
// date's city weather classification, when one exists.
type DateWeatherTotal struct {
	Date       string
	Total      int
	WeatherDay sql.NullString
}

func (s *Store) DateWeatherTotals(where string, args []any) ([]DateWeatherTotal, error) {
	rows, err := s.db.Query(`
		SELECT collisions.date, COALESCE(SUM(count), 0),
		       (SELECT w.weather_day_city FROM city_daily_weather w WHERE w.date = collisions.date)
		FROM collisions
		WHERE `+where+`
		GROUP BY collisions.date
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []DateWeatherTotal
	for rows.Next() {
		var t DateWeatherTotal
		if err := rows.Scan(&t.Date, &t.Total, &t.WeatherDay); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
