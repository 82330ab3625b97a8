package store

import (
	"database/sql"
	"fmt"

	"github.com/yycdata/collisionwx/internal/models"
)

const collisionColumns = `collision_id, occurred_at, modified_at, date, hour, weekday, month,
	quadrant, longitude, latitude, count, description, location_text, intersection_key, nearest_station_id`

// UpsertCollision writes one collision keyed on its external id. Returns
// whether a new row was created.
func (s *Store) UpsertCollision(c models.Collision) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM collisions WHERE collision_id = ?`, c.CollisionID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	if err == sql.ErrNoRows {
		_, err := s.db.Exec(`
			INSERT INTO collisions (`+collisionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.CollisionID, c.OccurredAt, c.ModifiedAt, c.Date, c.Hour, c.Weekday, c.Month,
			c.Quadrant, c.Longitude, c.Latitude, c.Count, c.Description, c.LocationText,
			c.IntersectionKey, c.NearestStationID)
		return true, err
	}

	_, err = s.db.Exec(`
		UPDATE collisions SET
			occurred_at = ?, modified_at = ?, date = ?, hour = ?, weekday = ?, month = ?,
			quadrant = ?, longitude = ?, latitude = ?, count = ?, description = ?,
			location_text = ?, intersection_key = ?, nearest_station_id = ?
		WHERE collision_id = ?
	`, c.OccurredAt, c.ModifiedAt, c.Date, c.Hour, c.Weekday, c.Month,
		c.Quadrant, c.Longitude, c.Latitude, c.Count, c.Description,
		c.LocationText, c.IntersectionKey, c.NearestStationID, c.CollisionID)
	return false, err
}

func (s *Store) GetCollision(collisionID string) (*models.Collision, error) {
	row := s.db.QueryRow(`SELECT `+collisionColumns+` FROM collisions WHERE collision_id = ?`, collisionID)

	var c models.Collision
	err := scanCollision(row.Scan, &c)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCollisions runs a compiled filter over the collision set, ordered by
// descending occurrence time. A limit <= 0 means no limit.
func (s *Store) ListCollisions(where string, args []any, limit, offset int) ([]models.Collision, error) {
	q := `SELECT ` + collisionColumns + ` FROM collisions WHERE ` + where + ` ORDER BY occurred_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collisions []models.Collision
	for rows.Next() {
		var c models.Collision
		if err := scanCollision(rows.Scan, &c); err != nil {
			return nil, err
		}
		collisions = append(collisions, c)
	}
	return collisions, rows.Err()
}

// ListCollisionsInBox applies a coarse coordinate box on top of a compiled
// filter. The proximity search refines the candidates with exact distances.
func (s *Store) ListCollisionsInBox(where string, args []any, minLat, maxLat, minLon, maxLon float64) ([]models.Collision, error) {
	q := `SELECT ` + collisionColumns + ` FROM collisions WHERE ` + where +
		` AND latitude >= ? AND latitude <= ? AND longitude >= ? AND longitude <= ?`
	boxArgs := append(append([]any{}, args...), minLat, maxLat, minLon, maxLon)

	rows, err := s.db.Query(q, boxArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collisions []models.Collision
	for rows.Next() {
		var c models.Collision
		if err := scanCollision(rows.Scan, &c); err != nil {
			return nil, err
		}
		collisions = append(collisions, c)
	}
	return collisions, rows.Err()
}

func scanCollision(scan func(...any) error, c *models.Collision) error {
	return scan(&c.CollisionID, &c.OccurredAt, &c.ModifiedAt, &c.Date, &c.Hour, &c.Weekday,
		&c.Month, &c.Quadrant, &c.Longitude, &c.Latitude, &c.Count, &c.Description,
		&c.LocationText, &c.IntersectionKey, &c.NearestStationID)
}
