package store

import (
	"time"

	"github.com/yycdata/collisionwx/internal/models"
)

// CreateFlag attaches a note to a collision by its external id. The caller
// verifies the collision exists; the foreign key backs that up.
func (s *Store) CreateFlag(collisionID, note string) (*models.Flag, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO flags (collision_id, note, created_at) VALUES (?, ?, ?)
	`, collisionID, note, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Flag{ID: id, CollisionID: collisionID, Note: note, CreatedAt: now}, nil
}

func (s *Store) ListFlags(limit, offset int) ([]models.Flag, error) {
	rows, err := s.db.Query(`
		SELECT id, collision_id, note, created_at
		FROM flags
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flags []models.Flag
	for rows.Next() {
		var f models.Flag
		if err := rows.Scan(&f.ID, &f.CollisionID, &f.Note, &f.CreatedAt); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

func (s *Store) DeleteFlag(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM flags WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) UpdateFlag(id int64, note string) (bool, error) {
	res, err := s.db.Exec(`UPDATE flags SET note = ? WHERE id = ?`, note, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
