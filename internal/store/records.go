package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RecordRepository provides access to saved records.
type RecordRepository struct {
	db *sql.DB
}

// Records returns the record repository for this store.
func (s *Store) Records() *RecordRepository {
	return &RecordRepository{db: s.db}
}

// Append inserts rec. A missing ID is filled with a new UUID.
func (r *RecordRepository) Append(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	data, err := json.Marshal(rec.Measurements)
	if err != nil {
		return fmt.Errorf("encode measurements: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO records (id, timestamp, hand_index, measurements) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.HandIndex, string(data),
	)
	return err
}

// GetByID retrieves a record by its ID.
func (r *RecordRepository) GetByID(id string) (*Record, error) {
	var rec Record
	var data string

	err := r.db.QueryRow(
		`SELECT id, timestamp, hand_index, measurements FROM records WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.Timestamp, &rec.HandIndex, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &rec.Measurements); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

// List retrieves all records in insertion order.
func (r *RecordRepository) List() ([]Record, error) {
	rows, err := r.db.Query(
		`SELECT id, timestamp, hand_index, measurements FROM records ORDER BY seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var data string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.HandIndex, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &rec.Measurements); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// MaxHandIndex returns the highest saved hand index, or 0 when empty.
func (r *RecordRepository) MaxHandIndex() (int, error) {
	var max int
	err := r.db.QueryRow(`SELECT COALESCE(MAX(hand_index), 0) FROM records`).Scan(&max)
	return max, err
}

// Delete removes a record by its ID.
func (r *RecordRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
