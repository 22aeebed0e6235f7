package store

import (
	"database/sql"
	"strconv"
)

// Metadata keys remembered between runs.
const (
	KeyLastDir      = "last_dir"
	KeyLastTimeUnit = "last_time_unit"
	KeyLastDate     = "last_date"
)

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Remember stores the directory, time unit and date label of a finished run.
func (s *Store) Remember(dir string, timeUnit int, date string) error {
	pairs := []struct{ k, v string }{
		{KeyLastDir, dir},
		{KeyLastTimeUnit, strconv.Itoa(timeUnit)},
		{KeyLastDate, date},
	}
	for _, p := range pairs {
		if p.v == "" || p.v == "0" {
			continue
		}
		if err := s.SetMetadata(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}
