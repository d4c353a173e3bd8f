package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run describes one stored report run.
type Run struct {
	Input   FileFingerprint
	Calls   int64
	Created time.Time
}

// RecordRun logs that calls from the fingerprinted input were stored.
func (s *Store) RecordRun(fp FileFingerprint, calls int64) error {
	_, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?)`,
		fp.Path, fp.Size, storedTime(fp.ModTime), calls, storedTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// LastRun returns the most recent run recorded for path.
func (s *Store) LastRun(path string) (Run, bool, error) {
	var r Run
	err := s.db.QueryRow(`SELECT path, size, mod_time, calls, created
		FROM runs WHERE path=? ORDER BY created DESC LIMIT 1`, path).
		Scan(&r.Input.Path, &r.Input.Size, &r.Input.ModTime, &r.Calls, &r.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query last run: %w", err)
	}
	return r, true, nil
}

// Unchanged reports whether fp matches the input of the last run on its path.
func (s *Store) Unchanged(fp FileFingerprint) (bool, error) {
	r, ok, err := s.LastRun(fp.Path)
	if err != nil || !ok {
		return false, err
	}
	return r.Input.Size == fp.Size && r.Input.ModTime.Equal(storedTime(fp.ModTime)), nil
}

// storedTime matches the microsecond precision of DuckDB timestamps.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
