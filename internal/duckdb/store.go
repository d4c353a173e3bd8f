// Package duckdb persists normalized variant calls in DuckDB so that reports
// from many samples can be queried together.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding variant calls.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

const callColumns = `
		sample VARCHAR,
		query VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		region VARCHAR,
		location VARCHAR,
		type VARCHAR,
		ref VARCHAR,
		alt VARCHAR,
		removed VARCHAR,
		added VARCHAR,
		ratio DOUBLE,
		min_coverage BIGINT,
		exclu_min_cov VARCHAR,
		info VARCHAR`

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (` + callColumns + `,
		PRIMARY KEY (sample, query, type, region, ref, alt)
	)`,
		`CREATE TABLE IF NOT EXISTS calls_staging (` + callColumns + `)`,
		`CREATE TABLE IF NOT EXISTS runs (
		path VARCHAR,
		size BIGINT,
		mod_time TIMESTAMP,
		calls BIGINT,
		created TIMESTAMP
	)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
