package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/kmtools/km-report/internal/normalize"
)

// Call is one normalized variant call as stored in DuckDB.
type Call struct {
	Sample      string
	Query       string
	Chrom       string
	Pos         int64
	Region      string
	Location    string
	Type        string
	Ref         string
	Alt         string
	Removed     string
	Added       string
	Ratio       *float64 // nil when the report ratio is not a number
	MinCoverage int64
	ExcluMinCov string
	Info        string
}

// CallFromVariant converts a normalized variant into a storable call.
func CallFromVariant(v *normalize.Variant) Call {
	c := Call{
		Sample:      v.Sample,
		Query:       v.Query,
		Chrom:       v.Chrom,
		Pos:         v.Pos,
		Region:      v.Region,
		Location:    v.Location,
		Type:        v.Type,
		Ref:         v.Ref,
		Alt:         v.Alt,
		Removed:     v.Removed,
		Added:       v.Added,
		ExcluMinCov: v.ExcluMinCov,
		Info:        v.Info,
	}
	if r, err := strconv.ParseFloat(v.Ratio, 64); err == nil {
		c.Ratio = &r
	}
	c.MinCoverage, _ = strconv.ParseInt(v.MinCoverage, 10, 64)
	return c
}

// callKey is the composite key for deduplicating calls before writing.
type callKey struct {
	sample, query, typ, region, ref, alt string
}

// WriteCalls batch-inserts calls using the Appender API. Calls sharing a
// primary key are deduplicated; a call already stored is replaced.
func (s *Store) WriteCalls(calls []Call) error {
	if len(calls) == 0 {
		return nil
	}

	seen := make(map[callKey]bool, len(calls))
	deduped := make([]Call, 0, len(calls))
	for _, c := range calls {
		k := callKey{c.Sample, c.Query, c.Type, c.Region, c.Ref, c.Alt}
		if !seen[k] {
			seen[k] = true
			deduped = append(deduped, c)
		}
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "calls_staging")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	for _, c := range deduped {
		var ratio any
		if c.Ratio != nil {
			ratio = *c.Ratio
		}
		if err := appender.AppendRow(
			c.Sample, c.Query, c.Chrom, c.Pos, c.Region, c.Location, c.Type,
			c.Ref, c.Alt, c.Removed, c.Added, ratio, c.MinCoverage,
			c.ExcluMinCov, c.Info,
		); err != nil {
			appender.Close()
			return fmt.Errorf("append call: %w", err)
		}
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush appender: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `INSERT OR REPLACE INTO calls SELECT * FROM calls_staging`); err != nil {
		return fmt.Errorf("merge calls: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM calls_staging`); err != nil {
		return fmt.Errorf("clear staging: %w", err)
	}
	return nil
}

// ClearCalls removes all stored calls.
func (s *Store) ClearCalls() error {
	_, err := s.db.Exec("DELETE FROM calls")
	return err
}

// CallCount returns the number of stored calls.
func (s *Store) CallCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM calls").Scan(&n); err != nil {
		return 0, fmt.Errorf("count calls: %w", err)
	}
	return n, nil
}

const selectCalls = `SELECT
		sample, query, chrom, pos, region, location, type, ref, alt,
		removed, added, ratio, min_coverage, exclu_min_cov, info
		FROM calls`

// CallsBySample returns the calls of one sample ordered by position.
func (s *Store) CallsBySample(sample string) ([]Call, error) {
	rows, err := s.db.Query(selectCalls+` WHERE sample=? ORDER BY pos, type`, sample)
	if err != nil {
		return nil, fmt.Errorf("query by sample: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

// CallsByType returns every call with the given type label, across samples.
func (s *Store) CallsByType(typ string) ([]Call, error) {
	rows, err := s.db.Query(selectCalls+` WHERE type=? ORDER BY sample, pos`, typ)
	if err != nil {
		return nil, fmt.Errorf("query by type: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

// scanCalls scans rows into Call slices.
func scanCalls(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Call, error) {
	var calls []Call
	for rows.Next() {
		var c Call
		var ratio *float64
		if err := rows.Scan(
			&c.Sample, &c.Query, &c.Chrom, &c.Pos, &c.Region, &c.Location, &c.Type,
			&c.Ref, &c.Alt, &c.Removed, &c.Added, &ratio, &c.MinCoverage,
			&c.ExcluMinCov, &c.Info,
		); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Ratio = ratio
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}
