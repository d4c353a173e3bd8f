// Package kmer provides k-mer count lookups backed by DuckDB. Counts are
// loaded from "kmer<TAB>count" dumps (e.g. jellyfish dump -c) and stored
// under their canonical form, so a k-mer and its reverse complement share
// one count.
package kmer

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/kmtools/km-report/internal/dna"
)

var (
	ErrEmptyIndex       = errors.New("k-mer index is empty")
	ErrSequenceTooShort = errors.New("sequence shorter than k")
)

// Summary describes the k-mer counts along a sequence.
type Summary struct {
	Min  int64
	Max  int64
	Mean float64
}

// Store provides k-mer count lookups backed by DuckDB.
type Store struct {
	db      *sql.DB
	countPS *sql.Stmt // prepared statement for Count, lazily initialized
	k       int

	memCache map[string]int64
}

// Open opens or creates a DuckDB database for k-mer counts at the given path.
// An empty path opens an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// OpenFile opens an exclusion index: a .duckdb file is opened in place,
// anything else is bulk loaded as a count dump into an in-memory database.
func OpenFile(path string) (*Store, error) {
	if strings.HasSuffix(path, ".duckdb") || strings.HasSuffix(path, ".db") {
		return Open(path)
	}
	s, err := Open("")
	if err != nil {
		return nil, err
	}
	if err := s.Load(path); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kmers (
		kmer VARCHAR PRIMARY KEY,
		count BIGINT
	)`)
	return err
}

// Load bulk-loads counts from a tab-separated "kmer count" file, replacing
// any previous contents. Gzipped files are read transparently.
func (s *Store) Load(tsvPath string) error {
	if _, err := os.Stat(tsvPath); err != nil {
		return fmt.Errorf("loading k-mer counts: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM kmers`); err != nil {
		return fmt.Errorf("clear k-mer table: %w", err)
	}

	path := strings.ReplaceAll(tsvPath, "'", "''")
	query := fmt.Sprintf(`INSERT INTO kmers
		SELECT least(k, translate(reverse(k), 'ACGT', 'TGCA')) AS canon, SUM(c)
		FROM (
			SELECT upper(column0) AS k, column1 AS c
			FROM read_csv('%s', delim='\t', header=false,
				columns={'column0': 'VARCHAR', 'column1': 'BIGINT'})
		)
		GROUP BY canon`, path)
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("loading k-mer counts: %w", err)
	}

	s.k = 0
	s.memCache = nil
	return nil
}

// Len returns the number of distinct canonical k-mers.
func (s *Store) Len() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM kmers").Scan(&n); err != nil {
		return 0, fmt.Errorf("count k-mers: %w", err)
	}
	return n, nil
}

// K returns the k-mer length of the index.
func (s *Store) K() (int, error) {
	if s.k > 0 {
		return s.k, nil
	}
	var k int
	err := s.db.QueryRow("SELECT length(kmer) FROM kmers LIMIT 1").Scan(&k)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEmptyIndex
	}
	if err != nil {
		return 0, fmt.Errorf("k-mer length: %w", err)
	}
	s.k = k
	return k, nil
}

// PreloadToMemory copies every count into a map so lookups skip the database.
func (s *Store) PreloadToMemory() error {
	rows, err := s.db.Query("SELECT kmer, count FROM kmers")
	if err != nil {
		return fmt.Errorf("query k-mers for preload: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]int64)
	for rows.Next() {
		var kmer string
		var count int64
		if err := rows.Scan(&kmer, &count); err != nil {
			return fmt.Errorf("scan preload row: %w", err)
		}
		cache[kmer] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload rows: %w", err)
	}

	s.memCache = cache
	return nil
}

// MemCacheSize returns the number of k-mers in the in-memory cache.
func (s *Store) MemCacheSize() int {
	return len(s.memCache)
}

// Count returns the count of kmer or of its reverse complement. Absent
// k-mers count zero.
func (s *Store) Count(kmer string) (int64, error) {
	canon := dna.Canonical(strings.ToUpper(kmer))
	if s.memCache != nil {
		return s.memCache[canon], nil
	}

	if s.countPS == nil {
		ps, err := s.db.Prepare("SELECT count FROM kmers WHERE kmer = ?")
		if err != nil {
			return 0, fmt.Errorf("prepare count: %w", err)
		}
		s.countPS = ps
	}
	var n int64
	err := s.countPS.QueryRow(canon).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", canon, err)
	}
	return n, nil
}

// Coverage summarizes the counts of every k-mer of seq.
func (s *Store) Coverage(seq string) (Summary, error) {
	k, err := s.K()
	if err != nil {
		return Summary{}, err
	}
	if len(seq) < k {
		return Summary{}, fmt.Errorf("%w: %d < %d", ErrSequenceTooShort, len(seq), k)
	}

	var sum Summary
	var total int64
	n := len(seq) - k + 1
	for i := 0; i < n; i++ {
		c, err := s.Count(seq[i : i+k])
		if err != nil {
			return Summary{}, err
		}
		if i == 0 || c < sum.Min {
			sum.Min = c
		}
		if c > sum.Max {
			sum.Max = c
		}
		total += c
	}
	sum.Mean = float64(total) / float64(n)
	return sum, nil
}

// MinCoverage returns the lowest k-mer count along seq.
func (s *Store) MinCoverage(seq string) (int64, error) {
	sum, err := s.Coverage(seq)
	if err != nil {
		return 0, err
	}
	return sum.Min, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.countPS != nil {
		s.countPS.Close()
	}
	return s.db.Close()
}
