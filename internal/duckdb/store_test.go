package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmtools/km-report/internal/normalize"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ratio(f float64) *float64 { return &f }

func testCalls() []Call {
	return []Call{
		{
			Sample: "s1", Query: "NPM1_4ins", Chrom: "chr5", Pos: 171410539,
			Region: "chr5:171410540-171410541", Location: "chr5:171410540",
			Type: "Insertion", Ref: "C", Alt: "CTCTG", Removed: "0", Added: "4",
			Ratio: ratio(0.42), MinCoverage: 37, Info: "vs_ref",
		},
		{
			Sample: "s1", Query: "FLT3_ITD", Chrom: "chr13", Pos: 28034105,
			Region: "chr13:28034106-28034107", Location: "chr13:28034106",
			Type: "ITD", Ref: "A", Alt: "AGGATCC", Removed: "0", Added: "6 | 1",
			Ratio: ratio(0.1), MinCoverage: 12, ExcluMinCov: "0", Info: "vs_ref",
		},
		{
			Sample: "s2", Query: "NPM1_4ins", Chrom: "chr5", Pos: 171410539,
			Region: "chr5:171410540-171410541", Location: "chr5:171410540",
			Type: "Insertion", Ref: "C", Alt: "CTCTG", Removed: "0", Added: "4",
			MinCoverage: 8, Info: "vs_ref",
		},
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Equal(t, "", s.Path())
}

func TestWriteAndQueryCalls(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteCalls(testCalls()))

	n, err := s.CallCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	calls, err := s.CallsBySample("s1")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "ITD", calls[0].Type)
	assert.Equal(t, "6 | 1", calls[0].Added)
	require.NotNil(t, calls[0].Ratio)
	assert.InDelta(t, 0.1, *calls[0].Ratio, 1e-9)
	assert.Equal(t, "Insertion", calls[1].Type)

	calls, err = s.CallsByType("Insertion")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "s1", calls[0].Sample)
	assert.Equal(t, "s2", calls[1].Sample)
	assert.Nil(t, calls[1].Ratio)

	calls, err = s.CallsBySample("missing")
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestWriteCalls_Dedup(t *testing.T) {
	s := openInMemory(t)

	calls := testCalls()
	calls = append(calls, calls[0])
	require.NoError(t, s.WriteCalls(calls))

	updated := testCalls()[0]
	updated.MinCoverage = 99
	require.NoError(t, s.WriteCalls([]Call{updated}))

	n, err := s.CallCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := s.CallsByType("Insertion")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(99), got[0].MinCoverage)
}

func TestWriteCalls_Empty(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteCalls(nil))
}

func TestClearCalls(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteCalls(testCalls()))
	require.NoError(t, s.ClearCalls())

	n, err := s.CallCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCallFromVariant(t *testing.T) {
	v := &normalize.Variant{
		Sample: "s1", Query: "q1", Chrom: "chr1", Pos: 103,
		Region: "chr1:104-105", Location: "chr1:104", Type: "Insertion",
		Ref: "TAC", Alt: "TAAC", Removed: "0", Added: "1",
		Ratio: "0.25", MinCoverage: "20", Info: "vs_ref",
	}
	c := CallFromVariant(v)
	assert.Equal(t, "TAAC", c.Alt)
	assert.Equal(t, int64(20), c.MinCoverage)
	require.NotNil(t, c.Ratio)
	assert.Equal(t, 0.25, *c.Ratio)

	v.Ratio = "-"
	assert.Nil(t, CallFromVariant(v).Ratio)
}

func TestPersistentStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "calls.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteCalls(testCalls()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.CallCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRuns(t *testing.T) {
	s := openInMemory(t)

	input := filepath.Join(t.TempDir(), "sample.txt")
	require.NoError(t, os.WriteFile(input, []byte("#target_name\n"), 0644))
	fp, err := StatFile(input)
	require.NoError(t, err)

	_, ok, err := s.LastRun(input)
	require.NoError(t, err)
	assert.False(t, ok)

	unchanged, err := s.Unchanged(fp)
	require.NoError(t, err)
	assert.False(t, unchanged)

	require.NoError(t, s.RecordRun(fp, 3))

	run, ok, err := s.LastRun(input)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), run.Calls)
	assert.Equal(t, fp.Size, run.Input.Size)

	unchanged, err = s.Unchanged(fp)
	require.NoError(t, err)
	assert.True(t, unchanged)

	fp.ModTime = fp.ModTime.Add(time.Hour)
	unchanged, err = s.Unchanged(fp)
	require.NoError(t, err)
	assert.False(t, unchanged)
}

func TestStatFile_Missing(t *testing.T) {
	_, err := StatFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
