package output

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kmtools/km-report/internal/normalize"
)

// TableKey identifies one column of the table report.
type TableKey struct {
	Name   string // type tag joined with the query
	Region string // region, with ":<mod>" when the call has an edit
}

// isPath reports whether the key names a reference or fusion path.
func (k TableKey) isPath() bool {
	bare, _, _ := strings.Cut(k.Name, "/")
	return bare == "Reference" || bare == "Fusion"
}

func (k TableKey) isReference() bool {
	bare, _, _ := strings.Cut(k.Name, "/")
	return bare == "Reference"
}

// Header returns the column title for the key.
func (k TableKey) Header() string {
	if k.isPath() {
		return k.Name
	}
	return k.Region
}

type cell struct {
	ratio float64
	valid bool
}

// AggregationState accumulates the sample × call matrix of a table report.
type AggregationState struct {
	counts  map[TableKey]int
	keys    []TableKey // first-seen order
	samples []string   // first-seen order
	cells   map[string]map[TableKey]cell
}

// NewAggregationState creates an empty aggregation.
func NewAggregationState() *AggregationState {
	return &AggregationState{
		counts: make(map[TableKey]int),
		cells:  make(map[string]map[TableKey]cell),
	}
}

// Add records one call of v.
func (a *AggregationState) Add(v *normalize.Variant) {
	key := TableKey{Name: v.Key, Region: v.Region}
	if v.Mod != "" && !v.NoVariant {
		key.Region += ":" + v.Mod
	}

	if _, ok := a.counts[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.counts[key]++

	row, ok := a.cells[v.Sample]
	if !ok {
		row = make(map[TableKey]cell)
		a.cells[v.Sample] = row
		a.samples = append(a.samples, v.Sample)
	}
	ratio, err := strconv.ParseFloat(v.Ratio, 64)
	row[key] = cell{ratio: ratio, valid: err == nil}
}

// Keys returns the columns sorted by descending count; ties keep first-seen order.
func (a *AggregationState) Keys() []TableKey {
	keys := make([]TableKey, len(a.keys))
	copy(keys, a.keys)
	sort.SliceStable(keys, func(i, j int) bool {
		return a.counts[keys[i]] > a.counts[keys[j]]
	})
	return keys
}

// Count returns how many calls were recorded under key.
func (a *AggregationState) Count(key TableKey) int {
	return a.counts[key]
}

// Samples returns the samples in first-seen order.
func (a *AggregationState) Samples() []string {
	return a.samples
}

// Cell returns the rendered value of sample for key.
func (a *AggregationState) Cell(sample string, key TableKey) string {
	c, ok := a.cells[sample][key]
	if !ok || !c.valid {
		return "."
	}
	if key.isReference() && c.ratio == 0 {
		return "."
	}
	return formatRatio(c.ratio)
}

// TableWriter aggregates variants and writes a sample × call matrix of
// ratios on Flush.
type TableWriter struct {
	w     *bufio.Writer
	state *AggregationState
	done  bool
}

// NewTableWriter creates a new table report writer.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{
		w:     bufio.NewWriter(w),
		state: NewAggregationState(),
	}
}

// WriteHeader is a no-op: the header depends on every call and is written by Flush.
func (tw *TableWriter) WriteHeader() error {
	return nil
}

// Write adds v to the aggregation.
func (tw *TableWriter) Write(v *normalize.Variant) error {
	tw.state.Add(v)
	return nil
}

// State returns the aggregation backing the writer.
func (tw *TableWriter) State() *AggregationState {
	return tw.state
}

// Flush writes the matrix once and flushes the underlying writer.
func (tw *TableWriter) Flush() error {
	if tw.done {
		return tw.w.Flush()
	}
	tw.done = true

	keys := tw.state.Keys()
	header := make([]string, 0, len(keys)+1)
	header = append(header, "Sample")
	for _, k := range keys {
		header = append(header, k.Header())
	}
	if _, err := tw.w.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return err
	}

	for _, s := range tw.state.Samples() {
		row := make([]string, 0, len(keys)+1)
		row = append(row, s)
		for _, k := range keys {
			row = append(row, tw.state.Cell(s, k))
		}
		if _, err := tw.w.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return tw.w.Flush()
}
