package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/kmtools/km-report/internal/normalize"
)

// FlatColumns is the header of the flat report, in column order.
var FlatColumns = []string{
	"Sample",
	"Region",
	"Location",
	"Type",
	"Removed",
	"Added",
	"Abnormal",
	"Normal",
	"Ratio",
	"Min_coverage",
	"Exclu_min_cov",
	"Variant",
	"Target",
	"Info",
	"Variant_sequence",
	"Reference_sequence",
}

// FlatWriter writes one tab-delimited line per variant.
type FlatWriter struct {
	w *bufio.Writer
}

// NewFlatWriter creates a new flat report writer.
func NewFlatWriter(w io.Writer) *FlatWriter {
	return &FlatWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (fw *FlatWriter) WriteHeader() error {
	_, err := fw.w.WriteString(strings.Join(FlatColumns, "\t") + "\n")
	return err
}

// Write writes a single variant.
func (fw *FlatWriter) Write(v *normalize.Variant) error {
	values := []string{
		v.Sample,
		v.Region,
		v.Location,
		v.Type,
		v.Removed,
		v.Added,
		v.Abnormal,
		v.Normal,
		v.Ratio,
		v.MinCoverage,
		v.ExcluMinCov,
		v.Mod,
		v.Query,
		v.Info,
		v.AltSequence,
		v.RefSequence,
	}
	_, err := fw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (fw *FlatWriter) Flush() error {
	return fw.w.Flush()
}
