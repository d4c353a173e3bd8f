// Package output provides report formatters for normalized variants.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kmtools/km-report/internal/normalize"
)

// Writer emits normalized variants in one report format.
type Writer interface {
	WriteHeader() error
	Write(v *normalize.Variant) error
	Flush() error
}

// Format selects a report layout.
type Format int

const (
	FormatFlat Format = iota
	FormatVCF
	FormatTable
)

func (f Format) String() string {
	switch f {
	case FormatVCF:
		return "vcf"
	case FormatTable:
		return "table"
	default:
		return "flat"
	}
}

// ParseFormat parses a format name. The empty string selects FormatFlat.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "flat", "tsv":
		return FormatFlat, nil
	case "vcf":
		return FormatVCF, nil
	case "table":
		return FormatTable, nil
	}
	return FormatFlat, fmt.Errorf("unknown output format %q (want flat, vcf or table)", s)
}

// Options holds format-specific settings.
type Options struct {
	// Junction keeps VCF records whose target spans an exon junction.
	Junction bool
}

// NewWriter creates the writer for format.
func NewWriter(format Format, w io.Writer, opts Options) Writer {
	switch format {
	case FormatVCF:
		vw := NewVCFWriter(w)
		vw.Junction = opts.Junction
		return vw
	case FormatTable:
		return NewTableWriter(w)
	default:
		return NewFlatWriter(w)
	}
}

// formatRatio renders a ratio the way the upstream tools print floats:
// integral values keep a trailing ".0".
func formatRatio(f float64) string {
	s := strconv.FormatFloat(f, 'g', 12, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
