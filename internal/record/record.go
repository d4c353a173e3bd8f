// Package record parses the tab-separated path-difference records produced by
// the upstream k-mer mutation search, or previously generated flat reports.
package record

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingReference is returned when the stream carries upstream comment
// headers but no reference (target) file was configured.
var ErrMissingReference = errors.New("target file not specified for upstream records")

// Mode is the search mode announced by the upstream "#mode:" header.
type Mode int

const (
	ModeMutation Mode = iota
	ModeFusion
)

// String returns the header spelling of the mode.
func (m Mode) String() string {
	if m == ModeFusion {
		return "fusion"
	}
	return "mutation"
}

// ParseMode parses a "#mode:" header value.
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSpace(s) {
	case "mutation":
		return ModeMutation, nil
	case "fusion":
		return ModeFusion, nil
	}
	return ModeMutation, fmt.Errorf("unknown mode %q", s)
}

// Layout identifies the column layout of a record.
type Layout int

const (
	// LayoutFlat is a 16-column report line produced by this tool.
	LayoutFlat Layout = iota
	// LayoutUpstream is a raw 13+-column line from the mutation search.
	LayoutUpstream
)

// Column counts of the two layouts.
const (
	FlatColumns     = 16
	UpstreamColumns = 13
)

// Record is either a *RawFlatRecord or a *RawUpstreamRecord.
type Record interface {
	Layout() Layout
	SampleID() string
}

// RawFlatRecord is a pre-normalized report line that is passed through unchanged.
type RawFlatRecord struct {
	Sample            string
	Region            string
	Location          string
	Type              string
	Removed           string
	Added             string
	Abnormal          string
	Normal            string
	Ratio             string
	MinCoverage       string
	ExcluMinCov       string
	Variant           string
	Target            string
	Info              string
	VariantSequence   string
	ReferenceSequence string

	LineNumber int
}

func (r *RawFlatRecord) Layout() Layout   { return LayoutFlat }
func (r *RawFlatRecord) SampleID() string { return r.Sample }

// RawUpstreamRecord is one path difference reported by the mutation search.
type RawUpstreamRecord struct {
	Sample        string
	Query         string
	Type          string // e.g. "Insertion", "Reference", "ITD/NPM1e11"
	Variant       string // "start:deleted/inserted:stop", or empty for reference paths
	Ratio         string
	AltExpression string
	MinCoverage   int
	StartOffset   int
	AltSequence   string
	RefRatio      string
	RefExpression string
	RefSequence   string
	Info          string
	LastColumn    string

	Line       string
	LineNumber int
}

func (r *RawUpstreamRecord) Layout() Layout   { return LayoutUpstream }
func (r *RawUpstreamRecord) SampleID() string { return r.Sample }

// ParseError represents an error during record parsing with line context.
type ParseError struct {
	Line    int
	Message string
	Err     error // optional sentinel
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record parse error at line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
