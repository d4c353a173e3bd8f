// Package reference builds genomic coordinate arrays from an annotated
// multi-FASTA target file (one header per exon or region).
package reference

import (
	"errors"
	"fmt"
)

// Sentinel errors returned while indexing a reference file. All of them are fatal.
var (
	ErrEmptyReference      = errors.New("reference file is empty")
	ErrBadLocation         = errors.New("fasta entry does not contain a correctly formatted location")
	ErrBadAttribute        = errors.New("malformed header attribute")
	ErrAttributeMismatch   = errors.New("attributes do not match in multi-fasta file")
	ErrBadCigar            = errors.New("invalid cigar")
	ErrCigarLength         = errors.New("cigar shorter than location")
	ErrMultipleChromosomes = errors.New("reference spans multiple chromosomes")
	ErrMultipleStrands     = errors.New("reference spans multiple strands")
)

// Strand is the genomic strand of a reference entry.
type Strand int

const (
	StrandUnknown Strand = iota
	StrandPlus
	StrandMinus
)

// String returns "+", "-" or "." for an unknown strand.
func (s Strand) String() string {
	switch s {
	case StrandPlus:
		return "+"
	case StrandMinus:
		return "-"
	}
	return "."
}

// ParseStrand converts a "+"/"-" attribute value to a Strand.
func ParseStrand(s string) (Strand, error) {
	switch s {
	case "+":
		return StrandPlus, nil
	case "-":
		return StrandMinus, nil
	}
	return StrandUnknown, fmt.Errorf("%w: strand=%q", ErrBadAttribute, s)
}

// Entry is a single header + sequence record of the reference file.
type Entry struct {
	Name     string // "name" attribute, empty in mutation mode
	Exon     string // "n" attribute, empty in mutation mode
	Location string // raw chr:start-stop token
	Chrom    string
	Strand   Strand
	Start    int64  // 1-based, inclusive
	Stop     int64  // 1-based, inclusive
	Cigar    string // empty when absent
	Mask     []bool // match mask over [Start, Stop]
	// Positions holds the genomic coordinate of every matched reference base, in genomic order.
	Positions  []int64
	Sequence   string
	Attributes map[string]string
}

// Key returns the exon lookup key (name + "e" + n), or "" for entries
// without exon structure.
func (e *Entry) Key() string {
	if e.Name == "" || e.Exon == "" {
		return ""
	}
	return e.Name + "e" + e.Exon
}

// Index holds every entry of a reference file along with the chromosome and
// strand they share.
type Index struct {
	Chrom      string
	Strand     Strand
	Attributes []string // sorted attribute keys shared by every header
	Entries    []*Entry // file order

	// Pooled is set in mutation mode (no name/n attributes): all entries are
	// folded into AllPositions and AllSequence.
	Pooled       bool
	AllPositions []int64
	AllSequence  string

	exons map[string]*Entry
}

// Exon returns the entry registered under key (e.g. "NPM1e11").
func (idx *Index) Exon(key string) (*Entry, bool) {
	e, ok := idx.exons[key]
	return e, ok
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return len(idx.Entries)
}
