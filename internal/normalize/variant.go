// Package normalize places path differences on the genome and rewrites them
// as minimal, anchored variant calls.
package normalize

import "github.com/kmtools/km-report/internal/reference"

// Kind is the classified type of a normalized variant.
type Kind int

const (
	KindReference Kind = iota
	KindInsertion
	KindITD
	KindInsertionAmbiguous
	KindDeletion
	KindSubstitution
	KindIndel
)

var kindNames = [...]string{
	KindReference:          "Reference",
	KindInsertion:          "Insertion",
	KindITD:                "ITD",
	KindInsertionAmbiguous: "I&I",
	KindDeletion:           "Deletion",
	KindSubstitution:       "Substitution",
	KindIndel:              "Indel",
}

// String returns the report label of the kind.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Variant is a normalized call ready for reporting.
type Variant struct {
	Sample string
	Query  string
	// Key names the call in table output: the upstream type tag, joined with
	// the query unless the tag already carries an exon suffix.
	Key string

	Chrom    string
	Strand   reference.Strand
	Region   string // chrom:start-stop
	Location string // chrom:pos, or "-" for reference paths
	Pos      int64  // VCF anchor position

	Kind Kind
	Type string // label: [Fusion-]<kind>[/<exon>::<exon>]

	Ref string
	Alt string

	Removed string
	Added   string // may carry " | <duplicated length>" for ITD and I&I

	Abnormal    string
	Normal      string
	Ratio       string
	MinCoverage string
	ExcluMinCov string
	Mod         string // deleted/inserted as written upstream
	Info        string

	AltSequence string
	RefSequence string

	// NoVariant marks reference paths (no edit).
	NoVariant bool
	// PositionUnknown is set when the reference had no strand information and
	// every coordinate is the UnknownPosition sentinel.
	PositionUnknown bool
	// Flat marks rows read back from a previous flat report.
	Flat bool
}
