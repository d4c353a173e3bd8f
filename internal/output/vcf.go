package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/kmtools/km-report/internal/dna"
	"github.com/kmtools/km-report/internal/normalize"
	"github.com/kmtools/km-report/internal/reference"
)

var vcfHeader = []string{
	"##fileformat=VCFv4.1",
	`##INFO=<ID=TYPE,Number=A,Type=String,Description="The type of variant, either Insertion, ITD, I&I, Deletion, Substitution or Indel.">`,
	`##INFO=<ID=TARGET,Number=A,Type=String,Description="Name of the sequencing that contains the mutation.">`,
	`##INFO=<ID=RATIO,Number=A,Type=String,Description="Ratio of mutation to reference.">`,
	`##INFO=<ID=MINCOV,Number=A,Type=String,Description="Minimum k-mer coverage of alternative allele.">`,
	`##INFO=<ID=REMOVED,Number=A,Type=String,Description="Number of removed bases.">`,
	`##INFO=<ID=ADDED,Number=A,Type=String,Description="Number of added bases.">`,
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
}

// VCFWriter writes variants as VCF 4.1 records with forward-strand alleles.
// Reference paths and rows read back from flat reports are skipped.
type VCFWriter struct {
	w *bufio.Writer

	// Junction keeps records whose target spans an exon junction ("::").
	Junction bool
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer) *VCFWriter {
	return &VCFWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the meta-information lines and the column header.
func (vw *VCFWriter) WriteHeader() error {
	for _, line := range vcfHeader {
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes a VCF record for v, if it has one.
func (vw *VCFWriter) Write(v *normalize.Variant) error {
	if v.NoVariant || v.Flat {
		return nil
	}

	ref, alt := v.Ref, v.Alt
	if v.Strand == reference.StrandMinus {
		ref = dna.ReverseComplement(ref)
		alt = dna.ReverseComplement(alt)
	}

	typ, target := v.Type, v.Query
	if t, exons, ok := strings.Cut(v.Type, "/"); ok {
		typ, target = t, exons
	}
	if strings.Contains(target, "::") && !vw.Junction {
		return nil
	}

	info := "TYPE=" + typ +
		";TARGET=" + target +
		";RATIO=" + v.Ratio +
		";MINCOV=" + v.MinCoverage +
		";REMOVED=" + v.Removed +
		";ADDED=" + v.Added

	values := []string{
		v.Chrom,
		strconv.FormatInt(v.Pos, 10),
		".",
		ref,
		alt,
		".",
		".",
		info,
	}
	_, err := vw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}
