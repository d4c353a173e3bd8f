package normalize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmtools/km-report/internal/record"
	"github.com/kmtools/km-report/internal/reference"
)

const mutationRef = "ACGTACGTACG"

func loadIndex(t *testing.T, fasta string) *reference.Index {
	t.Helper()
	idx, err := reference.NewLoader("").Parse(strings.NewReader(fasta))
	require.NoError(t, err)
	return idx
}

func upstream(typ, variant, ref, alt string, off int) *record.RawUpstreamRecord {
	return &record.RawUpstreamRecord{
		Sample:        "s1",
		Query:         "q1",
		Type:          typ,
		Variant:       variant,
		Ratio:         "0.25",
		AltExpression: "12.0",
		MinCoverage:   20,
		StartOffset:   off,
		AltSequence:   alt,
		RefRatio:      "0.75",
		RefExpression: "36.0",
		RefSequence:   ref,
		Info:          "vs_ref",
		LastColumn:    "vs_ref",
		LineNumber:    4,
	}
}

func normalizeMutation(t *testing.T, fasta string, rec *record.RawUpstreamRecord) (*Variant, error) {
	t.Helper()
	w, err := NewMapper(loadIndex(t, fasta)).Resolve(rec, record.ModeMutation)
	require.NoError(t, err)
	return NewNormalizer(DefaultThresholds).Normalize(rec, w)
}

func TestNormalize_OneBaseInsertion(t *testing.T) {
	rec := upstream("Insertion", "5:ac/aac:7", mutationRef, "ACGTAACGTACG", 0)
	v, err := normalizeMutation(t, ">chr1:100-110|strand=+|cigar=11M\n"+mutationRef+"\n", rec)
	require.NoError(t, err)

	assert.Equal(t, KindInsertion, v.Kind)
	assert.Equal(t, "Insertion", v.Type)
	assert.Equal(t, "0", v.Removed)
	assert.Equal(t, "1", v.Added)
	assert.Equal(t, int64(103), v.Pos)
	assert.Equal(t, "TAC", v.Ref)
	assert.Equal(t, "TAAC", v.Alt)
	assert.Equal(t, "chr1:104-105", v.Region)
	assert.Equal(t, "chr1:104", v.Location)
	assert.Equal(t, "ac/aac", v.Mod)
	assert.Equal(t, "Insertion/q1", v.Key)
	assert.Equal(t, "12.0", v.Abnormal)
	assert.Equal(t, "36.0", v.Normal)
	assert.Equal(t, "20", v.MinCoverage)
	assert.False(t, v.NoVariant)
}

func TestNormalize_Idempotent(t *testing.T) {
	tests := []struct {
		name    string
		start   int64 // first genomic position of the reference
		typ     string
		variant string
		ref     string
		alt     string
	}{
		{"insertion", 100, "Insertion", "5:ac/aac:7", mutationRef, "ACGTAACGTACG"},
		{"deletion", 201, "Deletion", "5:ac/:7", "GGACACTT", "GGACTT"},
		{"tandem duplication", 1000, "ITD", "7:/gtgt:7", "CCAAGTCCAA", "CCAAGTCGTGTCAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop := tt.start + int64(len(tt.ref)) - 1
			fasta := fmt.Sprintf(">chr1:%d-%d|strand=+|cigar=%dM\n%s\n", tt.start, stop, len(tt.ref), tt.ref)

			first, err := normalizeMutation(t, fasta, upstream(tt.typ, tt.variant, tt.ref, tt.alt, 0))
			require.NoError(t, err)

			// Feed the normalized call back in as an edit at its anchor.
			i := first.Pos - tt.start + 1
			edit := fmt.Sprintf("%d:%s/%s:%d", i, first.Ref, first.Alt, i+int64(len(first.Ref)))
			second, err := normalizeMutation(t, fasta, upstream(tt.typ, edit, tt.ref, tt.alt, 0))
			require.NoError(t, err)

			assert.Equal(t, first.Ref, second.Ref)
			assert.Equal(t, first.Alt, second.Alt)
			assert.Equal(t, first.Pos, second.Pos)
			assert.Equal(t, first.Kind, second.Kind)
			assert.Equal(t, first.Region, second.Region)
		})
	}
}

func TestNormalize_TandemDuplication(t *testing.T) {
	ref := "CCAAGTCCAA"
	rec := upstream("ITD", "7:/gtgt:7", ref, "CCAAGTCGTGTCAA", 0)
	v, err := normalizeMutation(t, ">chr2:1000-1009|strand=+|cigar=10M\n"+ref+"\n", rec)
	require.NoError(t, err)

	assert.Equal(t, KindITD, v.Kind)
	assert.Equal(t, "ITD", v.Type)
	assert.Equal(t, "4 | 1", v.Added)
	assert.Equal(t, "CC", v.Ref)
	assert.Equal(t, "CGTGTC", v.Alt)
	assert.Equal(t, int64(1006), v.Pos)
	assert.Equal(t, "chr2:1006-1007", v.Region)
	assert.Equal(t, "chr2:1006", v.Location)
}

func TestNormalize_Deletion(t *testing.T) {
	ref := "GGACACTT"
	rec := upstream("Deletion", "5:ac/:7", ref, "GGACTT", 0)

	t.Run("plus strand", func(t *testing.T) {
		v, err := normalizeMutation(t, ">chr1:201-208|strand=+|cigar=8M\n"+ref+"\n", rec)
		require.NoError(t, err)
		assert.Equal(t, KindDeletion, v.Kind)
		assert.Equal(t, "GACACT", v.Ref)
		assert.Equal(t, "GACT", v.Alt)
		assert.Equal(t, int64(202), v.Pos)
		assert.Equal(t, "chr1:205-207", v.Region)
		assert.Equal(t, "chr1:205", v.Location)
		assert.Equal(t, "2", v.Removed)
		assert.Equal(t, "0", v.Added)
	})

	t.Run("minus strand", func(t *testing.T) {
		v, err := normalizeMutation(t, ">chr1:201-208|strand=-|cigar=8M\n"+ref+"\n", rec)
		require.NoError(t, err)
		assert.Equal(t, reference.StrandMinus, v.Strand)
		assert.Equal(t, "GACACT", v.Ref)
		assert.Equal(t, int64(202), v.Pos)
		assert.Equal(t, "chr1:203-205", v.Region)
		assert.Equal(t, "chr1:203", v.Location)
	})
}

func TestNormalize_SubstitutionAndIndel(t *testing.T) {
	fasta := ">chr1:100-110|strand=+|cigar=11M\n" + mutationRef + "\n"

	v, err := normalizeMutation(t, fasta, upstream("Substitution", "3:g/t:4", mutationRef, "ACTTACGTACG", 0))
	require.NoError(t, err)
	assert.Equal(t, KindSubstitution, v.Kind)
	assert.Equal(t, "G", v.Ref)
	assert.Equal(t, "T", v.Alt)
	assert.Equal(t, int64(102), v.Pos)
	assert.Equal(t, "chr1:102-103", v.Region)

	v, err = normalizeMutation(t, fasta, upstream("Indel", "5:ac/g:7", mutationRef, "ACGTGGTACG", 0))
	require.NoError(t, err)
	assert.Equal(t, KindIndel, v.Kind)
	assert.Equal(t, "TACG", v.Ref)
	assert.Equal(t, "TGG", v.Alt)
	assert.Equal(t, int64(103), v.Pos)
	assert.Equal(t, "chr1:104-106", v.Region)
}

func TestNormalize_Reference(t *testing.T) {
	for _, strand := range []string{"+", "-"} {
		t.Run(strand, func(t *testing.T) {
			fasta := ">chr1:100-110|strand=" + strand + "|cigar=11M\n" + mutationRef + "\n"
			v, err := normalizeMutation(t, fasta, upstream("Reference", "", mutationRef, mutationRef, 0))
			require.NoError(t, err)

			assert.True(t, v.NoVariant)
			assert.Equal(t, KindReference, v.Kind)
			assert.Equal(t, "Reference", v.Type)
			assert.Equal(t, "chr1:100-110", v.Region)
			assert.Equal(t, "-", v.Location)
			assert.Equal(t, "-", v.Mod)
			assert.Equal(t, "0", v.Removed)
			assert.Equal(t, "0", v.Added)
			assert.Equal(t, "0.0", v.Abnormal)
			assert.Equal(t, "12.0", v.Normal)
			assert.Equal(t, "Reference/q1", v.Key)
		})
	}
}

func TestNormalize_UnknownStrand(t *testing.T) {
	rec := upstream("Substitution", "3:g/t:4", mutationRef, "ACTTACGTACG", 0)
	v, err := normalizeMutation(t, ">chr1:100-110\n"+mutationRef+"\n", rec)
	require.NoError(t, err)

	assert.True(t, v.PositionUnknown)
	assert.Equal(t, UnknownPosition+1, v.Pos)
}

func TestNormalize_Errors(t *testing.T) {
	fasta := ">chr1:100-110|strand=+|cigar=11M\n" + mutationRef + "\n"
	tests := []struct {
		name    string
		rec     *record.RawUpstreamRecord
		wantErr error
	}{
		{"unknown type", upstream("Translocation", "3:g/t:4", mutationRef, "", 0), ErrUnknownType},
		{"bad edit", upstream("Insertion", "garbage", mutationRef, "", 0), ErrBadEdit},
		{"insertion before the window", upstream("Insertion", "1:/a:1", mutationRef, "", 0), ErrOutOfWindow},
		{"indel without right flank", upstream("Indel", "10:cg/t:12", mutationRef, "", 0), ErrOutOfWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeMutation(t, fasta, tt.rec)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClassifyInsertion(t *testing.T) {
	n := NewNormalizer(DefaultThresholds)
	tests := []struct {
		name string
		ins  string
		alt  string
		pos  int
		want Kind
	}{
		{"doubled unit after one copy", "GTGT", "AAGT", 4, KindITD},
		{"doubled unit at window start", "GTGT", "GTGTGT", 2, KindITD},
		{"exact copy of upstream", "GTC", "AAGTC", 5, KindITD},
		{"mostly matching upstream", "GTCA", "AAGTCT", 6, KindInsertionAmbiguous},
		{"unrelated upstream", "GTCA", "AACAGG", 6, KindInsertion},
		{"too short", "GT", "GTGT", 2, KindInsertion},
		{"upstream before sequence start", "GTCA", "GT", 2, KindInsertion},
		{"position past sequence end", "GTC", "GTC", 9, KindInsertion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.classifyInsertion(tt.ins, tt.alt, tt.pos))
		})
	}
}

func TestClassifyInsertion_Thresholds(t *testing.T) {
	strict := NewNormalizer(Thresholds{MinDuplicationLength: 5, IdentityCutoff: 0.9})
	assert.Equal(t, KindInsertion, strict.classifyInsertion("GTGT", "AAGT", 4))
	assert.Equal(t, KindInsertion, strict.classifyInsertion("GTCAA", "GTCAT", 5))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "I&I", KindInsertionAmbiguous.String())
	assert.Equal(t, "Reference", KindReference.String())
	assert.Equal(t, "Unknown", Kind(42).String())
}
