package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmtools/km-report/internal/record"
)

const fusionRef = `>chr5:100-104|name=NPM1|n=11|strand=+|cigar=5M
ACGTA
>chr5:200-204|name=NPM1|n=12|strand=+|cigar=5M
CCGGT
`

func TestResolve_Fusion(t *testing.T) {
	m := NewMapper(loadIndex(t, fusionRef))

	w, err := m.Resolve(upstream("Reference/NPM1e11-12", "", "GTACCGGT", "", 2), record.ModeFusion)
	require.NoError(t, err)

	assert.Equal(t, []int64{102, 103, 104, 200, 201, 202, 203, 204}, w.Positions)
	assert.Equal(t, "Reference", w.Name)
	assert.Equal(t, "", w.FusionPrefix)
	assert.Equal(t, "/NPM1e11::NPM1e12", w.ExonSuffix)
}

func TestResolve_FusionMinusStrandReversesEachExon(t *testing.T) {
	ref := `>chr5:100-102|name=G|n=1|strand=-|cigar=3M
AAA
>chr5:200-202|name=G|n=2|strand=-|cigar=3M
CCC
`
	w, err := NewMapper(loadIndex(t, ref)).Resolve(upstream("Reference/Ge1-2", "", "", "", 0), record.ModeFusion)
	require.NoError(t, err)
	assert.Equal(t, []int64{102, 101, 100, 202, 201, 200}, w.Positions)
}

func TestResolve_FusionErrors(t *testing.T) {
	m := NewMapper(loadIndex(t, fusionRef))
	tests := []struct {
		name    string
		rec     *record.RawUpstreamRecord
		wantErr error
	}{
		{"missing exon list", upstream("Deletion", "5:ac/:7", "", "", 0), ErrExonList},
		{"empty exon list", upstream("Deletion/", "5:ac/:7", "", "", 0), ErrExonList},
		{"unknown exon", upstream("Deletion/NPM1e11-13", "5:ac/:7", "", "", 0), ErrExonList},
		{"malformed group", upstream("Deletion/NPM1", "5:ac/:7", "", "", 0), ErrExonList},
		{"offset past window", upstream("Deletion/NPM1e11", "5:ac/:7", "", "", 6), ErrStartOffset},
		{"negative offset", upstream("Deletion/NPM1e11", "5:ac/:7", "", "", -1), ErrStartOffset},
		{"window shorter than sequence", upstream("Deletion/NPM1e11", "5:ac/:7", "ACGTAC", "", 0), ErrShortWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Resolve(tt.rec, record.ModeFusion)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolve_ModeMismatch(t *testing.T) {
	m := NewMapper(loadIndex(t, fusionRef))
	_, err := m.Resolve(upstream("Deletion", "5:ac/:7", "", "", 0), record.ModeMutation)
	assert.ErrorIs(t, err, ErrModeMismatch)
}

func TestResolve_MutationMonotonic(t *testing.T) {
	for _, tt := range []struct {
		strand     string
		increasing bool
	}{{"+", true}, {"-", false}} {
		t.Run(tt.strand, func(t *testing.T) {
			fasta := ">chr1:10-19|strand=" + tt.strand + "|cigar=3M4N3M\nAAAAAA\n>chr1:30-33|strand=" + tt.strand + "|cigar=4M\nCCCC\n"
			w, err := NewMapper(loadIndex(t, fasta)).Resolve(upstream("Insertion", "", "", "", 0), record.ModeMutation)
			require.NoError(t, err)
			require.Len(t, w.Positions, 10)
			for i := 1; i < len(w.Positions); i++ {
				if tt.increasing {
					assert.GreaterOrEqual(t, w.Positions[i], w.Positions[i-1])
				} else {
					assert.LessOrEqual(t, w.Positions[i], w.Positions[i-1])
				}
			}
		})
	}
}

func TestNormalize_FusionLabels(t *testing.T) {
	m := NewMapper(loadIndex(t, fusionRef))
	n := NewNormalizer(DefaultThresholds)

	rec := upstream("Fusion/NPM1e11::NPM1e12", "", "ACGTACCGGT", "", 0)
	w, err := m.Resolve(rec, record.ModeFusion)
	require.NoError(t, err)
	v, err := n.Normalize(rec, w)
	require.NoError(t, err)
	assert.True(t, v.NoVariant)
	assert.Equal(t, "Fusion/NPM1e11::NPM1e12", v.Type)
	assert.Equal(t, "chr5:100-204", v.Region)
	assert.Equal(t, "Fusion/NPM1e11::NPM1e12", v.Key)

	rec = upstream("Fusion-Deletion/NPM1e11-12", "5:ac/:7", "ACGTACCGGT", "ACGTCGGT", 0)
	w, err = m.Resolve(rec, record.ModeFusion)
	require.NoError(t, err)
	v, err = n.Normalize(rec, w)
	require.NoError(t, err)
	assert.Equal(t, KindDeletion, v.Kind)
	assert.Equal(t, "Fusion-Deletion/NPM1e11::NPM1e12", v.Type)
	assert.Equal(t, "TACCG", v.Ref)
	assert.Equal(t, "TCG", v.Alt)
	assert.Equal(t, int64(103), v.Pos)
	assert.Equal(t, "chr5:104-106", v.Region)
}

func TestExpandExons(t *testing.T) {
	keys, err := ExpandExons("NPM1e11-12::ALKe20")
	require.NoError(t, err)
	assert.Equal(t, []string{"NPM1e11", "NPM1e12", "ALKe20"}, keys)

	keys, err = ExpandExons("GENEe1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GENEe1"}, keys)

	for _, bad := range []string{"", "NPM1", "NPM1e", "e11", "NPM1e11-"} {
		_, err := ExpandExons(bad)
		assert.ErrorIs(t, err, ErrExonList, bad)
	}
}
