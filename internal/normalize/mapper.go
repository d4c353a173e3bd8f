package normalize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kmtools/km-report/internal/record"
	"github.com/kmtools/km-report/internal/reference"
)

// UnknownPosition replaces every coordinate when the reference carries no
// strand information.
const UnknownPosition int64 = -12

// Window is the genomic coordinate of every base of a record's reference
// sequence, together with the labelling context taken from the type tag.
type Window struct {
	Chrom     string
	Strand    reference.Strand
	Positions []int64

	// Name is the type tag without exon suffix or fusion prefix.
	Name string
	// FusionPrefix is "Fusion-" when the tag named a fusion, otherwise empty.
	FusionPrefix string
	// ExonSuffix is "/<exon>::<exon>..." in fusion mode, otherwise empty.
	ExonSuffix string

	PositionUnknown bool
}

// At returns the genomic coordinate of reference index i.
func (w *Window) At(i int) (int64, error) {
	if i < 0 || i >= len(w.Positions) {
		return 0, fmt.Errorf("%w: index %d, window has %d positions", ErrOutOfWindow, i, len(w.Positions))
	}
	return w.Positions[i], nil
}

// Mapper resolves record coordinates against a reference index.
type Mapper struct {
	idx *reference.Index
}

// NewMapper creates a mapper over idx.
func NewMapper(idx *reference.Index) *Mapper {
	return &Mapper{idx: idx}
}

// Resolve builds the coordinate window of rec.
func (m *Mapper) Resolve(rec *record.RawUpstreamRecord, mode record.Mode) (*Window, error) {
	var (
		w   *Window
		err error
	)
	if mode == record.ModeFusion {
		w, err = m.resolveFusion(rec)
	} else {
		w, err = m.resolveMutation(rec)
	}
	if err != nil {
		return nil, err
	}
	if len(w.Positions) < len(rec.RefSequence) {
		return nil, fmt.Errorf("%w: %d positions for %d reference bases", ErrShortWindow, len(w.Positions), len(rec.RefSequence))
	}
	return w, nil
}

func (m *Mapper) resolveMutation(rec *record.RawUpstreamRecord) (*Window, error) {
	if !m.idx.Pooled {
		return nil, fmt.Errorf("%w: reference has exon entries, expected a mutation reference", ErrModeMismatch)
	}
	w := &Window{
		Chrom:     m.idx.Chrom,
		Strand:    m.idx.Strand,
		Name:      rec.Type,
		Positions: slices.Clone(m.idx.AllPositions),
	}
	switch m.idx.Strand {
	case reference.StrandUnknown:
		for i := range w.Positions {
			w.Positions[i] = UnknownPosition
		}
		w.PositionUnknown = true
	case reference.StrandMinus:
		slices.Reverse(w.Positions)
	}
	return w, nil
}

func (m *Mapper) resolveFusion(rec *record.RawUpstreamRecord) (*Window, error) {
	name, exonList, ok := strings.Cut(rec.Type, "/")
	if !ok || strings.Contains(exonList, "/") {
		return nil, fmt.Errorf("%w: type %q has no exon list", ErrExonList, rec.Type)
	}

	w := &Window{
		Chrom:  m.idx.Chrom,
		Strand: m.idx.Strand,
		Name:   name,
	}
	if strings.Contains(name, "Fusion") {
		w.FusionPrefix = "Fusion-"
		w.Name = strings.Replace(name, "Fusion-", "", 1)
	}

	keys, err := ExpandExons(exonList)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		entry, ok := m.idx.Exon(key)
		if !ok {
			return nil, fmt.Errorf("%w: exon %q not in reference", ErrExonList, key)
		}
		positions := slices.Clone(entry.Positions)
		if m.idx.Strand == reference.StrandMinus {
			slices.Reverse(positions)
		}
		w.Positions = append(w.Positions, positions...)
	}

	off := rec.StartOffset
	if off < 0 || off > len(w.Positions) {
		return nil, fmt.Errorf("%w: offset %d, window has %d positions", ErrStartOffset, off, len(w.Positions))
	}
	w.Positions = w.Positions[off:]
	w.ExonSuffix = "/" + strings.Join(keys, "::")
	return w, nil
}

// ExpandExons expands an exon list such as "NPM1e11-12::ALKe20" into the
// reference keys NPM1e11, NPM1e12 and ALKe20.
func ExpandExons(list string) ([]string, error) {
	if list == "" {
		return nil, fmt.Errorf("%w: empty exon list", ErrExonList)
	}
	var keys []string
	for _, group := range strings.Split(list, "::") {
		i := strings.LastIndexByte(group, 'e')
		if i <= 0 || i == len(group)-1 {
			return nil, fmt.Errorf("%w: malformed exon group %q", ErrExonList, group)
		}
		gene := group[:i]
		for _, n := range strings.Split(group[i+1:], "-") {
			if n == "" {
				return nil, fmt.Errorf("%w: malformed exon group %q", ErrExonList, group)
			}
			keys = append(keys, gene+"e"+n)
		}
	}
	return keys, nil
}
