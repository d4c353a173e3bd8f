package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kmtools/km-report/internal/dna"
	"github.com/kmtools/km-report/internal/record"
	"github.com/kmtools/km-report/internal/reference"
)

var (
	ErrExonList     = errors.New("exon list does not resolve against the reference")
	ErrStartOffset  = errors.New("start offset outside the exon window")
	ErrShortWindow  = errors.New("reference window shorter than reference sequence")
	ErrModeMismatch = errors.New("reference layout does not match record mode")
	ErrBadEdit      = errors.New("malformed variant edit")
	ErrOutOfWindow  = errors.New("variant index outside the reference window")
	ErrUnknownType  = errors.New("unknown variant type")
)

// Thresholds tune insertion classification.
type Thresholds struct {
	// MinDuplicationLength is the shortest insertion considered for ITD or I&I.
	MinDuplicationLength int
	// IdentityCutoff is the fraction of matching bases between the repeat
	// unit and the upstream sequence above which an insertion is I&I.
	IdentityCutoff float64
}

// DefaultThresholds are used when no other thresholds are configured.
var DefaultThresholds = Thresholds{
	MinDuplicationLength: 3,
	IdentityCutoff:       0.5,
}

var editTypes = map[string]bool{
	"Insertion":    true,
	"Deletion":     true,
	"Substitution": true,
	"Indel":        true,
	"ITD":          true,
	"I&I":          true,
}

// Normalizer turns resolved records into normalized variants.
type Normalizer struct {
	thresholds Thresholds
}

// NewNormalizer creates a normalizer with the given thresholds.
func NewNormalizer(t Thresholds) *Normalizer {
	return &Normalizer{thresholds: t}
}

// Normalize classifies and anchors rec within w.
func (n *Normalizer) Normalize(rec *record.RawUpstreamRecord, w *Window) (*Variant, error) {
	v := &Variant{
		Sample:          rec.Sample,
		Query:           rec.Query,
		Key:             KeyName(rec.Type, rec.Query),
		Chrom:           w.Chrom,
		Strand:          w.Strand,
		Ratio:           rec.Ratio,
		MinCoverage:     strconv.Itoa(rec.MinCoverage),
		PositionUnknown: w.PositionUnknown,
	}

	if w.Name == "Reference" || w.Name == "Fusion" {
		return n.reference(v, rec, w)
	}
	if !editTypes[w.Name] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Name)
	}

	raw, err := ParseEdit(rec.Variant)
	if err != nil {
		return nil, err
	}
	e := raw.Trim()

	v.Removed = strconv.Itoa(len(e.Deleted))
	v.Added = strconv.Itoa(len(e.Inserted))
	v.Abnormal = rec.AltExpression
	v.Normal = rec.RefExpression
	v.Info = rec.Info
	v.AltSequence = rec.AltSequence
	v.RefSequence = rec.RefSequence
	if _, mod, ok := strings.Cut(rec.Variant, ":"); ok {
		v.Mod, _, _ = strings.Cut(mod, ":")
	}

	c := &call{
		w:    w,
		ref:  strings.ToUpper(rec.RefSequence),
		alt:  strings.ToUpper(rec.AltSequence),
		edit: e,
		pos:  e.Start - 1 - rec.StartOffset,
		end:  e.Stop - 2 - rec.StartOffset,
	}

	switch {
	case e.IsInsertion():
		err = n.insertion(v, c)
	case e.IsDeletion():
		err = c.deletion(v)
	case len(e.Deleted) == len(e.Inserted) && w.Name == "Substitution":
		err = c.substitution(v)
	default:
		err = c.indel(v)
	}
	if err != nil {
		return nil, err
	}
	v.Type = w.FusionPrefix + v.Kind.String() + w.ExonSuffix
	return v, nil
}

// KeyName is the table key for an upstream type tag and query.
func KeyName(tag, query string) string {
	if strings.Contains(tag, "/") {
		return tag
	}
	return tag + "/" + query
}

func (n *Normalizer) reference(v *Variant, rec *record.RawUpstreamRecord, w *Window) (*Variant, error) {
	if len(w.Positions) == 0 {
		return nil, fmt.Errorf("%w: empty window", ErrShortWindow)
	}
	first, last := w.Positions[0], w.Positions[len(w.Positions)-1]
	// Regions are written low-high on both strands.
	if w.Strand == reference.StrandMinus {
		first, last = last, first
	}
	v.NoVariant = true
	v.Kind = KindReference
	v.Type = w.Name + w.ExonSuffix
	v.Region = fmt.Sprintf("%s:%d-%d", w.Chrom, first, last)
	v.Location = "-"
	v.Mod = "-"
	v.Removed = "0"
	v.Added = "0"
	v.Abnormal = "0.0"
	v.Normal = rec.AltExpression
	v.Info = rec.LastColumn
	return v, nil
}

// call carries the working state of one edit.
type call struct {
	w        *Window
	ref, alt string
	edit     Edit
	pos, end int
}

// span maps the edit bounds to genomic coordinates.
func (c *call) span() (startPos, endPos int64, err error) {
	a, err := c.w.At(c.pos - 1)
	if err != nil {
		return 0, 0, err
	}
	b, err := c.w.At(c.end - 1)
	if err != nil {
		return 0, 0, err
	}
	if c.w.Strand == reference.StrandMinus {
		return b - 1, a - 1, nil
	}
	return a + 1, b + 1, nil
}

func (c *call) setRegion(v *Variant, startPos, endPos int64) {
	v.Region = fmt.Sprintf("%s:%d-%d", c.w.Chrom, startPos, endPos+1)
}

func (n *Normalizer) insertion(v *Variant, c *call) error {
	ins := c.edit.Inserted
	before, bi, ok := extendRepeat(ins, c.pos+1, c.ref)
	if !ok {
		return fmt.Errorf("%w: insertion at %d", ErrOutOfWindow, c.pos)
	}
	after, ai, ok := extendRepeat(dna.Reverse(ins), len(c.ref)-c.pos-1, dna.Reverse(c.ref))
	if !ok {
		return fmt.Errorf("%w: insertion at %d", ErrOutOfWindow, c.pos)
	}
	after = dna.Reverse(after)
	ai = len(c.ref) - ai - 1

	v.Ref = before + after
	v.Alt = before + ins + after
	anchor := bi
	if c.w.Strand == reference.StrandMinus {
		anchor = ai
	}
	pos, err := c.w.At(anchor)
	if err != nil {
		return err
	}
	v.Pos = pos

	c.end++
	startPos, endPos, err := c.span()
	if err != nil {
		return err
	}
	c.setRegion(v, startPos, endPos)
	v.Location = fmt.Sprintf("%s:%d", c.w.Chrom, endPos)

	v.Kind = n.classifyInsertion(ins, c.alt, c.pos)
	if v.Kind != KindInsertion {
		v.Added += " | " + strconv.FormatInt(endPos-startPos+1, 10)
	}
	return nil
}

// classifyInsertion separates tandem duplications and imperfect duplications
// from plain insertions by comparing the insertion with the alternate
// sequence just before it.
func (n *Normalizer) classifyInsertion(ins, alt string, pos int) Kind {
	if len(ins) < n.thresholds.MinDuplicationLength {
		return KindInsertion
	}
	unit := repeatUnit(ins)
	if pos-len(unit) < 0 || pos > len(alt) {
		return KindInsertion
	}
	upstream := alt[pos-len(unit) : pos]
	if ins == upstream || ins == upstream+upstream {
		return KindITD
	}
	if identity(unit, upstream) > n.thresholds.IdentityCutoff {
		return KindInsertionAmbiguous
	}
	return KindInsertion
}

// repeatUnit returns the first half of s when s is two identical halves.
func repeatUnit(s string) string {
	h := len(s) / 2
	if h > 0 && len(s)%2 == 0 && s[:h] == s[h:] {
		return s[:h]
	}
	return s
}

// identity is the fraction of positions at which a and b agree.
func identity(a, b string) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	same := 0
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}

func (c *call) deletion(v *Variant) error {
	del := c.edit.Deleted
	startPos, endPos, err := c.span()
	if err != nil {
		return err
	}
	c.setRegion(v, startPos, endPos)
	v.Location = fmt.Sprintf("%s:%d", c.w.Chrom, startPos)

	before, bi, ok := extendRepeat(del, c.pos, c.ref)
	if !ok {
		return fmt.Errorf("%w: deletion at %d", ErrOutOfWindow, c.pos)
	}
	after, ai, ok := extendRepeat(dna.Reverse(del), len(c.ref)-c.pos-len(del), dna.Reverse(c.ref))
	if !ok {
		return fmt.Errorf("%w: deletion at %d", ErrOutOfWindow, c.pos)
	}
	after = dna.Reverse(after)
	ai = len(c.ref) - ai - 1

	v.Kind = KindDeletion
	v.Ref = before + del + after
	v.Alt = before + after
	anchor := bi
	if c.w.Strand == reference.StrandMinus {
		anchor = ai
	}
	v.Pos, err = c.w.At(anchor)
	return err
}

func (c *call) substitution(v *Variant) error {
	startPos, endPos, err := c.span()
	if err != nil {
		return err
	}
	c.setRegion(v, startPos, endPos)
	v.Location = fmt.Sprintf("%s:%d", c.w.Chrom, startPos)
	v.Kind = KindSubstitution
	v.Ref = c.edit.Deleted
	v.Alt = c.edit.Inserted
	v.Pos = startPos
	return nil
}

func (c *call) indel(v *Variant) error {
	startPos, endPos, err := c.span()
	if err != nil {
		return err
	}
	if c.pos-1 < 0 || c.end+1 >= len(c.ref) {
		return fmt.Errorf("%w: indel flanks at %d and %d", ErrOutOfWindow, c.pos-1, c.end+1)
	}
	c.setRegion(v, startPos, endPos)
	v.Location = fmt.Sprintf("%s:%d", c.w.Chrom, startPos)
	left, right := c.ref[c.pos-1:c.pos], c.ref[c.end+1:c.end+2]
	v.Kind = KindIndel
	v.Ref = left + c.edit.Deleted + right
	v.Alt = left + c.edit.Inserted + right
	v.Pos = startPos - 1
	return nil
}
