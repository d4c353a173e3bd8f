package reference

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
)

// Loader parses an annotated target FASTA file into an Index.
//
// Header lines look like:
//
//	>chr4:55561678-55603446|name=KIT|n=11|strand=+|cigar=123M4567N89M
//
// The first pipe-delimited segment is the location; the rest are key=value
// attributes. strand and cigar are optional.
type Loader struct {
	path   string
	logger *zap.Logger
}

// NewLoader creates a loader for the reference file at path.
func NewLoader(path string) *Loader {
	return &Loader{
		path:   path,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger used for attribute and accuracy warnings.
func (l *Loader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Load opens the reference file and indexes it. Gzipped files are detected
// by their magic bytes.
func (l *Loader) Load() (*Index, error) {
	if l.path == "" {
		return nil, ErrEmptyReference
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open reference file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, _ := br.Peek(2)
	var reader io.Reader = br
	if bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return l.Parse(reader)
}

// Parse indexes reference content read from r.
func (l *Loader) Parse(r io.Reader) (*Index, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	var (
		entries  []*Entry
		current  *Entry
		seq      strings.Builder
		attrKeys []string
	)

	flush := func() {
		if current != nil {
			current.Sequence = seq.String()
			seq.Reset()
		}
	}

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line[0] != '>' {
			if current == nil {
				return nil, fmt.Errorf("line %d: sequence before first header: %w", lineNumber, ErrBadLocation)
			}
			seq.WriteString(line)
			continue
		}

		flush()
		e, err := l.parseHeader(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}

		keys := sortedKeys(e.Attributes)
		if attrKeys == nil {
			attrKeys = keys
			l.logger.Info("found reference attributes", zap.Strings("keys", keys))
		} else if !equalKeys(attrKeys, keys) {
			return nil, fmt.Errorf("line %d: %w: %s vs %s", lineNumber, ErrAttributeMismatch,
				strings.Join(attrKeys, "|"), strings.Join(keys, "|"))
		}

		entries = append(entries, e)
		current = e
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan reference: %w", err)
	}
	flush()

	if len(entries) == 0 {
		return nil, ErrEmptyReference
	}

	return buildIndex(entries, attrKeys)
}

// parseHeader decodes a header line into an Entry with its genomic positions.
func (l *Loader) parseHeader(line string) (*Entry, error) {
	segments := strings.Split(strings.TrimPrefix(line, ">"), "|")

	loc := strings.TrimSpace(segments[0])
	if i := strings.IndexByte(loc, ' '); i >= 0 {
		loc = loc[:i]
	}
	if i := strings.LastIndexByte(loc, '='); i >= 0 {
		loc = loc[i+1:]
	}
	chrom, start, stop, err := parseLocation(loc)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]string, len(segments))
	attrs["location"] = loc
	for _, seg := range segments[1:] {
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadAttribute, seg)
		}
		attrs[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	e := &Entry{
		Name:       attrs["name"],
		Exon:       attrs["n"],
		Location:   loc,
		Chrom:      chrom,
		Start:      start,
		Stop:       stop,
		Attributes: attrs,
	}

	strand, hasStrand := attrs["strand"]
	cigar, hasCigar := attrs["cigar"]
	if hasStrand && hasCigar {
		e.Strand, err = ParseStrand(strand)
		if err != nil {
			return nil, err
		}
		e.Cigar = cigar
		e.Mask, err = cigarMask(cigar, e.Strand)
		if err != nil {
			return nil, err
		}
		e.Positions, err = maskPositions(start, stop, e.Mask)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		return e, nil
	}

	l.logger.Warn("strand and/or cigar not found, location might not be accurate",
		zap.String("location", loc))
	e.Positions = fullPositions(start, stop)
	e.Mask = make([]bool, len(e.Positions))
	for i := range e.Mask {
		e.Mask[i] = true
	}
	return e, nil
}

// parseLocation parses a chr<c>:<start>-<stop> token.
func parseLocation(loc string) (chrom string, start, stop int64, err error) {
	if !strings.Contains(loc, "chr") || !strings.Contains(loc, ":") || !strings.Contains(loc, "-") {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrBadLocation, loc)
	}
	chrom, span, _ := strings.Cut(loc, ":")
	startStr, stopStr, _ := strings.Cut(span, "-")
	start, err1 := strconv.ParseInt(startStr, 10, 64)
	stop, err2 := strconv.ParseInt(stopStr, 10, 64)
	if err1 != nil || err2 != nil || stop < start {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrBadLocation, loc)
	}
	return chrom, start, stop, nil
}

// buildIndex checks the single-contig invariant and assembles the Index.
func buildIndex(entries []*Entry, attrKeys []string) (*Index, error) {
	idx := &Index{
		Chrom:      entries[0].Chrom,
		Strand:     entries[0].Strand,
		Attributes: attrKeys,
		Entries:    entries,
		exons:      make(map[string]*Entry),
	}

	var all strings.Builder
	for _, e := range entries {
		if e.Chrom != idx.Chrom {
			return nil, fmt.Errorf("%w: %s and %s", ErrMultipleChromosomes, idx.Chrom, e.Chrom)
		}
		if e.Strand != idx.Strand {
			return nil, fmt.Errorf("%w: %s and %s", ErrMultipleStrands, idx.Strand, e.Strand)
		}
		if key := e.Key(); key != "" {
			idx.exons[key] = e
		}
		idx.AllPositions = append(idx.AllPositions, e.Positions...)
		all.WriteString(e.Sequence)
	}
	idx.AllSequence = all.String()
	idx.Pooled = len(idx.exons) == 0

	return idx, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
