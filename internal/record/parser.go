package record

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// Options controls record filtering.
type Options struct {
	// MinCoverage drops upstream records whose minimum k-mer coverage is lower.
	MinCoverage int
	// Info drops lines that do not match. A nil pattern keeps everything.
	Info *regexp.Regexp
	// HasReference must be set when a reference file was loaded; upstream
	// records cannot be placed on the genome without one.
	HasReference bool
}

// Dropped counts lines that were filtered out rather than returned.
type Dropped struct {
	Info     int // failed the info pattern
	Coverage int // below the minimum coverage
	Skipped  int // column header or non-record lines
}

// Parser reads records from a path-difference stream.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *pgzip.Reader
	lineNumber int
	mode       Mode
	layout     Layout
	opts       Options
	dropped    Dropped
}

// NewParser creates a parser for the given file. Use "-" for stdin.
// Gzipped input is detected by its magic bytes.
func NewParser(path string, opts Options) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin, opts)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}

	br := bufio.NewReader(file)
	p := &Parser{file: file, reader: br, opts: opts}

	magic, _ := br.Peek(2)
	if bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		p.gzipReader, err = pgzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader, opts Options) (*Parser, error) {
	return &Parser{
		reader: bufio.NewReader(r),
		opts:   opts,
	}, nil
}

// Next reads the next record that passes the filters.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (Record, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read record line: %w", err)
		}
		if err == io.EOF && line == "" {
			return nil, nil
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		if line[0] == '#' {
			if err := p.parseComment(line); err != nil {
				return nil, err
			}
			continue
		}

		if p.opts.Info != nil && !p.opts.Info.MatchString(line) {
			p.dropped.Info++
			continue
		}

		fields := strings.Split(line, "\t")

		if p.layout == LayoutFlat {
			if fields[0] == "Sample" {
				p.dropped.Skipped++
				continue
			}
			return p.parseFlat(fields)
		}

		if len(fields) <= 1 || fields[0] == "Database" {
			p.dropped.Skipped++
			continue
		}

		rec, err := p.parseUpstream(line, fields)
		if err != nil {
			return nil, err
		}
		if rec.MinCoverage < p.opts.MinCoverage {
			p.dropped.Coverage++
			continue
		}
		return rec, nil
	}
}

// parseComment handles a '#' line: it switches the stream to the upstream
// layout and picks up the search mode.
func (p *Parser) parseComment(line string) error {
	if !p.opts.HasReference {
		return &ParseError{Line: p.lineNumber, Message: ErrMissingReference.Error(), Err: ErrMissingReference}
	}
	p.layout = LayoutUpstream

	if value, ok := strings.CutPrefix(strings.TrimSpace(line), "#mode:"); ok {
		mode, err := ParseMode(value)
		if err != nil {
			return &ParseError{Line: p.lineNumber, Message: err.Error()}
		}
		p.mode = mode
	}
	return nil
}

// parseFlat maps a 16-column report line onto a RawFlatRecord.
func (p *Parser) parseFlat(f []string) (*RawFlatRecord, error) {
	if len(f) < FlatColumns {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected %d columns, found %d", FlatColumns, len(f)),
		}
	}
	return &RawFlatRecord{
		Sample:            f[0],
		Region:            f[1],
		Location:          f[2],
		Type:              f[3],
		Removed:           f[4],
		Added:             f[5],
		Abnormal:          f[6],
		Normal:            f[7],
		Ratio:             f[8],
		MinCoverage:       f[9],
		ExcluMinCov:       f[10],
		Variant:           f[11],
		Target:            f[12],
		Info:              f[13],
		VariantSequence:   f[14],
		ReferenceSequence: f[15],
		LineNumber:        p.lineNumber,
	}, nil
}

// parseUpstream maps a raw mutation-search line onto a RawUpstreamRecord.
func (p *Parser) parseUpstream(line string, f []string) (*RawUpstreamRecord, error) {
	if len(f) < UpstreamColumns {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", UpstreamColumns, len(f)),
		}
	}

	minCov, err := strconv.Atoi(f[6])
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid minimum coverage: %s", f[6]),
		}
	}
	startOff, err := strconv.Atoi(f[7])
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid start offset: %s", f[7]),
		}
	}

	return &RawUpstreamRecord{
		Sample:        f[0],
		Query:         f[1],
		Type:          f[2],
		Variant:       f[3],
		Ratio:         f[4],
		AltExpression: f[5],
		MinCoverage:   minCov,
		StartOffset:   startOff,
		AltSequence:   f[8],
		RefRatio:      f[9],
		RefExpression: f[10],
		RefSequence:   f[11],
		Info:          f[12],
		LastColumn:    f[len(f)-1],
		Line:          line,
		LineNumber:    p.lineNumber,
	}, nil
}

// Mode returns the search mode read from the stream headers so far.
func (p *Parser) Mode() Mode {
	return p.mode
}

// Dropped returns how many lines were filtered out so far.
func (p *Parser) Dropped() Dropped {
	return p.dropped
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
