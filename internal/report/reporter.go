// Package report drives records through coordinate resolution and
// normalization into a report writer.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kmtools/km-report/internal/duckdb"
	"github.com/kmtools/km-report/internal/kmer"
	"github.com/kmtools/km-report/internal/normalize"
	"github.com/kmtools/km-report/internal/output"
	"github.com/kmtools/km-report/internal/record"
	"github.com/kmtools/km-report/internal/reference"
)

// DefaultBatchSize is the number of calls buffered before they are handed to the sink.
const DefaultBatchSize = 1000

// RecordParser yields records and the mode declared by the stream.
type RecordParser interface {
	Next() (record.Record, error)
	Mode() record.Mode
}

// CoverageIndex returns the lowest k-mer count along a sequence.
type CoverageIndex interface {
	MinCoverage(seq string) (int64, error)
}

// Sink persists normalized calls.
type Sink interface {
	WriteCalls(calls []duckdb.Call) error
}

// Stats counts what a run produced.
type Stats struct {
	Records    int
	Variants   int
	References int
	Flat       int
	Stored     int
}

// Reporter turns parsed records into normalized variants.
type Reporter struct {
	mapper     *normalize.Mapper
	normalizer *normalize.Normalizer
	exclusion  CoverageIndex
	sink       Sink
	batch      []duckdb.Call
	batchSize  int
	stats      Stats
	logger     *zap.Logger
}

// NewReporter creates a reporter. idx may be nil when the input only holds
// flat report lines.
func NewReporter(idx *reference.Index, t normalize.Thresholds) *Reporter {
	r := &Reporter{
		normalizer: normalize.NewNormalizer(t),
		batchSize:  DefaultBatchSize,
		logger:     zap.NewNop(),
	}
	if idx != nil {
		r.mapper = normalize.NewMapper(idx)
	}
	return r
}

// SetLogger sets the logger for warning and info messages.
func (r *Reporter) SetLogger(l *zap.Logger) {
	r.logger = l
}

// SetExclusion configures the index used to recompute exclusive coverage.
func (r *Reporter) SetExclusion(idx CoverageIndex) {
	r.exclusion = idx
}

// SetSink forwards every emitted call to s in batches.
func (r *Reporter) SetSink(s Sink) {
	r.sink = s
}

// SetBatchSize sets how many calls are buffered per sink write.
func (r *Reporter) SetBatchSize(n int) {
	if n > 0 {
		r.batchSize = n
	}
}

// Stats returns the counts accumulated so far.
func (r *Reporter) Stats() Stats {
	return r.stats
}

// Process converts one record into a variant.
func (r *Reporter) Process(rec record.Record, mode record.Mode) (*normalize.Variant, error) {
	var v *normalize.Variant
	switch rec := rec.(type) {
	case *record.RawFlatRecord:
		v = fromFlat(rec)
	case *record.RawUpstreamRecord:
		if r.mapper == nil {
			return nil, fmt.Errorf("line %d: %w", rec.LineNumber, record.ErrMissingReference)
		}
		w, err := r.mapper.Resolve(rec, mode)
		if err != nil {
			return nil, fmt.Errorf("line %d: resolve coordinates: %w", rec.LineNumber, err)
		}
		v, err = r.normalizer.Normalize(rec, w)
		if errors.Is(err, normalize.ErrUnknownType) {
			r.logger.Error("unknown variant type",
				zap.String("type", rec.Type),
				zap.String("line", rec.Line))
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: normalize variant: %w", rec.LineNumber, err)
		}
	default:
		return nil, fmt.Errorf("unsupported record layout %T", rec)
	}

	if err := r.enrich(v); err != nil {
		return nil, err
	}
	return v, nil
}

// enrich recomputes the exclusive coverage of the alternate sequence.
func (r *Reporter) enrich(v *normalize.Variant) error {
	if r.exclusion == nil || v.NoVariant || v.AltSequence == "" {
		return nil
	}
	low, err := r.exclusion.MinCoverage(strings.ToUpper(v.AltSequence))
	if errors.Is(err, kmer.ErrSequenceTooShort) {
		r.logger.Warn("alternate sequence shorter than exclusion k-mers",
			zap.String("sample", v.Sample),
			zap.String("query", v.Query))
		return nil
	}
	if err != nil {
		return fmt.Errorf("exclusive coverage: %w", err)
	}
	v.ExcluMinCov = strconv.FormatInt(low, 10)
	return nil
}

// Run processes every record from parser and writes the variants.
func (r *Reporter) Run(parser RecordParser, writer output.Writer) error {
	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for {
		rec, err := parser.Next()
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}
		if rec == nil {
			break
		}
		r.stats.Records++

		v, err := r.Process(rec, parser.Mode())
		if err != nil {
			return err
		}
		switch {
		case v.Flat:
			r.stats.Flat++
		case v.NoVariant:
			r.stats.References++
		default:
			r.stats.Variants++
		}

		if err := writer.Write(v); err != nil {
			return fmt.Errorf("write variant: %w", err)
		}
		if err := r.store(v); err != nil {
			return err
		}
	}

	if err := r.flushSink(); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	if r.stats.Records == 0 {
		r.logger.Info("0 records processed")
		return nil
	}
	r.logger.Info("report finished",
		zap.Int("records", r.stats.Records),
		zap.Int("variants", r.stats.Variants),
		zap.Int("references", r.stats.References),
		zap.Int("flat", r.stats.Flat),
		zap.Int("stored", r.stats.Stored))
	return nil
}

func (r *Reporter) store(v *normalize.Variant) error {
	if r.sink == nil || v.NoVariant || v.Flat {
		return nil
	}
	r.batch = append(r.batch, duckdb.CallFromVariant(v))
	if len(r.batch) >= r.batchSize {
		return r.flushSink()
	}
	return nil
}

func (r *Reporter) flushSink() error {
	if r.sink == nil || len(r.batch) == 0 {
		return nil
	}
	if err := r.sink.WriteCalls(r.batch); err != nil {
		return fmt.Errorf("store calls: %w", err)
	}
	r.logger.Debug("stored calls", zap.Int("count", len(r.batch)))
	r.stats.Stored += len(r.batch)
	r.batch = r.batch[:0]
	return nil
}

// fromFlat passes a flat report line through unchanged.
func fromFlat(rec *record.RawFlatRecord) *normalize.Variant {
	bare, _, _ := strings.Cut(rec.Type, "/")
	return &normalize.Variant{
		Sample:      rec.Sample,
		Query:       rec.Target,
		Key:         normalize.KeyName(rec.Type, rec.Target),
		Region:      rec.Region,
		Location:    rec.Location,
		Type:        rec.Type,
		Removed:     rec.Removed,
		Added:       rec.Added,
		Abnormal:    rec.Abnormal,
		Normal:      rec.Normal,
		Ratio:       rec.Ratio,
		MinCoverage: rec.MinCoverage,
		ExcluMinCov: rec.ExcluMinCov,
		Mod:         rec.Variant,
		Info:        rec.Info,
		AltSequence: rec.VariantSequence,
		RefSequence: rec.ReferenceSequence,
		NoVariant:   bare == "Reference" || bare == "Fusion",
		Flat:        true,
	}
}
