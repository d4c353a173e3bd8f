package main

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kmtools/km-report/internal/duckdb"
	"github.com/kmtools/km-report/internal/kmer"
	"github.com/kmtools/km-report/internal/normalize"
	"github.com/kmtools/km-report/internal/output"
	"github.com/kmtools/km-report/internal/record"
	"github.com/kmtools/km-report/internal/reference"
	"github.com/kmtools/km-report/internal/report"
)

func (a *app) newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [flags] [input]",
		Short: "Normalize mutation search results into a report",
		Long: `Read k-mer mutation search results (or a previously generated flat report),
place every path difference on the genome using the target file, and write
the normalized variants. Input defaults to stdin; gzipped input is detected.`,
		Example: `  km-report report -t NPM1.fa find_mutation.txt
  km-report report -t targets.fa -f vcf -o calls.vcf find_mutation.txt.gz
  km-report report -t targets.fa -f table -c 5 -i 'sample[0-9]+' results.txt
  cat results.txt | km-report report -t targets.fa --store calls.duckdb -`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return a.runReport(input)
		},
	}

	f := cmd.Flags()
	f.StringP("target", "t", "", "Target reference FASTA used by the mutation search")
	f.StringP("format", "f", "flat", "Output format: flat, vcf, table")
	f.IntP("min-cov", "c", 0, "Minimum k-mer coverage of a reported path")
	f.StringP("info", "i", "", "Only keep input lines matching this regular expression")
	f.StringP("exclu", "e", "", "Exclusion k-mer counts (TSV or .duckdb) for exclusive coverage")
	f.Bool("preload-exclu", false, "Cache exclusion k-mer counts in memory")
	f.BoolP("junction", "j", false, "Report VCF lines of variants spanning exon junctions")
	f.StringP("output", "o", "", "Output file (default stdout)")
	f.String("store", "", "DuckDB file that accumulates normalized calls")
	f.Int("itd-min-length", normalize.DefaultThresholds.MinDuplicationLength,
		"Minimum length of an insertion classified as ITD")
	f.Float64("identity-cutoff", normalize.DefaultThresholds.IdentityCutoff,
		"Identity above which a non-duplicated insertion is reported as I&I")

	for _, name := range []string{
		"target", "format", "min-cov", "info", "exclu", "preload-exclu",
		"junction", "output", "store", "itd-min-length", "identity-cutoff",
	} {
		a.v.BindPFlag(name, f.Lookup(name))
	}

	return cmd
}

func (a *app) runReport(input string) error {
	v := a.v
	logger := newLogger(a.stderr, v.GetBool("verbose"))
	defer logger.Sync()

	format, err := output.ParseFormat(v.GetString("format"))
	if err != nil {
		return &usageError{err: err}
	}

	var info *regexp.Regexp
	if expr := v.GetString("info"); expr != "" {
		info, err = regexp.Compile(expr)
		if err != nil {
			return usagef("invalid --info pattern: %v", err)
		}
	}

	thresholds := normalize.Thresholds{
		MinDuplicationLength: v.GetInt("itd-min-length"),
		IdentityCutoff:       v.GetFloat64("identity-cutoff"),
	}
	if thresholds.MinDuplicationLength < 1 {
		return usagef("--itd-min-length must be positive, got %d", thresholds.MinDuplicationLength)
	}

	var idx *reference.Index
	if target := v.GetString("target"); target != "" {
		loader := reference.NewLoader(target)
		loader.SetLogger(logger)
		idx, err = loader.Load()
		if err != nil {
			return fmt.Errorf("loading target %s: %w", target, err)
		}
		logger.Debug("loaded target",
			zap.String("path", target),
			zap.Int("entries", idx.Len()),
			zap.String("chrom", idx.Chrom),
			zap.Stringer("strand", idx.Strand))
	}

	parser, err := record.NewParser(input, record.Options{
		MinCoverage:  v.GetInt("min-cov"),
		Info:         info,
		HasReference: idx != nil,
	})
	if err != nil {
		return err
	}
	defer parser.Close()

	reporter := report.NewReporter(idx, thresholds)
	reporter.SetLogger(logger)

	if path := v.GetString("exclu"); path != "" {
		exclu, err := openExclusion(path, v.GetBool("preload-exclu"), logger)
		if err != nil {
			return err
		}
		defer exclu.Close()
		reporter.SetExclusion(exclu)
	}

	var (
		store *duckdb.Store
		fp    duckdb.FileFingerprint
	)
	if path := v.GetString("store"); path != "" {
		store, err = duckdb.Open(path)
		if err != nil {
			return fmt.Errorf("opening store %s: %w", path, err)
		}
		defer store.Close()
		reporter.SetSink(store)

		if input != "-" {
			fp, err = duckdb.StatFile(input)
			if err != nil {
				return fmt.Errorf("stat input: %w", err)
			}
			unchanged, err := store.Unchanged(fp)
			if err != nil {
				return err
			}
			if unchanged {
				printWarning(a.stderr, "%s was already stored in %s; its calls will be replaced", input, path)
			}
		}
	}

	var out io.Writer = a.stdout
	if path := v.GetString("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	writer := output.NewWriter(format, out, output.Options{Junction: v.GetBool("junction")})
	if err := reporter.Run(parser, writer); err != nil {
		return err
	}

	d := parser.Dropped()
	logger.Debug("filtered input lines",
		zap.Int("info", d.Info),
		zap.Int("coverage", d.Coverage),
		zap.Int("skipped", d.Skipped))

	if store != nil && fp.Path != "" {
		if err := store.RecordRun(fp, int64(reporter.Stats().Stored)); err != nil {
			return err
		}
	}
	return nil
}

func openExclusion(path string, preload bool, logger *zap.Logger) (*kmer.Store, error) {
	s, err := kmer.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening exclusion counts %s: %w", path, err)
	}
	if preload {
		if err := s.PreloadToMemory(); err != nil {
			s.Close()
			return nil, err
		}
	}
	n, err := s.Len()
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Debug("loaded exclusion counts",
		zap.String("path", path),
		zap.Int64("kmers", n),
		zap.Int("cached", s.MemCacheSize()))
	return s, nil
}
