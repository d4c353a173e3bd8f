package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kmtools/km-report/internal/kmer"
)

func (a *app) newKmersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kmers",
		Short: "Manage exclusion k-mer count databases",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(a.newKmersImportCmd())
	cmd.AddCommand(a.newKmersCoverageCmd())
	return cmd
}

func (a *app) newKmersImportCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "import <counts.tsv>",
		Short: "Convert a k-mer count dump to DuckDB",
		Long: `Convert a tab-separated "kmer<TAB>count" dump (for example the output of
jellyfish dump -c) into a DuckDB database usable with report --exclu.
Counts of a k-mer and its reverse complement are merged.`,
		Example: `  km-report kmers import normals.tsv -o normals.duckdb
  km-report kmers import normals.tsv.gz -o normals`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return usagef("--output is required")
			}
			return a.runKmersImport(args[0], outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output DuckDB file path")
	return cmd
}

func (a *app) runKmersImport(inputPath, outputPath string) error {
	if ext := filepath.Ext(outputPath); ext != ".duckdb" && ext != ".db" {
		outputPath += ".duckdb"
	}

	if _, err := os.Stat(outputPath); err == nil {
		if err := os.Remove(outputPath); err != nil {
			return fmt.Errorf("removing existing file: %w", err)
		}
	}

	s, err := kmer.Open(outputPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Load(inputPath); err != nil {
		return err
	}
	n, err := s.Len()
	if err != nil {
		return err
	}
	k, err := s.K()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Imported %d canonical %d-mers into %s\n", n, k, outputPath)
	return nil
}

func (a *app) newKmersCoverageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coverage <counts> <sequence>...",
		Short: "Print k-mer coverage of sequences",
		Long: `Print the minimum, maximum and mean k-mer count along each sequence.
<counts> is a count dump or a database created with "kmers import".`,
		Args: usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKmersCoverage(args[0], args[1:])
		},
	}
}

func (a *app) runKmersCoverage(path string, seqs []string) error {
	s, err := kmer.OpenFile(path)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintln(a.stdout, "Sequence\tMin\tMax\tMean")
	for _, seq := range seqs {
		sum, err := s.Coverage(strings.ToUpper(seq))
		if err != nil {
			return fmt.Errorf("coverage of %s: %w", seq, err)
		}
		fmt.Fprintf(a.stdout, "%s\t%d\t%d\t%.2f\n", seq, sum.Min, sum.Max, sum.Mean)
	}
	return nil
}
