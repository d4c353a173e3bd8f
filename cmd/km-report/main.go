// Package main provides the km-report command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const configName = ".km-report"

var (
	errorPrefix   = color.New(color.FgRed, color.Bold)
	warningPrefix = color.New(color.FgYellow)
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// usageError marks errors caused by invalid invocation rather than bad input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, a ...any) error {
	return &usageError{err: fmt.Errorf(format, a...)}
}

// usageArgs wraps a positional argument validator so its failures map to ExitUsage.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// app carries the state shared by every subcommand.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	root := a.newRootCmd()
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		printError(stderr, err)
		var ue *usageError
		if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "km-report",
		Short: "Normalize k-mer mutation search results into genomic variant reports",
		Long: `km-report turns the path differences reported by a k-mer mutation search
into normalized genomic variants and writes them as a flat report, VCF, or
a sample-by-variant table.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("km-report {{.Version}}\n")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default ~/"+configName+".yaml)")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	a.v.BindPFlag("config", pf.Lookup("config"))
	a.v.BindPFlag("verbose", pf.Lookup("verbose"))

	root.AddCommand(a.newReportCmd())
	root.AddCommand(a.newKmersCmd())
	root.AddCommand(a.newConfigCmd())

	return root
}

// initConfig reads the config file and environment. A missing config file is not an error.
func (a *app) initConfig() error {
	a.v.SetEnvPrefix("KM_REPORT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if cfg := a.v.GetString("config"); cfg != "" {
		a.v.SetConfigFile(cfg)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfg, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	a.v.AddConfigPath(home)
	a.v.SetConfigName(configName)
	a.v.SetConfigType("yaml")
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// defaultConfigPath returns ~/.km-report.yaml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configName+".yaml"), nil
}

// newLogger builds a console logger writing to w.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", errorPrefix.Sprint("Error:"), err)
}

func printWarning(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", warningPrefix.Sprint("Warning:"), fmt.Sprintf(format, a...))
}
