package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage km-report configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/.km-report.yaml.
Any report flag can be set here by its long name; KM_REPORT_<NAME> environment
variables override the file.`,
		Example: `  km-report config                           # show the config file
  km-report config set target ~/refs/NPM1.fa  # default target
  km-report config set junction true          # always report junction calls
  km-report config get min-cov                # effective value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigShow()
		},
	}

	cmd.AddCommand(a.newConfigSetCmd())
	cmd.AddCommand(a.newConfigGetCmd())

	return cmd
}

func (a *app) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigSet(args[0], args[1])
		},
	}
}

func (a *app) newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigGet(args[0])
		},
	}
}

// fileConfig loads only the config file, without flag defaults or environment.
func (a *app) fileConfig() (*viper.Viper, string, error) {
	path := a.v.ConfigFileUsed()
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, "", err
		}
	}

	fv := viper.New()
	fv.SetConfigFile(path)
	fv.SetConfigType("yaml")
	if err := fv.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("read config %s: %w", path, err)
	}
	return fv, path, nil
}

func (a *app) runConfigShow() error {
	fv, path, err := a.fileConfig()
	if err != nil {
		return err
	}
	settings := fv.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintf(a.stdout, "# No configuration set. Config file: %s\n", path)
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(a.stdout, string(out))
	return nil
}

func (a *app) runConfigSet(key, value string) error {
	fv, path, err := a.fileConfig()
	if err != nil {
		return err
	}

	switch value {
	case "true", "yes", "on":
		fv.Set(key, true)
	case "false", "no", "off":
		fv.Set(key, false)
	default:
		fv.Set(key, value)
	}

	if err := fv.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(a.stdout, "Set %s = %s in %s\n", key, value, path)
	return nil
}

func (a *app) runConfigGet(key string) error {
	val := a.v.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(a.stdout, val)
	return nil
}
