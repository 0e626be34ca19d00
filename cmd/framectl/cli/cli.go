// Package cli implements the framectl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"gwframe/internal/config"
	"gwframe/internal/home"
	"gwframe/internal/logging"
	"gwframe/internal/stream"
)

// app is the state shared by every command. It is filled in by the root
// command's PersistentPreRunE from the flags and the settings file.
type app struct {
	logger  *slog.Logger
	filter  *logging.ComponentFilterHandler
	version string

	home     home.Dir
	store    *config.Store
	settings *config.Settings
	verifier string // --verifier, overriding the saved setting
}

// New returns the root command. filter may be nil, in which case log level
// flags have no effect.
func New(logger *slog.Logger, filter *logging.ComponentFilterHandler, version string) *cobra.Command {
	a := &app{logger: logging.Default(logger), filter: filter, version: version}

	root := &cobra.Command{
		Use:          "framectl",
		Short:        "Inspect, verify and convert IGWD frame files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().String("home", "", "home directory (default: platform config dir)")
	root.PersistentFlags().String("log-level", "", "default log level: debug, info, warn or error")
	root.PersistentFlags().StringSlice("log", nil, "per-component log level, e.g. --log verifier=debug")
	root.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
	root.PersistentFlags().String("verifier", "", "checksum verifier: strict, warn or ignore")

	root.AddCommand(
		a.newDumpCmd(),
		a.newDescribeCmd(),
		a.newTOCCmd(),
		a.newVerifyCmd(),
		a.newConvertCmd(),
		a.newCompressCmd(),
		a.newLsCmd(),
		a.newWatchCmd(),
		a.newConfigCmd(),
		a.newVersionCmd(),
	)
	return root
}

// init resolves the home directory, loads the settings and applies the
// logging flags.
func (a *app) init(cmd *cobra.Command) error {
	homeFlag, _ := cmd.Flags().GetString("home")
	hd, err := resolveHome(homeFlag)
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	a.home = hd
	a.store = config.NewStore(hd.ConfigPath())
	a.settings, err = a.store.Load()
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("verifier"); v != "" {
		if _, err := config.ParseVerifier(v, nil); err != nil {
			return err
		}
		a.verifier = v
	}

	if a.filter == nil {
		return nil
	}
	levelName := a.settings.LogLevel
	if cmd.Flags().Changed("log-level") {
		levelName, _ = cmd.Flags().GetString("log-level")
	}
	level, err := config.ParseLevel(levelName)
	if err != nil {
		return err
	}
	a.filter.SetDefaultLevel(level)

	overrides, _ := cmd.Flags().GetStringSlice("log")
	for _, o := range overrides {
		component, name, ok := strings.Cut(o, "=")
		if !ok {
			return fmt.Errorf("--log %q: want component=level", o)
		}
		lv, err := config.ParseLevel(name)
		if err != nil {
			return err
		}
		a.filter.SetLevel(component, lv)
	}
	return nil
}

func resolveHome(flag string) (home.Dir, error) {
	if flag != "" {
		return home.New(flag), nil
	}
	return home.Default()
}

// readConfig returns the stream configuration for reading files.
func (a *app) readConfig() (stream.Config, error) {
	s := a.settings.Clone()
	if a.verifier != "" {
		s.Verifier = a.verifier
	}
	return s.ReadConfig(a.logger)
}

// cacheDir returns where TOC sidecars are kept.
func (a *app) cacheDir() string {
	if a.settings.CacheDir != "" {
		return a.settings.CacheDir
	}
	return a.home.CacheDir()
}

// workers returns the concurrency limit for a command.
func (a *app) workers(cmd *cobra.Command) int {
	if cmd.Flags().Changed("workers") {
		n, _ := cmd.Flags().GetInt("workers")
		return max(n, 1)
	}
	if a.settings.Workers > 0 {
		return a.settings.Workers
	}
	return 4
}

// printer returns a printer honoring the --output flag.
func (a *app) printer(cmd *cobra.Command) *printer {
	f, _ := cmd.Flags().GetString("output")
	return newPrinter(f, cmd.OutOrStdout())
}
