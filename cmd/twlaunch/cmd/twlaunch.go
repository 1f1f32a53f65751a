// Package cmd wires the twlaunch binary: a one-shot query mode for hosts
// that spawn the plugin per keystroke, a serve mode speaking the line-based
// host protocol, and a standalone tui picker.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"twlaunch/internal/cache"
	"twlaunch/internal/config"
	"twlaunch/internal/dispatch"
	"twlaunch/internal/history"
	"twlaunch/internal/launcher"
	"twlaunch/internal/logging"
	"twlaunch/internal/taskwarrior"
	"twlaunch/internal/tui"
	"twlaunch/internal/watcher"
)

// Version is set at build time.
var Version = "dev"

// Config holds invocation settings, injectable for tests.
type Config struct {
	ConfigPath string
	Verbose    bool
}

// Execute runs the CLI with the given arguments and IO writers.
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewRoot(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewRoot creates the root command with injectable IO.
func NewRoot(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	root := &cobra.Command{
		Use:     "twlaunch",
		Short:   "Taskwarrior launcher plugin",
		Long:    "twlaunch answers launcher keyword queries by shelling out to taskwarrior and rendering result items.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Current cfg values stay in place as flag defaults so callers can
	// preset them.
	root.PersistentFlags().StringVarP(&cfg.ConfigPath, "config", "c", cfg.ConfigPath, "Path to config file")
	root.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "V", cfg.Verbose, "Enable debug output")

	root.AddCommand(newQueryCmd(stdout, cfg))
	root.AddCommand(newServeCmd(stdout, cfg))
	root.AddCommand(newTUICmd(cfg))
	root.AddCommand(newConfigCmd(stdout, cfg))

	return root
}

// loadConfig loads preferences and configures logging.
func loadConfig(cfg *Config) (*config.Config, error) {
	prefs, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := prefs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Configure(prefs.Logging.Level, cfg.Verbose)
	return prefs, nil
}

// openHistory opens the selection history when enabled. Failure is not
// fatal: ranking degrades, queries keep working.
func openHistory(prefs *config.Config) *history.Store {
	if !prefs.History.Enabled {
		return nil
	}
	hist, err := history.Open(prefs.History.Path)
	if err != nil {
		log := logging.L()
		log.Warn().Err(err).Str("path", prefs.History.Path).Msg("history disabled")
		return nil
	}
	return hist
}

// historyOption converts a possibly-nil *history.Store into the dispatcher's
// History interface without wrapping a typed nil, which would defeat the
// dispatcher's nil checks.
func historyOption(hist *history.Store) dispatch.History {
	if hist == nil {
		return nil
	}
	return hist
}

func newQueryCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	var jsonOutput bool

	queryCmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a single keyword query",
		Long:  "Dispatch one keyword query (e.g. \"tl +work\") and print the rendered result items.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := loadConfig(cfg)
			if err != nil {
				return err
			}

			hist := openHistory(prefs)
			if hist != nil {
				defer func() { _ = hist.Close() }()
			}

			client := taskwarrior.New(taskwarrior.Config{
				TaskBin: prefs.TaskBin,
				OpenBin: prefs.TaskopenBin,
			}, logging.Component("taskwarrior"))

			d := dispatch.New(client, prefs, dispatch.Options{History: historyOption(hist)}, logging.Component("dispatch"))

			keyword, argument := dispatch.SplitQuery(strings.Join(args, " "))
			resp := d.HandleQuery(cmd.Context(), keyword, argument)

			if !jsonOutput && isTerminal(stdout) {
				writeItemTable(stdout, resp)
				return nil
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	queryCmd.Flags().BoolVar(&jsonOutput, "json", false, "Force JSON output even on a terminal")
	return queryCmd
}

func newServeCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the host protocol loop",
		Long:  "Read JSON events from stdin and write JSON responses to stdout until EOF.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := loadConfig(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := taskwarrior.New(taskwarrior.Config{
				TaskBin: prefs.TaskBin,
				OpenBin: prefs.TaskopenBin,
			}, logging.Component("taskwarrior"))

			exports := cache.New(prefs.CacheTTL())

			hist := openHistory(prefs)
			if hist != nil {
				defer func() { _ = hist.Close() }()
			}

			d := dispatch.New(client, prefs, dispatch.Options{
				Cache:   exports,
				History: historyOption(hist),
			}, logging.Component("dispatch"))

			w, err := watcher.New(watcher.Config{
				Paths:    []string{prefs.DataDir},
				OnChange: exports.Invalidate,
			}, logging.Component("watcher"))
			if err != nil {
				log := logging.L()
				log.Warn().Err(err).Msg("running without data watcher")
			} else {
				if err := w.Start(); err != nil {
					log := logging.L()
					log.Warn().Err(err).Msg("running without data watcher")
				} else {
					defer w.Stop()
				}
			}

			srv := launcher.NewServer(cmd.InOrStdin(), stdout, d, logging.Component("serve"))
			return srv.Run(ctx)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newTUICmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive picker without a launcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := loadConfig(cfg)
			if err != nil {
				return err
			}

			hist := openHistory(prefs)
			if hist != nil {
				defer func() { _ = hist.Close() }()
			}

			client := taskwarrior.New(taskwarrior.Config{
				TaskBin: prefs.TaskBin,
				OpenBin: prefs.TaskopenBin,
			}, logging.Component("taskwarrior"))

			d := dispatch.New(client, prefs, dispatch.Options{History: historyOption(hist)}, logging.Component("dispatch"))
			return tui.Run(d)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newConfigCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "sample",
		Short: "Print the documented sample configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(stdout, config.GetSampleConfig())
			return err
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.ConfigPath
			if path == "" {
				path = config.GetConfigDir() + "/config.yaml"
			}
			_, err := fmt.Fprintln(stdout, path)
			return err
		},
	})

	return configCmd
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeItemTable prints a response in a human-readable form for terminals.
func writeItemTable(w io.Writer, resp launcher.Response) {
	if resp.Type == launcher.ResponseError {
		_, _ = fmt.Fprintf(w, "error: %s\n", resp.Error)
		return
	}
	for i, item := range resp.Items {
		_, _ = fmt.Fprintf(w, "%2d. %s\n", i+1, item.Title)
		if item.Description != "" {
			_, _ = fmt.Fprintf(w, "      %s\n", item.Description)
		}
		switch item.OnEnter.Type {
		case launcher.ActionRun:
			_, _ = fmt.Fprintf(w, "      $ %s\n", item.OnEnter.Command)
		case launcher.ActionSetQuery:
			_, _ = fmt.Fprintf(w, "      -> %s\n", item.OnEnter.Query)
		}
	}
	if len(resp.Items) == 0 {
		_, _ = fmt.Fprintln(w, "no items")
	}
}
