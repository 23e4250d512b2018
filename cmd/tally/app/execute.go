package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally/internal/cmd/alerts"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/pkg/errors"
)

// Execute runs the tally CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Live record counter for form submissions",
		Version: a.version,
		Long: `Tally keeps a local, deduplicated list of form submission records in sync
with a backend: it restores the last known list, merges the backend snapshot
and then applies live events pushed over Socket.IO or server-sent events.

Progress is reported against a target count. The list can be reset on the
backend, which clears every connected session.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	// flags are read in setupCommand so unset ones keep config and env values
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.tally.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", "", "output format: table, json, yaml, wide")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.String("backend", "", "backend base URL (env "+EnvPrefix+"_BACKEND_URL)")

	rootCmd.SetVersionTemplate("tally {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	// These flags are defined as persistent flags in createRootCommand, so errors indicate programming errors
	verbose := mustGetBool(cmd, "verbose")
	quiet := mustGetBool(cmd, "quiet")
	noColor := mustGetBool(cmd, "no-color")
	format := mustGetString(cmd, "format")
	logLevel := mustGetString(cmd, "log-level")
	backendURL := mustGetString(cmd, "backend")

	if cmd.Flags().Changed("config") {
		config, err := LoadConfig(mustGetString(cmd, "config"))
		if err != nil {
			return err
		}
		a.config = config
	}

	if _, err := output.ParseFormat(format); err != nil {
		return err
	}

	a.config.UpdateFromFlags(verbose, quiet, noColor, format, logLevel, backendURL)

	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// ExitOnError prints err as an alert with a recovery hint and exits with
// status 1. Errors whose alert a command already wrote are not printed again.
func ExitOnError(err error) {
	if err != nil {
		if !errors.Is(err, cmdutil.ErrReported) {
			w := alerts.NewFormatWriter(os.Stderr, output.FormatTable)
			//nolint:errcheck // Ignoring write error since we're exiting anyway
			_ = w.WriteAlert(alerts.FromError(err))
		}
		os.Exit(1)
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
