package app

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally/cmd/tally/cmd/backfill"
	"github.com/agentstation/tally/cmd/tally/cmd/list"
	"github.com/agentstation/tally/cmd/tally/cmd/reset"
	"github.com/agentstation/tally/cmd/tally/cmd/status"
	"github.com/agentstation/tally/cmd/tally/cmd/submit"
	"github.com/agentstation/tally/cmd/tally/cmd/watch"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(a.CreateWatchCommand())
	rootCmd.AddCommand(a.CreateListCommand())
	rootCmd.AddCommand(a.CreateStatusCommand())

	// Management commands
	rootCmd.AddCommand(a.CreateResetCommand())
	rootCmd.AddCommand(a.CreateBackfillCommand())
	rootCmd.AddCommand(a.CreateSubmitCommand())

	rootCmd.AddCommand(a.CreateVersionCommand())
}

// CreateWatchCommand creates the watch command with app dependencies.
func (a *App) CreateWatchCommand() *cobra.Command {
	return watch.NewCommand(a)
}

// CreateListCommand creates the list command with app dependencies.
func (a *App) CreateListCommand() *cobra.Command {
	return list.NewCommand(a)
}

// CreateStatusCommand creates the status command with app dependencies.
func (a *App) CreateStatusCommand() *cobra.Command {
	return status.NewCommand(a)
}

// CreateResetCommand creates the reset command with app dependencies.
func (a *App) CreateResetCommand() *cobra.Command {
	return reset.NewCommand(a)
}

// CreateBackfillCommand creates the backfill command with app dependencies.
func (a *App) CreateBackfillCommand() *cobra.Command {
	return backfill.NewCommand(a)
}

// CreateSubmitCommand creates the submit command with app dependencies.
func (a *App) CreateSubmitCommand() *cobra.Command {
	return submit.NewCommand(a)
}

// CreateVersionCommand creates the version command.
func (a *App) CreateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("tally %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
				cmd.Printf("  go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
		},
	}
}
