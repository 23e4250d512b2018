// Package backfill implements the backfill command: ask the backend to import
// the rows of its configured form sheet.
package backfill

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally/internal/cmd/alerts"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/pkg/backend"
)

// AppContext defines the interface that the backfill command needs from the app.
type AppContext interface {
	Backend() (backend.API, error)
	OutputFormat() string
}

// NewCommand creates the backfill command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	return &cobra.Command{
		Use:     "backfill",
		GroupID: "management",
		Short:   "Import the form sheet rows into the backend",
		Long: `Backfill asks the backend to read its configured CSV export of the form
sheet and add the rows it does not have yet. Connected watch sessions receive
the imported records through the next snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), app, cmd.OutOrStdout())
		},
	}
}

func run(ctx context.Context, app AppContext, w io.Writer) error {
	api, err := app.Backend()
	if err != nil {
		return err
	}

	format := app.OutputFormat()
	result, err := api.Backfill(ctx)
	if err != nil {
		return cmdutil.Fail(w, format, alerts.NewError("Backfill failed").WithError(err))
	}

	switch output.Format(format) {
	case output.FormatJSON, output.FormatYAML:
		return cmdutil.Print(w, format, result)
	}
	return cmdutil.AlertWriter(w, format).WriteAlert(
		alerts.NewSuccess("Backfill completed").WithDetails(
			fmt.Sprintf("rows in sheet: %d", result.RowsFromCSV),
			fmt.Sprintf("added: %d", result.AddedTotal),
			fmt.Sprintf("total now: %d", result.TotalNow),
		))
}
