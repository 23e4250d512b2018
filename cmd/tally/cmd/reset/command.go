// Package reset implements the reset command: ask the backend to drop every
// record, then clear the local slot.
package reset

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/tally/internal/cmd/alerts"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/store"
)

// AppContext defines the interface that the reset command needs from the app.
type AppContext interface {
	Backend() (backend.API, error)
	Store(ctx context.Context) (*store.Store, error)
	OutputFormat() string
	Logger() *zerolog.Logger
}

// NewCommand creates the reset command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	var localOnly bool

	cmd := &cobra.Command{
		Use:     "reset",
		GroupID: "management",
		Short:   "Drop every record on the backend and locally",
		Long: `Reset asks the backend to drop every record. Only when the backend
confirms is the local slot cleared; a rejected or failed reset leaves it
untouched. Running watch sessions clear themselves through the reset event.

With --local-only the backend is not contacted and only the local slot is
cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), app, cmd.OutOrStdout(), localOnly)
		},
	}

	cmd.Flags().BoolVar(&localOnly, "local-only", false, "Clear the local slot without contacting the backend")

	return cmd
}

func run(ctx context.Context, app AppContext, w io.Writer, localOnly bool) error {
	format := app.OutputFormat()

	if !localOnly {
		api, err := app.Backend()
		if err != nil {
			return err
		}
		if _, err := api.Reset(ctx); err != nil {
			alert := alerts.NewError("Reset failed").WithError(err)
			if errors.IsResetRejected(err) {
				alert.WithDetails("the backend refused the reset; local records were kept")
			} else {
				alert.WithDetails("the backend could not be reached; local records were kept")
			}
			return cmdutil.Fail(w, format, alert)
		}
	}

	st, err := app.Store(ctx)
	if err != nil {
		return err
	}
	if err := st.Clear(ctx); err != nil {
		return cmdutil.Fail(w, format, alerts.NewError("Could not clear the local slot").WithError(err))
	}

	message := "All records were reset"
	if localOnly {
		message = "Local records cleared"
	}
	app.Logger().Debug().Bool("local_only", localOnly).Str("key", st.Key()).Msg("Reset completed")
	return cmdutil.AlertWriter(w, format).WriteAlert(alerts.NewSuccess(message))
}
