// Package list implements the list command: print the records held in the
// local slot.
package list

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/tally/internal/cmd/alerts"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/internal/cmd/filter"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/internal/cmd/table"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/store"
)

// AppContext defines the interface that the list command needs from the app.
type AppContext interface {
	Store(ctx context.Context) (*store.Store, error)
	OutputFormat() string
	Logger() *zerolog.Logger
}

// Flags holds the list command flags.
type Flags struct {
	Limit    int
	Name     string
	Process  string
	Since    string
	MinValue float64
	Search   string
}

// Filter builds the record filter from the flags.
func (f *Flags) Filter(now time.Time) (*filter.RecordFilter, error) {
	since, ok := filter.ParseSince(f.Since, now)
	if !ok {
		return nil, errors.NewValidationError("since", f.Since, "use a duration like 24h or a date like 2025-03-10")
	}
	if f.MinValue < 0 {
		return nil, errors.NewValidationError("min-value", f.MinValue, "cannot be negative")
	}
	return &filter.RecordFilter{
		Name:     f.Name,
		Process:  f.Process,
		Since:    since,
		MinValue: f.MinValue,
		Search:   f.Search,
	}, nil
}

// NewCommand creates the list command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		GroupID: "core",
		Short:   "List records from the local slot",
		Long: `List prints the records persisted in the local slot, newest first.

The slot is what the last watch session saw; it is not refreshed from the
backend by this command.`,
		Example: `  tally list                    # table of every record
  tally list --limit 5          # the five most recent
  tally list --since 24h        # reported in the last day
  tally list --search silva     # name or process number contains "silva"
  tally list -o json            # JSON array`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := flags.Filter(time.Now())
			if err != nil {
				return err
			}
			return run(cmd.Context(), app, cmd.OutOrStdout(), f, flags.Limit)
		},
	}

	cmd.Flags().IntVarP(&flags.Limit, "limit", "l", 0, "Show only the N most recent matching records")
	cmd.Flags().StringVar(&flags.Name, "name", "", "Filter by name (case-insensitive substring)")
	cmd.Flags().StringVar(&flags.Process, "process", "", "Filter by process number prefix")
	cmd.Flags().StringVar(&flags.Since, "since", "", "Only records reported since a duration ago or a date")
	cmd.Flags().Float64Var(&flags.MinValue, "min-value", 0, "Only records with at least this value")
	cmd.Flags().StringVarP(&flags.Search, "search", "s", "", "Search name and process number")

	return cmd
}

func run(ctx context.Context, app AppContext, w io.Writer, f *filter.RecordFilter, limit int) error {
	st, err := app.Store(ctx)
	if err != nil {
		return err
	}

	list := f.Apply(st.Load(ctx))
	total := list.Len()
	if limit > 0 {
		list = list.Latest(limit)
	}
	app.Logger().Debug().Str("key", st.Key()).Int("records", total).Msg("Loaded slot")

	format := output.Format(app.OutputFormat())
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return cmdutil.Print(w, string(format), list)
	}

	if total == 0 {
		return cmdutil.AlertWriter(w, string(format)).WriteAlert(
			alerts.NewInfo("No records").WithDetails("nothing in slot " + st.Key() + " matches"))
	}
	if err := cmdutil.Print(w, string(format), table.RecordsToTableData(list, format == output.FormatWide)); err != nil {
		return err
	}
	if list.Len() < total {
		_, err = fmt.Fprintf(w, "showing %d of %d records\n", list.Len(), total)
	}
	return err
}
