// Package status implements the status command: backend health and the
// progress of the local slot toward the target.
package status

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/store"
)

// AppContext defines the interface that the status command needs from the app.
type AppContext interface {
	Backend() (backend.API, error)
	Store(ctx context.Context) (*store.Store, error)
	Target() int
	OutputFormat() string
}

// Backend health values.
const (
	BackendHealthy       = "healthy"
	BackendUnreachable   = "unreachable"
	BackendNotConfigured = "not configured"
)

// Report is the status command output.
type Report struct {
	Backend  string  `json:"backend" yaml:"backend"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`
	Slot     string  `json:"slot" yaml:"slot"`
	Records  int     `json:"records" yaml:"records"`
	Target   int     `json:"target" yaml:"target"`
	Percent  int     `json:"percent" yaml:"percent"`
	Total    float64 `json:"total_value" yaml:"total_value"`
	Complete bool    `json:"complete" yaml:"complete"`
}

// NewCommand creates the status command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: "core",
		Short:   "Show backend health and progress toward the target",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := Collect(cmd.Context(), app)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), app.OutputFormat(), report)
		},
	}
}

// Collect gathers the report. An unreachable backend is reported, not
// returned as an error.
func Collect(ctx context.Context, app AppContext) (Report, error) {
	report := Report{Backend: BackendNotConfigured}
	if api, err := app.Backend(); err == nil {
		if err := api.Health(ctx); err != nil {
			report.Backend = BackendUnreachable
			report.Error = err.Error()
		} else {
			report.Backend = BackendHealthy
		}
	}

	st, err := app.Store(ctx)
	if err != nil {
		return report, err
	}
	list := st.Load(ctx)
	p := tally.NewProgress(list.Len(), app.Target())

	report.Slot = st.Key()
	report.Records = p.Count
	report.Target = p.Target
	report.Percent = p.Percent
	report.Total = list.Total()
	report.Complete = p.Complete()
	return report, nil
}

func write(w io.Writer, format string, report Report) error {
	return cmdutil.Print(w, format, report)
}
