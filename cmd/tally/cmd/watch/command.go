// Package watch implements the watch command: run the sync controller and
// show the live list, either as a dashboard or as plain lines.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/tally"
	"github.com/agentstation/tally/internal/cmd/emoji"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/internal/cmd/table"
	"github.com/agentstation/tally/internal/tui"
	"github.com/agentstation/tally/pkg/channel"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/records"
)

// AppContext defines the interface that the watch command needs from the app.
type AppContext interface {
	Client(ctx context.Context, transport channel.Transport, opts ...tally.Option) (tally.Client, error)
	Target() int
	Logger() *zerolog.Logger
	RedirectLogs(w io.Writer)
}

// Flags holds the watch command flags.
type Flags struct {
	Target     int
	Transport  string
	NoSnapshot bool
	Plain      bool
}

// NewCommand creates the watch command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Follow records live",
		Long: `Watch restores the local slot, merges the backend snapshot and then
applies live events from the push channel until interrupted.

On a terminal a dashboard shows progress toward the target and the latest
records; press r to reset. Otherwise, or with --plain, one line is printed
per state change and per new record.`,
		Example: `  tally watch
  tally watch --target 250
  tally watch --transport sse --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			interactive := false
			if f, ok := w.(*os.File); ok && !flags.Plain {
				interactive = output.IsTerminal(f)
			}
			return run(cmd.Context(), app, w, flags, interactive)
		},
	}

	cmd.Flags().IntVarP(&flags.Target, "target", "t", 0, "Record count that counts as 100% (default from config)")
	cmd.Flags().StringVar(&flags.Transport, "transport", "", "Push transport: socketio, sse or none (default from config)")
	cmd.Flags().BoolVar(&flags.NoSnapshot, "no-snapshot", false, "Skip the snapshot read and rely on the slot and live events")
	cmd.Flags().BoolVar(&flags.Plain, "plain", false, "Print plain lines instead of the dashboard")

	return cmd
}

func (f *Flags) options(app AppContext) ([]tally.Option, int, error) {
	target := app.Target()
	if f.Target != 0 {
		if f.Target < 0 {
			return nil, 0, errors.NewValidationError("target", f.Target, "must be positive")
		}
		target = f.Target
	}
	opts := []tally.Option{
		tally.WithTarget(target),
		tally.WithSnapshotDisabled(f.NoSnapshot),
	}
	return opts, target, nil
}

func run(ctx context.Context, app AppContext, w io.Writer, flags *Flags, interactive bool) error {
	opts, target, err := flags.options(app)
	if err != nil {
		return err
	}

	var feed *tui.Feed
	if interactive {
		// log lines would tear the alternate screen
		feed = tui.NewFeed(target)
		app.RedirectLogs(feed.LogWriter())
	}

	c, err := app.Client(ctx, channel.Transport(flags.Transport), opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	if interactive {
		return dashboard(ctx, c, feed, w)
	}
	app.Logger().Debug().Int("target", target).Msg("Watching in plain mode")
	newPrinter(w).attach(c)
	return c.Run(ctx)
}

// dashboard runs the controller and the bubbletea program side by side;
// whichever stops first stops the other.
func dashboard(ctx context.Context, c tally.Client, feed *tui.Feed, w io.Writer) error {
	feed.Attach(c)

	model := tui.NewModel(feed, tui.WithReset(func(ctx context.Context) error {
		_, err := c.Reset(ctx)
		return err
	}))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return c.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		defer feed.Close()
		_, err := tea.NewProgram(model,
			tea.WithContext(gctx),
			tea.WithAltScreen(),
			tea.WithOutput(w),
		).Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// printer writes the plain line output. Hooks run on the controller loop
// but the mutex keeps the writer safe for callers sharing it.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	count int
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) attach(c tally.Client) {
	c.OnStateChange(p.state)
	c.OnRecord(p.record)
	c.OnChange(p.change)
}

func (p *printer) state(_, to tally.State) {
	p.printf("%s %s\n", emoji.Info, to)
}

func (p *printer) record(r records.Record) {
	p.printf("%s %s  %s  %s  %s\n", emoji.Record,
		table.FormatTime(r.Timestamp.Time), r.Name, r.ProcessNumber, table.FormatValue(r.Value))
}

func (p *printer) change(list records.List) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if list.Len() == 0 && p.count > 0 {
		fmt.Fprintf(p.w, "%s list cleared\n", emoji.Reset)
	} else if list.Len() != p.count {
		fmt.Fprintf(p.w, "%s %d records\n", emoji.Success, list.Len())
	}
	p.count = list.Len()
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
