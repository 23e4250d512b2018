// Package submit implements the submit command: post a form payload to the
// backend webhook, the way the form integration does.
package submit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally/internal/cmd/alerts"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/records"
)

// AppContext defines the interface that the submit command needs from the app.
type AppContext interface {
	Backend() (backend.API, error)
	OutputFormat() string
}

// Flags holds the submit command flags.
type Flags struct {
	Name          string
	ProcessNumber string
	Value         string
	File          string
}

// NewCommand creates the submit command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "submit",
		GroupID: "management",
		Short:   "Post a record to the backend form webhook",
		Long: `Submit posts one record to the backend form webhook. Connected watch
sessions receive it as a live event.

Either build the payload from flags or pass a JSON object with --file
(use - for standard input); the payload may use any accepted field alias.`,
		Example: `  tally submit --name "Ana" --process 0001234-56.2025 --value "R$ 1.500,00"
  echo '{"Nome": "Ana", "Número do processo": "123"}' | tally submit -f -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := flags.Payload(cmd.InOrStdin(), time.Now())
			if err != nil {
				return err
			}
			return run(cmd.Context(), app, cmd.OutOrStdout(), payload)
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "", "Name of the person reporting")
	cmd.Flags().StringVar(&flags.ProcessNumber, "process", "", "Process number")
	cmd.Flags().StringVar(&flags.Value, "value", "", "Agreement value, e.g. 1500.00 or \"R$ 1.500,00\"")
	cmd.Flags().StringVarP(&flags.File, "file", "f", "", "Read the JSON payload from a file (- for stdin)")

	return cmd
}

// Payload builds the webhook payload. Flag payloads carry the submission
// time so repeated submissions are distinct records.
func (f *Flags) Payload(stdin io.Reader, now time.Time) (records.Payload, error) {
	if f.File != "" {
		return readPayload(stdin, f.File)
	}
	if strings.TrimSpace(f.Name) == "" && strings.TrimSpace(f.ProcessNumber) == "" {
		return nil, errors.NewValidationError("process", "", "set --name or --process, or pass --file")
	}

	p := records.Payload{
		"nome":      f.Name,
		"numero":    f.ProcessNumber,
		"timestamp": now.UTC().Format(records.TimeLayout),
	}
	if f.Value != "" {
		v, ok := records.ParseValue(f.Value)
		if !ok {
			return nil, errors.NewValidationError("value", f.Value, "not a number")
		}
		p["valor"] = v
	}
	return p, nil
}

func readPayload(stdin io.Reader, file string) (records.Payload, error) {
	var r io.Reader = stdin
	if file != "-" {
		fh, err := os.Open(file)
		if err != nil {
			return nil, errors.WrapIO("open", file, err)
		}
		defer fh.Close()
		r = fh
	}

	var p records.Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.WrapParse("json", file, err)
	}
	if p == nil {
		return nil, errors.NewValidationError("file", file, "payload must be a JSON object")
	}
	return p, nil
}

func run(ctx context.Context, app AppContext, w io.Writer, payload records.Payload) error {
	api, err := app.Backend()
	if err != nil {
		return err
	}

	format := app.OutputFormat()
	if err := api.Submit(ctx, payload); err != nil {
		return cmdutil.Fail(w, format, alerts.NewError("Submit failed").WithError(err))
	}

	r := records.Normalize(payload)
	return cmdutil.AlertWriter(w, format).WriteAlert(
		alerts.NewSuccess("Record submitted").WithDetails(r.Name + " " + r.ProcessNumber))
}
