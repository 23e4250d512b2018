package alerts

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/tally/internal/cmd/output"
)

// FormatWriter renders alerts as styled text or as a structured document,
// following the command's output format.
type FormatWriter struct {
	w      io.Writer
	format output.Format
	color  bool
}

var _ Writer = (*FormatWriter)(nil)

// NewFormatWriter creates a FormatWriter. Text output is colored only when
// w is a terminal.
func NewFormatWriter(w io.Writer, format output.Format) *FormatWriter {
	color := false
	if f, ok := w.(*os.File); ok {
		color = output.IsTerminal(f)
	}
	return &FormatWriter{w: w, format: format, color: color}
}

// WriteAlert implements Writer.
func (fw *FormatWriter) WriteAlert(alert *Alert) error {
	switch fw.format {
	case output.FormatJSON, output.FormatYAML:
		return fw.writeDocument(alert)
	default:
		return fw.writeText(alert)
	}
}

type document struct {
	Level     string   `json:"level" yaml:"level"`
	Message   string   `json:"message" yaml:"message"`
	Details   []string `json:"details,omitempty" yaml:"details,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp string   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

func (fw *FormatWriter) writeDocument(alert *Alert) error {
	doc := document{
		Level:   alert.Level.String(),
		Message: alert.Message,
		Details: alert.Details,
	}
	if alert.Err != nil {
		doc.Error = alert.Err.Error()
	}
	if !alert.Timestamp.IsZero() {
		doc.Timestamp = alert.Timestamp.UTC().Format(time.RFC3339)
	}

	if fw.format == output.FormatYAML {
		data, err := yaml.MarshalWithOptions(doc, yaml.Indent(2))
		if err != nil {
			return err
		}
		_, err = fw.w.Write(data)
		return err
	}
	enc := json.NewEncoder(fw.w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func (fw *FormatWriter) writeText(alert *Alert) error {
	line := alert.String()
	if fw.color {
		line = alert.Level.Style().Render(line)
	}
	if _, err := fmt.Fprintln(fw.w, line); err != nil {
		return err
	}
	for _, d := range alert.Details {
		if _, err := fmt.Fprintf(fw.w, "   %s\n", d); err != nil {
			return err
		}
	}
	return nil
}
