// Package table provides common table formatting utilities for CLI commands.
package table

import (
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/agentstation/tally/pkg/records"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// DisplayLayout is the timestamp layout used in tables, in local time.
const DisplayLayout = "02/01/2006 15:04"

var brl = message.NewPrinter(language.BrazilianPortuguese)

// RecordsToTableData converts records to table format. The wide form adds
// the raw timestamp and the identity key.
func RecordsToTableData(list records.List, wide bool) Data {
	headers := []string{"#", "Name", "Process", "Value", "Reported"}
	align := []Align{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignLeft}
	if wide {
		headers = append(headers, "Timestamp", "Key")
		align = append(align, AlignLeft, AlignLeft)
	}

	rows := make([][]string, 0, len(list))
	for i, r := range list {
		row := []string{
			strconv.Itoa(i + 1),
			r.Name,
			r.ProcessNumber,
			FormatValue(r.Value),
			FormatTime(r.Timestamp.Time),
		}
		if wide {
			row = append(row, r.Stamp(), r.Key())
		}
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// FormatValue renders an amount in reais, or "-" when absent.
func FormatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return "R$ " + brl.Sprintf("%.2f", *v)
}

// FormatTime renders a timestamp for display.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(DisplayLayout)
}

// Truncate shortens s to max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
