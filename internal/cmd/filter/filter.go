// Package filter narrows record lists for the list command.
package filter

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/agentstation/tally/pkg/records"
)

// RecordFilter applies filters to record lists. Zero fields match anything.
type RecordFilter struct {
	Name     string    // case-insensitive substring of the name
	Process  string    // prefix of the process number
	Since    time.Time // records reported at or after
	MinValue float64   // records with a value of at least
	Search   string    // substring of name or process number
}

// Apply returns the matching records in list order.
func (f *RecordFilter) Apply(list records.List) records.List {
	if f == nil || f.isEmpty() {
		return list
	}

	filtered := records.List{}
	for _, r := range list {
		if f.matches(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func (f *RecordFilter) isEmpty() bool {
	return f.Name == "" &&
		f.Process == "" &&
		f.Since.IsZero() &&
		f.MinValue == 0 &&
		f.Search == ""
}

func (f *RecordFilter) matches(r records.Record) bool {
	if f.Name != "" && !contains(r.Name, f.Name) {
		return false
	}
	if f.Process != "" && !strings.HasPrefix(r.ProcessNumber, strings.TrimSpace(f.Process)) {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Time.Before(f.Since) {
		return false
	}
	if f.MinValue > 0 && (r.Value == nil || *r.Value < f.MinValue) {
		return false
	}
	if f.Search != "" && !contains(r.Name, f.Search) && !contains(r.ProcessNumber, f.Search) {
		return false
	}
	return true
}

// contains matches ignoring case, including accented capitals.
func contains(s, substr string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(strings.TrimSpace(substr)))
}

// ParseSince accepts a duration back from now ("24h") or a date
// ("2025-03-10", "2025-03-10T15:04:05Z").
func ParseSince(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d), true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
