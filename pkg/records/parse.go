package records

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order. Day-first layouts come before month-first
// ones: the form sheet is filled in pt-BR. Layouts without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"01/02/2006 15:04:05",
	"2006-01-02",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e11

// maxEpoch is the largest float64 that converts to int64 without overflow.
const maxEpoch = float64(1<<63 - 1024)

// ParseTime parses a payload timestamp. Strings are tried against the accepted
// layouts; numbers are read as Unix epoch seconds or milliseconds. Instants
// whose UTC year falls outside 0000-9999 are rejected: their canonical form
// would not parse back.
func ParseTime(v any) (time.Time, bool) {
	ts, ok := parseTime(v)
	if !ok || !inRange(ts) {
		return time.Time{}, false
	}
	return ts, true
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case float64:
		return fromEpoch(t)
	case int64:
		return fromEpoch(float64(t))
	case int:
		return fromEpoch(float64(t))
	}

	s := scalar(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	return time.Time{}, false
}

func inRange(t time.Time) bool {
	y := t.UTC().Year()
	return y >= 0 && y <= 9999
}

func fromEpoch(f float64) (time.Time, bool) {
	if f <= 0 || f > maxEpoch || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if f >= epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Unix(int64(f), 0).UTC(), true
}

var nonNumeric = regexp.MustCompile(`[^0-9,.]`)

// ParseValue reads a monetary amount. Currency symbols and spaces are
// dropped; when both separators appear "." groups thousands and "," is the
// decimal mark, and a lone "," is a decimal mark.
func ParseValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}

	s := nonNumeric.ReplaceAllString(scalar(v), "")
	if s == "" {
		return 0, false
	}
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
