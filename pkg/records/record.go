// Package records defines the canonical agreement record, the normalizer that
// turns loosely shaped backend payloads into records, and the merge that keeps
// a record list deduplicated and ordered newest first.
package records

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/tally/pkg/constants"
)

// TimeLayout is the canonical ISO-8601 form of a record timestamp:
// UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Payload is a raw record as received from the backend or the push channel.
type Payload = map[string]any

// Record is one reported agreement.
//
// The identity key is derived from ProcessNumber and Timestamp and cannot be
// set independently; see Key.
type Record struct {
	Name          string
	ProcessNumber string
	Timestamp     utc.Time
	Value         *float64
}

// New builds a record, applying the same placeholder and time rules as the
// normalizer.
func New(name, processNumber string, ts time.Time, value *float64) Record {
	return Record{
		Name:          orPlaceholder(strings.TrimSpace(name)),
		ProcessNumber: orPlaceholder(collapseSpaces(processNumber)),
		Timestamp:     canonicalTime(ts),
		Value:         value,
	}
}

// Stamp returns the canonical string form of the record timestamp.
func (r Record) Stamp() string {
	return r.Timestamp.Time.UTC().Format(TimeLayout)
}

// Key returns the identity key used for deduplication.
func (r Record) Key() string {
	return IdentityKey(r.ProcessNumber, r.Stamp())
}

// IdentityKey joins a process number and a canonical timestamp.
func IdentityKey(processNumber, stamp string) string {
	return strings.TrimSpace(processNumber + "|" + stamp)
}

// wire is the persisted and transmitted shape of a record. Field names follow
// the backend's normalized entries so snapshots and slots share one format.
type wire struct {
	Name          string   `json:"nome" yaml:"nome"`
	ProcessNumber string   `json:"numero" yaml:"numero"`
	Timestamp     string   `json:"timestamp" yaml:"timestamp"`
	Value         *float64 `json:"valor,omitempty" yaml:"valor,omitempty"`
	ID            string   `json:"_id" yaml:"_id"`
}

func (r Record) wire() wire {
	return wire{
		Name:          r.Name,
		ProcessNumber: r.ProcessNumber,
		Timestamp:     r.Stamp(),
		Value:         r.Value,
		ID:            r.Key(),
	}
}

// MarshalJSON writes the record in its wire shape, including the derived _id.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

// UnmarshalJSON decodes any payload shape through the default normalizer, so
// a decoded record always satisfies the record invariants.
func (r *Record) UnmarshalJSON(data []byte) error {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Normalize(p)
	return nil
}

// MarshalYAML writes the record in its wire shape.
func (r Record) MarshalYAML() (any, error) {
	return r.wire(), nil
}

// Payload returns the record in its wire shape as a generic map. Feeding the
// result back through Normalize yields an equal record.
func (r Record) Payload() Payload {
	p := Payload{
		"nome":      r.Name,
		"numero":    r.ProcessNumber,
		"timestamp": r.Stamp(),
		"_id":       r.Key(),
	}
	if r.Value != nil {
		p["valor"] = *r.Value
	}
	return p
}

func orPlaceholder(s string) string {
	if s == "" {
		return constants.Placeholder
	}
	return s
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func canonicalTime(t time.Time) utc.Time {
	return utc.Time{Time: t.UTC().Truncate(time.Millisecond)}
}
