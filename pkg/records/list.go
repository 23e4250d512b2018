package records

import (
	"fmt"

	"github.com/agentstation/tally/pkg/errors"
)

// List is an ordered sequence of records. Lists produced by this package are
// sorted newest first and hold at most one record per identity key.
type List []Record

// Len returns the number of records.
func (l List) Len() int {
	return len(l)
}

// Clone returns a copy that shares no backing array with l.
func (l List) Clone() List {
	out := make(List, len(l))
	for i, r := range l {
		if r.Value != nil {
			v := *r.Value
			r.Value = &v
		}
		out[i] = r
	}
	return out
}

// Keys returns the identity keys in list order.
func (l List) Keys() []string {
	keys := make([]string, len(l))
	for i, r := range l {
		keys[i] = r.Key()
	}
	return keys
}

// Contains reports whether a record with the identity key is present.
func (l List) Contains(key string) bool {
	for _, r := range l {
		if r.Key() == key {
			return true
		}
	}
	return false
}

// Latest returns up to n records from the head of the list.
func (l List) Latest(n int) List {
	if n < 0 || n >= len(l) {
		return l
	}
	return l[:n]
}

// Total sums the values of the records that carry one.
func (l List) Total() float64 {
	var sum float64
	for _, r := range l {
		if r.Value != nil {
			sum += *r.Value
		}
	}
	return sum
}

// Validate checks the ordering and uniqueness invariants.
func (l List) Validate() error {
	seen := make(map[string]int, len(l))
	for i, r := range l {
		key := r.Key()
		if j, dup := seen[key]; dup {
			return errors.NewValidationError("identity_key", key,
				fmt.Sprintf("records %d and %d share the same identity key", j, i))
		}
		seen[key] = i
		if i > 0 && r.Timestamp.Time.After(l[i-1].Timestamp.Time) {
			return errors.NewValidationError("timestamp", r.Stamp(),
				fmt.Sprintf("record %d is newer than record %d", i, i-1))
		}
	}
	return nil
}

// Payloads returns every record in wire shape.
func (l List) Payloads() []Payload {
	out := make([]Payload, len(l))
	for i, r := range l {
		out[i] = r.Payload()
	}
	return out
}
