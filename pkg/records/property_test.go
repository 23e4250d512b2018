//go:build property
// +build property

package records_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentstation/tally/pkg/records"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// build turns generated numbers into records. Small ranges force key
// collisions and timestamp ties.
func build(numbers []int, offsets []int) []records.Record {
	out := make([]records.Record, 0, len(numbers))
	for i := 0; i < len(numbers) && i < len(offsets); i++ {
		out = append(out, records.New("n", string(rune('a'+numbers[i])), base.Add(time.Duration(offsets[i])*time.Minute), nil))
	}
	return out
}

func TestMergeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	numbers := gen.SliceOf(gen.IntRange(0, 5))
	offsets := gen.SliceOf(gen.IntRange(0, 10))

	properties.Property("merge output satisfies the list invariants", prop.ForAll(
		func(n1, o1, n2, o2 []int) bool {
			existing := records.Merge(nil, build(n1, o1))
			return records.Merge(existing, build(n2, o2)).Validate() == nil
		},
		numbers, offsets, numbers, offsets,
	))

	properties.Property("merging nothing is the identity", prop.ForAll(
		func(n, o []int) bool {
			list := records.Merge(nil, build(n, o))
			again := records.Merge(list, nil)
			if len(again) != len(list) {
				return false
			}
			for i := range list {
				if list[i].Key() != again[i].Key() {
					return false
				}
			}
			return true
		},
		numbers, offsets,
	))

	properties.Property("merge is idempotent", prop.ForAll(
		func(n, o []int) bool {
			incoming := build(n, o)
			once := records.Merge(nil, incoming)
			twice := records.Merge(once, incoming)
			if len(once) != len(twice) {
				return false
			}
			for i := range once {
				if once[i].Key() != twice[i].Key() {
					return false
				}
			}
			return true
		},
		numbers, offsets,
	))

	properties.TestingRun(t)
}

func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	n := records.NewNormalizer(records.WithClock(func() time.Time { return base }))

	properties.Property("normalize never yields empty fields", prop.ForAll(
		func(keys, values []string) bool {
			p := records.Payload{}
			for i := 0; i < len(keys) && i < len(values); i++ {
				p[keys[i]] = values[i]
			}
			rec := n.Normalize(p)
			return rec.Name != "" && rec.ProcessNumber != "" && !rec.Timestamp.Time.IsZero()
		},
		gen.SliceOf(gen.OneConstOf("nome", "numero", "timestamp", "valor", "Data", "x")),
		gen.SliceOf(gen.AnyString()),
	))

	properties.Property("normalizing a record payload is stable", prop.ForAll(
		func(name, number string, minutes int) bool {
			rec := records.New(name, number, base.Add(time.Duration(minutes)*time.Minute), nil)
			return n.Normalize(rec.Payload()) == rec
		},
		gen.AlphaString(), gen.AlphaString(), gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}
