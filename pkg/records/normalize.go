package records

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/utc"
)

// Keys of nested question nodes: a node whose title matches an alias carries
// the answer under one of the value keys.
var (
	titleKeys = []string{"title", "question", "label", "name"}
	valueKeys = []string{"value", "answer", "response", "text"}
)

// Normalizer converts payloads into records. It never fails: absent or
// malformed fields degrade to the placeholder, to the current time or to a
// nil value.
type Normalizer struct {
	aliases   Aliases
	name      aliasSet
	number    aliasSet
	timestamp aliasSet
	value     aliasSet
	now       func() time.Time
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithAliases replaces the accepted aliases.
func WithAliases(aliases Aliases) NormalizerOption {
	return func(n *Normalizer) {
		n.aliases = aliases
	}
}

// WithClock sets the time source used when a payload carries no timestamp.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNormalizer creates a normalizer using DefaultAliases unless overridden.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		aliases: DefaultAliases(),
		now:     func() time.Time { return utc.Now().Time },
	}
	for _, opt := range opts {
		opt(n)
	}
	n.name = newAliasSet(n.aliases.Name)
	n.number = newAliasSet(n.aliases.ProcessNumber)
	n.timestamp = newAliasSet(n.aliases.Timestamp)
	n.value = newAliasSet(n.aliases.Value)
	return n
}

var defaultNormalizer = NewNormalizer()

// DefaultNormalizer returns the shared normalizer built from DefaultAliases.
func DefaultNormalizer() *Normalizer {
	return defaultNormalizer
}

// Normalize converts p with the default normalizer.
func Normalize(p Payload) Record {
	return defaultNormalizer.Normalize(p)
}

// Aliases returns the aliases the normalizer resolves.
func (n *Normalizer) Aliases() Aliases {
	return n.aliases
}

// Normalize converts a payload into a record.
func (n *Normalizer) Normalize(p Payload) Record {
	rec := Record{
		Name:          orPlaceholder(n.resolve(p, n.name)),
		ProcessNumber: orPlaceholder(collapseSpaces(n.resolve(p, n.number))),
	}

	rec.Timestamp = canonicalTime(n.now())
	if ts, ok := ParseTime(n.resolveRaw(p, n.timestamp)); ok {
		rec.Timestamp = canonicalTime(ts)
	}

	if v, ok := ParseValue(n.resolveRaw(p, n.value)); ok {
		rec.Value = &v
	}

	return rec
}

// NormalizeAll converts every payload, preserving order.
func (n *Normalizer) NormalizeAll(payloads []Payload) []Record {
	out := make([]Record, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, n.Normalize(p))
	}
	return out
}

// resolve returns the first non-empty textual value for the aliases.
func (n *Normalizer) resolve(p Payload, set aliasSet) string {
	return scalar(n.resolveRaw(p, set))
}

// resolveRaw looks the aliases up at the top level first, then through
// nested maps and lists, then through title/value question nodes.
func (n *Normalizer) resolveRaw(p Payload, set aliasSet) any {
	if p == nil {
		return nil
	}

	if v, ok := lookup(p, set); ok {
		return v
	}

	var found any
	walk(p, func(node map[string]any) bool {
		if v, ok := lookup(node, set); ok {
			found = v
			return true
		}
		return false
	})
	if found != nil {
		return found
	}

	walk(p, func(node map[string]any) bool {
		title := ""
		for _, k := range titleKeys {
			if s, ok := node[k].(string); ok && s != "" {
				title = s
				break
			}
		}
		if title == "" || !set.has(strings.TrimSpace(title)) {
			return false
		}
		for _, k := range valueKeys {
			if v, ok := node[k]; ok && scalar(v) != "" {
				found = v
				return true
			}
		}
		return false
	})
	return found
}

// lookup checks one map for the aliases in order.
func lookup(node map[string]any, set aliasSet) (any, bool) {
	folded := make(map[string]any, len(node))
	for k, v := range node {
		folded[foldKey(strings.TrimSpace(k))] = v
	}
	for _, alias := range set.ordered {
		if v, ok := folded[alias]; ok && scalar(v) != "" {
			return v, true
		}
	}
	return nil, false
}

// walk visits every map nested below root (root excluded) depth first, in
// sorted key order so resolution is deterministic. visit returns true to stop.
func walk(root map[string]any, visit func(map[string]any) bool) {
	var descend func(v any) bool
	descend = func(v any) bool {
		switch t := v.(type) {
		case map[string]any:
			if visit(t) {
				return true
			}
			for _, k := range sortedKeys(t) {
				if descend(t[k]) {
					return true
				}
			}
		case []any:
			for _, item := range t {
				if descend(item) {
					return true
				}
			}
		}
		return false
	}
	for _, k := range sortedKeys(root) {
		if descend(root[k]) {
			return
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scalar renders a payload value as trimmed text. Lists resolve to their
// first non-empty element; maps have no textual value.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		for _, item := range t {
			if s := scalar(item); s != "" {
				return s
			}
		}
		return ""
	case []string:
		for _, item := range t {
			if s := strings.TrimSpace(item); s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
