package records

import "golang.org/x/text/unicode/norm"

// Aliases lists, per record field, the payload keys accepted for it. Order
// matters: the first alias with a non-empty value wins. The lists cover the
// backend's normalized shape, the raw webhook shape and the column titles of
// the form sheet.
type Aliases struct {
	Name          []string `mapstructure:"name" yaml:"name"`
	ProcessNumber []string `mapstructure:"process_number" yaml:"process_number"`
	Timestamp     []string `mapstructure:"timestamp" yaml:"timestamp"`
	Value         []string `mapstructure:"value" yaml:"value"`
}

// DefaultAliases returns the accepted aliases.
func DefaultAliases() Aliases {
	return Aliases{
		Name: []string{
			"nome", "Nome", "NOME", "Nome:", "name", "Name",
			"Nome do responsável",
		},
		ProcessNumber: []string{
			"numero", "numero_processo", "número_processo", "processo",
			"Número do processo", "Número do processo:", "Nº Processo",
			"processNumber",
		},
		Timestamp: []string{
			"timestamp", "Timestamp", "Carimbo de data/hora", "Data/hora",
			"Data", "Submitted At", "Submission Time",
		},
		Value: []string{
			"valor", "Valor", "Valor da Causa em",
			"Valor da Causa em Reais (R$):", "Valor da Causa",
		},
	}
}

// Extend returns a copy of a with the aliases of b appended after a's own.
// Duplicates are dropped.
func (a Aliases) Extend(b Aliases) Aliases {
	return Aliases{
		Name:          appendUnique(a.Name, b.Name),
		ProcessNumber: appendUnique(a.ProcessNumber, b.ProcessNumber),
		Timestamp:     appendUnique(a.Timestamp, b.Timestamp),
		Value:         appendUnique(a.Value, b.Value),
	}
}

func appendUnique(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, alias := range list {
			k := foldKey(alias)
			if _, dup := seen[k]; dup || alias == "" {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, alias)
		}
	}
	return out
}

// foldKey brings a key to NFC so precomposed and decomposed accents compare
// equal ("número" typed on macOS arrives decomposed).
func foldKey(key string) string {
	return norm.NFC.String(key)
}

// aliasSet is an Aliases list in folded form, ready for lookups.
type aliasSet struct {
	ordered []string
	members map[string]struct{}
}

func newAliasSet(aliases []string) aliasSet {
	set := aliasSet{
		ordered: make([]string, 0, len(aliases)),
		members: make(map[string]struct{}, len(aliases)),
	}
	for _, alias := range aliases {
		k := foldKey(alias)
		if _, dup := set.members[k]; dup {
			continue
		}
		set.members[k] = struct{}{}
		set.ordered = append(set.ordered, k)
	}
	return set
}

func (s aliasSet) has(key string) bool {
	_, ok := s.members[foldKey(key)]
	return ok
}
