package records

import "sort"

// Merge combines incoming records with an existing list.
//
// Incoming records are placed ahead of existing ones, so for a given identity
// key the incoming record wins. Later duplicates are dropped and the result is
// stable-sorted by timestamp, newest first. Neither input is modified.
func Merge(existing List, incoming []Record) List {
	out := make(List, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))

	add := func(r Record) {
		key := r.Key()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	for _, r := range incoming {
		add(r)
	}
	for _, r := range existing {
		add(r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Time.After(out[j].Timestamp.Time)
	})
	return out
}

// Upsert merges a single record into list.
func Upsert(list List, r Record) List {
	return Merge(list, []Record{r})
}
