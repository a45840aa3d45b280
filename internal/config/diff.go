package config

import (
	"encoding/json"
	"hash/fnv"
	"sort"
)

// ProfileHash returns a stable 64-bit hash of a profile definition.
// Key order and whitespace do not matter; only the canonical content does.
func ProfileHash(p ProfileConfig) uint64 {
	b, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// DiffProfiles computes the set differences between two profile maps.
// Names present in both but with differing definitions land in changed.
// All three slices are sorted for stable reporting.
func DiffProfiles(oldM, newM map[string]ProfileConfig) (added, removed, changed []string) {
	for name, np := range newM {
		op, ok := oldM[name]
		if !ok {
			added = append(added, name)
			continue
		}
		if ProfileHash(op) != ProfileHash(np) {
			changed = append(changed, name)
		}
	}
	for name := range oldM {
		if _, ok := newM[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}
