package duplicates

import (
	"sort"
	"strings"
)

// SortedIDs returns a sorted copy of ids with duplicates and blanks removed.
func SortedIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DismissalKey is the order-independent key of an entry set: the sorted ids
// joined by commas.
func DismissalKey(ids []string) string {
	return strings.Join(SortedIDs(ids), ",")
}
