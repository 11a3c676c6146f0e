package duplicates

import (
	"fmt"
	"regexp"
	"sort"
)

const groupIDPrefix = "group-"

var groupIDPattern = regexp.MustCompile(`^group-[1-9][0-9]*$`)

// GroupID formats the identifier of the n-th group (1-based) of a run.
func GroupID(n int) string {
	return fmt.Sprintf("%s%d", groupIDPrefix, n)
}

// ValidateGroupID checks that id has the shape produced by GroupPairs.
func ValidateGroupID(id string) error {
	if !groupIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidGroupID, id)
	}
	return nil
}

// GroupPairs clusters pairs into transitive duplicate groups: two entries share
// a group iff a chain of pairs connects them. The member sets do not depend on
// input order. Groups are ordered by their smallest member id and numbered in
// that order.
func GroupPairs(pairs []DuplicatePair) []DuplicateGroup {
	if len(pairs) == 0 {
		return []DuplicateGroup{}
	}

	uf := NewUnionFind(len(pairs) * 2)
	for _, p := range pairs {
		if p.ID1 == p.ID2 {
			continue
		}
		uf.Union(p.ID1, p.ID2)
	}

	buckets := make(map[string][]DuplicatePair)
	members := make(map[string]map[string]struct{})
	for _, p := range pairs {
		if p.ID1 == p.ID2 {
			continue
		}
		root := uf.Find(p.ID1)
		buckets[root] = append(buckets[root], p)
		set, ok := members[root]
		if !ok {
			set = make(map[string]struct{})
			members[root] = set
		}
		set[p.ID1] = struct{}{}
		set[p.ID2] = struct{}{}
	}

	groups := make([]DuplicateGroup, 0, len(buckets))
	for root, bucket := range buckets {
		ids := make([]string, 0, len(members[root]))
		for id := range members[root] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		groups = append(groups, newGroup(ids, bucket))
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].MemberIDs[0] < groups[j].MemberIDs[0]
	})
	for i := range groups {
		groups[i].GroupID = GroupID(i + 1)
	}
	return groups
}

func newGroup(memberIDs []string, pairs []DuplicatePair) DuplicateGroup {
	return DuplicateGroup{
		MemberIDs:       memberIDs,
		Pairs:           pairs,
		DetectionMethod: AggregateMethod(pairs),
		Confidence:      AggregateConfidence(pairs),
		AvgSimilarity:   AverageSimilarity(pairs),
	}
}
