package duplicates

// UnionFind is a disjoint-set forest over string ids with union by rank and
// path compression. The zero value is not usable; use NewUnionFind.
type UnionFind struct {
	parent map[string]string
	rank   map[string]int
}

// NewUnionFind returns an empty forest sized for roughly n ids.
func NewUnionFind(n int) *UnionFind {
	return &UnionFind{
		parent: make(map[string]string, n),
		rank:   make(map[string]int, n),
	}
}

// Add makes id a singleton set if it is not already known.
func (u *UnionFind) Add(id string) {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
	}
}

// Find returns the representative of id's set, adding id if unknown.
func (u *UnionFind) Find(id string) string {
	u.Add(id)
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for id != root {
		next := u.parent[id]
		u.parent[id] = root
		id = next
	}
	return root
}

// Union merges the sets containing a and b. It reports whether they were
// previously disjoint.
func (u *UnionFind) Union(a, b string) bool {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return false
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
	return true
}

// Connected reports whether a and b are in the same set.
func (u *UnionFind) Connected(a, b string) bool {
	return u.Find(a) == u.Find(b)
}

// Len returns the number of ids in the forest.
func (u *UnionFind) Len() int {
	return len(u.parent)
}
