package cluster

// unionFind is a classic disjoint-set forest with path compression and
// union by rank. Merging through it is transitive: if A unions with B and B
// with C, all three end up in one set even when A and C were never compared
// directly. Keys are normalized surface strings.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// add registers key as its own singleton set if unseen.
func (u *unionFind) add(key string) {
	if _, ok := u.parent[key]; !ok {
		u.parent[key] = key
		u.rank[key] = 0
	}
}

// find returns the set representative for key, compressing the path walked.
func (u *unionFind) find(key string) string {
	root := key
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[key] != root {
		key, u.parent[key] = u.parent[key], root
	}
	return root
}

// union merges the sets containing a and b. Both must have been added.
func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Union by rank keeps the forest shallow. On equal rank, pick the
	// lexicographically smaller root so the structure itself is
	// deterministic regardless of union order.
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	case ra < rb:
		u.parent[rb] = ra
		u.rank[ra]++
	default:
		u.parent[ra] = rb
		u.rank[rb]++
	}
}
