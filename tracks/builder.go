// Package tracks implements the track builder of spec.md §4.4: fusing
// pairwise feature matches into multi-view tracks and removing conflicts.
package tracks

import (
	"sort"

	"github.com/golang/geo/r2"
	"github.com/rigcal/rigcal/features"
)

// Track maps acquisition index (`cid`) to feature index (`fid`) within that
// acquisition, per spec.md §3: "within one track, each cid appears at most
// once; every track has >= 2 members after filtering".
type Track map[int]int

// node identifies a single (cid, fid) observation, the union-find element.
type node struct {
	cid, fid int
}

// CanonicalizeFeatureIDs implements spec.md §4.4 step 1: assign each distinct
// distorted pixel (x, y) within one acquisition a unique feature id via a map
// keyed on (x, y), ids numbered in order of first appearance in pixels (not
// in coordinate order). Feature sources that already
// hand out a stable fid per keypoint (as this workspace's features.Frame
// does, per spec.md §3's "fid is an index into that list") produce an
// identity mapping here; this function exists for sources that instead
// report raw per-pair pixel coordinates needing canonicalization across
// pairs, so the described algorithm is fully implemented rather than assumed
// away.
func CanonicalizeFeatureIDs(pixels []r2.Point) ([]int, []r2.Point) {
	seen := make(map[r2.Point]int, len(pixels))
	ordered := make([]r2.Point, 0, len(pixels))
	fids := make([]int, len(pixels))
	for i, p := range pixels {
		if id, ok := seen[p]; ok {
			fids[i] = id
			continue
		}
		id := len(ordered)
		seen[p] = id
		ordered = append(ordered, p)
		fids[i] = id
	}
	return fids, ordered
}

// Build implements spec.md §4.4 steps 2-3: union-find fusion of the pairwise
// match map into tracks, then dropping any track that assigns two distinct
// feature ids to the same acquisition. Traversal is over pairKeys sorted by
// (I, J) and, within a pair, by match order, so that pid assignment is
// deterministic given identical inputs, per spec.md §5's reproducibility
// requirement ("track ids are assigned deterministically by the traversal
// order of an ordered pair map").
func Build(matches map[features.PairKey][]features.Match) []Track {
	uf := newUnionFind()

	pairKeys := make([]features.PairKey, 0, len(matches))
	for k := range matches {
		pairKeys = append(pairKeys, k)
	}
	sort.Slice(pairKeys, func(a, b int) bool {
		if pairKeys[a].I != pairKeys[b].I {
			return pairKeys[a].I < pairKeys[b].I
		}
		return pairKeys[a].J < pairKeys[b].J
	})

	for _, key := range pairKeys {
		for _, m := range matches[key] {
			a := node{cid: key.I, fid: m.FidA}
			b := node{cid: key.J, fid: m.FidB}
			uf.union(a, b)
		}
	}

	groups := uf.groups()

	tracks := make([]Track, 0, len(groups))
	for _, members := range groups {
		track := make(Track)
		conflicted := false
		for _, n := range members {
			if existing, ok := track[n.cid]; ok && existing != n.fid {
				conflicted = true
				continue
			}
			track[n.cid] = n.fid
		}
		if conflicted {
			continue
		}
		if len(track) < 2 {
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks
}

// unionFind is a standard disjoint-set over `node` keys with path
// compression and union by rank, iterated in the deterministic group order
// of first discovery (see groups).
type unionFind struct {
	parent map[node]node
	rank   map[node]int
	order  []node
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[node]node{}, rank: map[node]int{}}
}

func (u *unionFind) find(n node) node {
	if _, ok := u.parent[n]; !ok {
		u.parent[n] = n
		u.rank[n] = 0
		u.order = append(u.order, n)
		return n
	}
	if u.parent[n] != n {
		u.parent[n] = u.find(u.parent[n])
	}
	return u.parent[n]
}

func (u *unionFind) union(a, b node) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

// groups returns each disjoint set's members, grouped in first-discovery
// order of the set's elements (which is itself the deterministic traversal
// order of Build's sorted pair-key loop).
func (u *unionFind) groups() [][]node {
	byRoot := make(map[node][]node)
	var roots []node
	for _, n := range u.order {
		root := u.find(n)
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], n)
	}
	out := make([][]node, len(roots))
	for i, r := range roots {
		out[i] = byRoot[r]
	}
	return out
}
