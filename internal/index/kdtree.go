package index

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// kdTree is a static 2-d tree over WGS84 points, built once per snapshot.
// Distances are haversine metres; pruning converts the axis delta to a
// metre lower bound, scaling longitude by the cosine of the query latitude
// so a branch is never discarded that could still hold the winner.
type kdTree struct {
	nodes  []kdNode
	pts    []orb.Point
	keys   []string
	root   int
	cosMin float64 // smallest cos(lat) over the data, for safe lon pruning
}

type kdNode struct {
	idx         int
	axis        int
	left, right int // -1 = none
}

// metersPerDegree deliberately undershoots the true ~111195 m/degree so the
// derived axis-delta bound never exceeds the haversine distance.
const (
	metersPerDegree = 111000.0
	tieEpsMeters    = 1e-6
)

// newKDTree indexes pts; keys break exact distance ties deterministically
// (the lower key wins). Both slices must have equal length.
func newKDTree(pts []orb.Point, keys []string) *kdTree {
	t := &kdTree{pts: pts, keys: keys, root: -1, cosMin: 1}
	if len(pts) == 0 {
		return t
	}
	idxs := make([]int, len(pts))
	for i := range idxs {
		idxs[i] = i
		if c := math.Cos(pts[i].Lat() * math.Pi / 180); c < t.cosMin {
			t.cosMin = c
		}
	}
	t.nodes = make([]kdNode, 0, len(pts))
	t.root = t.build(idxs, 0)
	return t
}

func (t *kdTree) build(idxs []int, depth int) int {
	if len(idxs) == 0 {
		return -1
	}
	axis := depth % 2
	sort.Slice(idxs, func(a, b int) bool {
		return t.pts[idxs[a]][axis] < t.pts[idxs[b]][axis]
	})
	mid := len(idxs) / 2
	n := len(t.nodes)
	t.nodes = append(t.nodes, kdNode{idx: idxs[mid], axis: axis, left: -1, right: -1})
	// children are built after the append so the slice does not move under us
	left := t.build(idxs[:mid], depth+1)
	right := t.build(idxs[mid+1:], depth+1)
	t.nodes[n].left = left
	t.nodes[n].right = right
	return n
}

// Nearest returns the index of the closest point and its distance in
// metres. ok is false only for an empty tree.
func (t *kdTree) Nearest(q orb.Point) (idx int, meters float64, ok bool) {
	if t.root < 0 {
		return 0, 0, false
	}
	best := -1
	bestD := math.Inf(1)
	cos := math.Min(t.cosMin, math.Cos(q.Lat()*math.Pi/180))
	lonScale := metersPerDegree * cos
	if lonScale < 1 {
		// near the poles longitude deltas prove nothing, stop pruning on them
		lonScale = 1e-9
	}

	var walk func(ni int)
	walk = func(ni int) {
		if ni < 0 {
			return
		}
		n := t.nodes[ni]
		d := geo.Distance(q, t.pts[n.idx])
		if d < bestD-tieEpsMeters {
			best, bestD = n.idx, d
		} else if math.Abs(d-bestD) <= tieEpsMeters && best >= 0 && t.keys[n.idx] < t.keys[best] {
			best = n.idx
		}

		delta := q[n.axis] - t.pts[n.idx][n.axis]
		near, far := n.left, n.right
		if delta > 0 {
			near, far = far, near
		}
		walk(near)
		scale := metersPerDegree
		if n.axis == 0 {
			scale = lonScale
		}
		if math.Abs(delta)*scale <= bestD+tieEpsMeters {
			walk(far)
		}
	}
	walk(t.root)
	return best, bestD, true
}
