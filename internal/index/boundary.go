package index

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// BoundaryIndex answers point-in-municipality queries. An R-tree over the
// boundary bounding boxes prefilters candidates; the even-odd containment
// test runs only on those.
type BoundaryIndex struct {
	tree  *rtreego.Rtree
	munis []model.Municipality
}

type boundaryEntry struct {
	rect rtreego.Rect
	idx  int
}

func (e *boundaryEntry) Bounds() rtreego.Rect { return e.rect }

// NewBoundaryIndex builds the index. Municipalities without a usable
// boundary are kept out of the tree but remain in the slice so callers can
// still enumerate them.
func NewBoundaryIndex(munis []model.Municipality) *BoundaryIndex {
	b := &BoundaryIndex{
		tree:  rtreego.NewTree(2, 25, 50),
		munis: munis,
	}
	for i, m := range munis {
		if len(m.Boundary) == 0 {
			continue
		}
		bound := m.Boundary.Bound()
		lengths := []float64{bound.Max.Lon() - bound.Min.Lon(), bound.Max.Lat() - bound.Min.Lat()}
		for j, l := range lengths {
			if l <= 0 {
				lengths[j] = 1e-9
			}
		}
		rect, err := rtreego.NewRect(rtreego.Point{bound.Min.Lon(), bound.Min.Lat()}, lengths)
		if err != nil {
			continue
		}
		b.tree.Insert(&boundaryEntry{rect: rect, idx: i})
	}
	return b
}

// Find returns the municipality containing p, if any. Boundaries do not
// overlap, so the first containment hit wins.
func (b *BoundaryIndex) Find(p orb.Point) (model.Municipality, bool) {
	probe := rtreego.Point{p.Lon(), p.Lat()}.ToRect(1e-9)
	for _, hit := range b.tree.SearchIntersect(probe) {
		m := b.munis[hit.(*boundaryEntry).idx]
		if planar.MultiPolygonContains(m.Boundary, p) {
			return m, true
		}
	}
	return model.Municipality{}, false
}
