package spatial

import "gonum.org/v1/gonum/spatial/kdtree"

// entry is one indexed element: the representative point of a
// childless node, or the bounding rectangle of a block's children.
// Points carry a degenerate rectangle. The tree organizes entries by
// their centers; distances respect the full extent.
type entry struct {
	ID                     uint32
	MinX, MinY, MaxX, MaxY float64
}

func pointEntry(id uint32, x, y float64) entry {
	return entry{ID: id, MinX: x, MinY: y, MaxX: x, MaxY: y}
}

// IsPoint reports whether the entry has no extent.
func (e entry) IsPoint() bool {
	return e.MinX == e.MaxX && e.MinY == e.MaxY
}

func (e entry) center(d kdtree.Dim) float64 {
	if d == 0 {
		return (e.MinX + e.MaxX) / 2
	}
	return (e.MinY + e.MaxY) / 2
}

// Compare returns the signed distance of e from the plane through c
// in dimension d, taken between centers.
func (e entry) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return e.center(d) - c.(entry).center(d)
}

// Dims returns the number of dimensions.
func (e entry) Dims() int { return 2 }

// Distance returns the squared gap between the rectangles of e and c
// in degree space, zero when they touch or overlap.
func (e entry) Distance(c kdtree.Comparable) float64 {
	o := c.(entry)
	var dx, dy float64
	if gap := e.MinX - o.MaxX; gap > 0 {
		dx = gap
	} else if gap := o.MinX - e.MaxX; gap > 0 {
		dx = gap
	}
	if gap := e.MinY - o.MaxY; gap > 0 {
		dy = gap
	} else if gap := o.MinY - e.MaxY; gap > 0 {
		dy = gap
	}
	return dx*dx + dy*dy
}

// entries implements kdtree.Interface for tree construction.
type entries []entry

func (e entries) Index(i int) kdtree.Comparable { return e[i] }
func (e entries) Len() int                      { return len(e) }
func (e entries) Slice(start, end int) kdtree.Interface {
	return e[start:end]
}
func (e entries) Pivot(d kdtree.Dim) int {
	return entryPlane{entries: e, Dim: d}.Pivot()
}

// entryPlane sorts entries along one dimension for pivot selection.
type entryPlane struct {
	entries
	kdtree.Dim
}

func (p entryPlane) Less(i, j int) bool {
	return p.entries[i].center(p.Dim) < p.entries[j].center(p.Dim)
}
func (p entryPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
func (p entryPlane) Slice(start, end int) kdtree.SortSlicer {
	p.entries = p.entries[start:end]
	return p
}
func (p entryPlane) Swap(i, j int) {
	p.entries[i], p.entries[j] = p.entries[j], p.entries[i]
}
