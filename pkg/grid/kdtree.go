package grid

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// point2D is a 2D point carrying its index in the source table, used for
// the Euclidean-disk range queries.
type point2D struct {
	x, y float64
	id   int
}

// Compare implements the kdtree.Comparable interface.
func (p point2D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point2D)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree.
func (p point2D) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points.
func (p point2D) Distance(c kdtree.Comparable) float64 {
	q := c.(point2D)
	dx := p.x - q.x
	dy := p.y - q.y
	return dx*dx + dy*dy
}

// pointSet is a collection of point2D that satisfies kdtree.Interface.
type pointSet []point2D

func (p pointSet) Index(i int) kdtree.Comparable         { return p[i] }
func (p pointSet) Len() int                              { return len(p) }
func (p pointSet) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method.
func (p pointSet) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{pointSet: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{pointSet: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for pointSet.
type pointPlane struct {
	pointSet
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.pointSet[i].x < p.pointSet[j].x
	case 1:
		return p.pointSet[i].y < p.pointSet[j].y
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{pointSet: p.pointSet[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.pointSet[i], p.pointSet[j] = p.pointSet[j], p.pointSet[i]
}

// pointTree wraps a kd-tree over an indexed point set.
type pointTree struct {
	tree *kdtree.Tree
}

// newPointTree builds a kd-tree over the given coordinates. The tree is
// rebuilt for every indexing call; no state survives between calls.
func newPointTree(x, y []float64) *pointTree {
	pts := make(pointSet, len(x))
	for i := range x {
		pts[i] = point2D{x: x[i], y: y[i], id: i}
	}
	return &pointTree{tree: kdtree.New(pts, true)}
}

// within returns the ids of all points within r of (x, y), boundary
// inclusive. The keeper threshold is squared to match point2D.Distance.
func (t *pointTree) within(x, y, r float64) []int {
	keeper := kdtree.NewDistKeeper(r * r)
	t.tree.NearestSet(keeper, point2D{x: x, y: y})

	ids := make([]int, 0, keeper.Heap.Len())
	for _, c := range keeper.Heap {
		if c.Comparable == nil {
			continue
		}
		ids = append(ids, c.Comparable.(point2D).id)
	}
	return ids
}
