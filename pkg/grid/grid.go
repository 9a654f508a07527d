// Package grid implements the spatial indexing stage of the
// rasterization engine: construction of the target grid's cell centers
// and, for every cell, the set of point indices within a configurable
// search radius.
package grid

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Datafalk/cars/internal/models"
)

// Point is a 2D cell center position.
type Point struct {
	X, Y float64
}

// Geometry selects how "within radius" is interpreted when collecting a
// cell's neighbors.
type Geometry int

const (
	// SquareWindow collects points in the axis-aligned window of radius
	// cells around the target cell (Chebyshev metric on cell indices).
	// This is the default geometry.
	SquareWindow Geometry = iota

	// EuclideanDisk collects points within radius*resolution of the
	// cell center, boundary inclusive.
	EuclideanDisk
)

// ParseGeometry converts a configuration string to a Geometry.
func ParseGeometry(s string) (Geometry, error) {
	switch s {
	case "", "square":
		return SquareWindow, nil
	case "disk":
		return EuclideanDisk, nil
	}
	return 0, fmt.Errorf("unknown neighbor geometry %q (want \"square\" or \"disk\")", s)
}

// String returns the configuration name of the geometry.
func (g Geometry) String() string {
	if g == EuclideanDisk {
		return "disk"
	}
	return "square"
}

// BuildGrid returns the XSize*YSize cell centers of the grid, row-major
// in ascending-y order: the first XSize entries form the southernmost
// row. The raster assembler reverses rows at the end to obtain the
// north-up output orientation.
func BuildGrid(spec models.GridSpec) []Point {
	centers := make([]Point, 0, spec.Cells())
	yBottom := spec.YBottom()
	for i := 0; i < spec.YSize; i++ {
		y := yBottom + (float64(i)+0.5)*spec.Resolution
		for j := 0; j < spec.XSize; j++ {
			x := spec.XStart + (float64(j)+0.5)*spec.Resolution
			centers = append(centers, Point{X: x, Y: y})
		}
	}
	return centers
}

// NeighborIndex is a compressed mapping from each grid cell to the list
// of point indices within the search radius. Cells follow the same
// ascending-y row-major order as BuildGrid. It is rebuilt fresh on every
// invocation and carries no cross-call state.
type NeighborIndex struct {
	// IDs holds the point indices of all cells, concatenated.
	IDs []int

	// Start holds, per cell, the offset of its first entry in IDs. It
	// has Cells()+1 entries so that Start[c+1] is always valid.
	Start []int

	// Count holds the number of neighbors per cell.
	Count []int
}

// Neighbors returns the point indices contributing to the given cell.
func (n *NeighborIndex) Neighbors(cell int) []int {
	return n.IDs[n.Start[cell]:n.Start[cell+1]]
}

// Indexer builds neighbor indexes for a grid and point set.
type Indexer struct {
	// Geometry selects the neighbor-search geometry. The zero value is
	// SquareWindow.
	Geometry Geometry

	// Log receives debug records during indexing; nil disables logging.
	Log *slog.Logger
}

// Index builds the neighbor index of the grid for the given points and
// integer radius in cell units. Radius 0 means nearest-cell binning:
// each point contributes only to the cell it falls in. Points in the
// margin area outside the grid still contribute to edge cells whenever
// the search window reaches their position.
func (ix Indexer) Index(spec models.GridSpec, x, y []float64, radius int) (*NeighborIndex, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("neighbor radius must be non-negative, got %d", radius)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("coordinate slices must have equal length, got x=%d y=%d", len(x), len(y))
	}

	var idx *NeighborIndex
	if ix.Geometry == EuclideanDisk && radius > 0 {
		idx = indexDisk(spec, x, y, radius)
	} else {
		idx = indexWindow(spec, x, y, radius)
	}

	if ix.Log != nil {
		ix.Log.Debug("neighbor index built",
			"cells", spec.Cells(),
			"points", len(x),
			"radius", radius,
			"geometry", ix.Geometry.String(),
			"entries", len(idx.IDs))
	}
	return idx, nil
}

// indexWindow bins every point into the unbounded cell lattice aligned
// with the grid, then collects for each cell the bins of the
// (2*radius+1)^2 window around it. Margin bins outside the grid are kept
// so that out-of-extent points reach edge cells.
func indexWindow(spec models.GridSpec, x, y []float64, radius int) *NeighborIndex {
	type bin struct{ col, row int }
	bins := make(map[bin][]int)
	for i := range x {
		col, row := spec.CellOf(x[i], y[i])
		if col < -radius || col >= spec.XSize+radius || row < -radius || row >= spec.YSize+radius {
			continue
		}
		b := bin{col, row}
		bins[b] = append(bins[b], i)
	}

	cells := spec.Cells()
	idx := &NeighborIndex{
		Start: make([]int, cells+1),
		Count: make([]int, cells),
	}
	cell := 0
	for row := 0; row < spec.YSize; row++ {
		for col := 0; col < spec.XSize; col++ {
			idx.Start[cell] = len(idx.IDs)
			for dr := -radius; dr <= radius; dr++ {
				for dc := -radius; dc <= radius; dc++ {
					idx.IDs = append(idx.IDs, bins[bin{col + dc, row + dr}]...)
				}
			}
			idx.Count[cell] = len(idx.IDs) - idx.Start[cell]
			cell++
		}
	}
	idx.Start[cells] = len(idx.IDs)
	return idx
}

// indexDisk collects, for each cell, the points within radius*resolution
// of its center using a kd-tree range query. Results are sorted so the
// index is deterministic regardless of tree layout.
func indexDisk(spec models.GridSpec, x, y []float64, radius int) *NeighborIndex {
	cells := spec.Cells()
	idx := &NeighborIndex{
		Start: make([]int, cells+1),
		Count: make([]int, cells),
	}
	if len(x) == 0 {
		return idx
	}

	tree := newPointTree(x, y)
	search := float64(radius) * spec.Resolution
	centers := BuildGrid(spec)
	for cell, c := range centers {
		idx.Start[cell] = len(idx.IDs)
		found := tree.within(c.X, c.Y, search)
		sort.Ints(found)
		idx.IDs = append(idx.IDs, found...)
		idx.Count[cell] = len(found)
	}
	idx.Start[cells] = len(idx.IDs)
	return idx
}
