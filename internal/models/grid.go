package models

import (
	"fmt"
	"math"
)

// Extent is the placement and size of a target raster: XStart is the x
// coordinate of the western edge, YStart the y coordinate of the northern
// edge, and XSize/YSize the grid dimensions in cells.
type Extent struct {
	XStart, YStart float64
	XSize, YSize   int
}

// GridSpec fully describes a target raster grid. Cell (row i, column j)
// in north-up orientation has its center at
//
//	x = XStart + (j+0.5)*Resolution
//	y = YStart - (i+0.5)*Resolution
//
// Internally cells are enumerated in ascending-y order and reversed
// during assembly to obtain the north-up raster.
type GridSpec struct {
	Extent
	Resolution float64
}

// Cells returns the total number of cells in the grid.
func (g GridSpec) Cells() int { return g.XSize * g.YSize }

// YBottom returns the y coordinate of the southern edge of the grid.
func (g GridSpec) YBottom() float64 {
	return g.YStart - float64(g.YSize)*g.Resolution
}

// CellOf returns the column and ascending-y row of the cell the point
// falls in. The returned indices may lie outside the grid for points in
// the margin area; use Contains to test membership.
func (g GridSpec) CellOf(x, y float64) (col, row int) {
	col = int(math.Floor((x - g.XStart) / g.Resolution))
	row = int(math.Floor((y - g.YBottom()) / g.Resolution))
	return col, row
}

// Contains reports whether the cell (col, row) lies inside the grid.
func (g GridSpec) Contains(col, row int) bool {
	return col >= 0 && col < g.XSize && row >= 0 && row < g.YSize
}

// Validate checks the grid parameters, failing fast before any point is
// processed.
func (g GridSpec) Validate() error {
	if g.Resolution <= 0 || math.IsNaN(g.Resolution) || math.IsInf(g.Resolution, 0) {
		return fmt.Errorf("grid resolution must be a positive finite number, got %v", g.Resolution)
	}
	if g.XSize <= 0 || g.YSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %dx%d", g.XSize, g.YSize)
	}
	return nil
}
