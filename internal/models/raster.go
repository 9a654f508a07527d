package models

import (
	"math"

	"github.com/Datafalk/cars/pkg/geo"
)

// Raster is the assembled multi-layer output of one rasterization call.
// All layers share the grid shape (YSize rows by XSize columns) in
// north-up orientation: row 0 is the northernmost row. A Raster is
// immutable once assembled.
type Raster struct {
	Grid GridSpec
	CRS  geo.EPSG

	// Hgt is the Gaussian-kernel-weighted elevation estimate; HgtMean
	// and HgtStdev are the unweighted mean and population standard
	// deviation of the neighbor elevations. Cells with no contributing
	// point hold NaN.
	Hgt, HgtMean, HgtStdev []float64

	// NPts counts every neighbor of a cell at the configured radius;
	// PtsInCell counts only the in-extent points whose radius-0 cell is
	// that cell, so PtsInCell <= NPts always.
	NPts, PtsInCell []int

	// Colors holds the per-band unweighted color means, band-major, in
	// the input band order.
	Colors [][]float64

	// Masks holds one categorical layer per requested mask band. Cells
	// without data hold NaN; ambiguous votes hold the configured
	// undefined value.
	Masks map[string][]float64
}

// Index returns the flat index of north-up cell (row, col).
func (r *Raster) Index(row, col int) int {
	return row*r.Grid.XSize + col
}

// CodeState describes the outcome of a categorical vote for one cell.
type CodeState int

const (
	// CodeNoData marks a cell with no contributing point, or one whose
	// vote was poisoned by a missing code.
	CodeNoData CodeState = iota

	// CodeValue marks a cell with a winning code.
	CodeValue

	// CodeAmbiguous marks a cell where the top two competing non-zero
	// codes tied in total weight.
	CodeAmbiguous
)

// CellCode is the internal variant result of a categorical vote. Keeping
// absence of data and ambiguity as distinct states until the output
// boundary prevents the two sentinels from collapsing into one value.
type CellCode struct {
	State CodeState
	Code  float64
}

// Float converts the vote outcome to its output representation: NaN for
// no data, the caller-configured sentinel for ambiguity, and the code
// itself otherwise.
func (c CellCode) Float(undefined float64) float64 {
	switch c.State {
	case CodeValue:
		return c.Code
	case CodeAmbiguous:
		return undefined
	default:
		return math.NaN()
	}
}
