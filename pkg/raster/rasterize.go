// Package raster implements the aggregation stages of the engine: the
// continuous per-cell elevation and color statistics, the categorical
// vote for mask layers, and the assembler that drives merging, indexing
// and aggregation into one multi-layer raster.
package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/Datafalk/cars/internal/models"
	"github.com/Datafalk/cars/pkg/grid"
)

// kernelWeight returns the Gaussian kernel weight for a squared distance
// d2. An infinite sigma yields uniform weights, reducing the weighted
// estimate to the plain neighborhood mean. Sigma zero is the degenerate
// kernel: full weight at the cell center, zero elsewhere.
func kernelWeight(d2, sigma float64) float64 {
	if math.IsInf(sigma, 1) {
		return 1
	}
	if sigma == 0 {
		if d2 == 0 {
			return 1
		}
		return 0
	}
	return math.Exp(-d2 / (2 * sigma * sigma))
}

// Rasterize computes the continuous layers (hgt, hgt_mean, hgt_stdev,
// n_pts, pts_in_cell and the per-band color means) of the table over the
// given grid. The neighbor index is built fresh for this call with the
// given radius and geometry.
func Rasterize(table *models.PointTable, spec models.GridSpec, sigma float64, radius int, geom grid.Geometry) (*models.Raster, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if sigma < 0 || math.IsNaN(sigma) {
		return nil, fmt.Errorf("sigma must be non-negative or +Inf, got %v", sigma)
	}

	ix := grid.Indexer{Geometry: geom}
	idx, err := ix.Index(spec, table.X, table.Y, radius)
	if err != nil {
		return nil, err
	}
	centers := grid.BuildGrid(spec)
	return aggregateContinuous(table, spec, centers, idx, sigma), nil
}

// aggregateContinuous fills the continuous layers from a prebuilt
// neighbor index. Cells are visited in internal ascending-y order and
// written at their reversed row so the output raster is north-up.
func aggregateContinuous(table *models.PointTable, spec models.GridSpec, centers []grid.Point, idx *grid.NeighborIndex, sigma float64) *models.Raster {
	cells := spec.Cells()
	out := &models.Raster{
		Grid:      spec,
		CRS:       table.CRS,
		Hgt:       make([]float64, cells),
		HgtMean:   make([]float64, cells),
		HgtStdev:  make([]float64, cells),
		NPts:      make([]int, cells),
		PtsInCell: make([]int, cells),
	}
	bands := len(table.Colors)
	if bands > 0 {
		out.Colors = make([][]float64, bands)
		for b := range out.Colors {
			out.Colors[b] = make([]float64, cells)
		}
	}

	// Radius-0 assignment of the in-extent points, counted per internal
	// cell. Margin points lie outside every cell and never count here.
	inCell := make([]int, cells)
	for i := range table.X {
		if table.InExtent != nil && !table.InExtent[i] {
			continue
		}
		col, row := spec.CellOf(table.X[i], table.Y[i])
		if spec.Contains(col, row) {
			inCell[row*spec.XSize+col]++
		}
	}

	var zs, ws, cs []float64
	for cell := 0; cell < cells; cell++ {
		row := cell / spec.XSize
		col := cell % spec.XSize
		oi := (spec.YSize-1-row)*spec.XSize + col

		nb := idx.Neighbors(cell)
		out.NPts[oi] = len(nb)
		out.PtsInCell[oi] = inCell[cell]
		if len(nb) == 0 {
			out.Hgt[oi] = math.NaN()
			out.HgtMean[oi] = math.NaN()
			out.HgtStdev[oi] = math.NaN()
			for b := 0; b < bands; b++ {
				out.Colors[b][oi] = math.NaN()
			}
			continue
		}

		center := centers[cell]
		zs = zs[:0]
		ws = ws[:0]
		for _, id := range nb {
			dx := table.X[id] - center.X
			dy := table.Y[id] - center.Y
			zs = append(zs, table.Z[id])
			ws = append(ws, kernelWeight(dx*dx+dy*dy, sigma))
		}

		out.Hgt[oi] = stat.Mean(zs, ws)
		out.HgtMean[oi] = stat.Mean(zs, nil)
		out.HgtStdev[oi] = stat.PopStdDev(zs, nil)

		for b := 0; b < bands; b++ {
			cs = cs[:0]
			for _, id := range nb {
				cs = append(cs, table.Colors[b][id])
			}
			out.Colors[b][oi] = stat.Mean(cs, nil)
		}
	}

	return out
}
