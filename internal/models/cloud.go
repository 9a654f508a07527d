// Package models defines the shared data model of the rasterization
// engine: per-tile point clouds, the merged point table, the target grid
// and the assembled raster.
package models

import (
	"fmt"
	"math"

	"github.com/Datafalk/cars/pkg/geo"
)

// Cloud is one tile of triangulated 3D points laid out on the tile's
// Rows x Cols scan grid. All per-point slices are row-major and flat;
// the point at scan position (r, c) has index r*Cols + c.
type Cloud struct {
	// Rows and Cols are the dimensions of the tile's scan grid.
	Rows, Cols int

	// X, Y, Z are the point coordinates, expressed in CRS.
	X, Y, Z []float64

	// Valid holds per-point validity codes. Code 0 marks a point as
	// excluded; any non-zero code is valid. A nil slice means every
	// point is valid.
	Valid []int

	// Masks holds optional named categorical code bands (for example a
	// classification mask). NaN marks a missing code.
	Masks map[string][]float64

	// CRS is the coordinate reference system the coordinates are
	// expressed in.
	CRS geo.EPSG
}

// Len returns the number of points in the cloud.
func (c *Cloud) Len() int { return c.Rows * c.Cols }

// Check verifies that the per-point slices are consistent with the
// declared scan grid dimensions.
func (c *Cloud) Check() error {
	n := c.Len()
	if c.Rows <= 0 || c.Cols <= 0 {
		return fmt.Errorf("cloud scan grid must be non-empty, got %dx%d", c.Rows, c.Cols)
	}
	if len(c.X) != n || len(c.Y) != n || len(c.Z) != n {
		return fmt.Errorf("cloud coordinate slices must hold %d points, got x=%d y=%d z=%d",
			n, len(c.X), len(c.Y), len(c.Z))
	}
	if c.Valid != nil && len(c.Valid) != n {
		return fmt.Errorf("cloud validity codes must hold %d points, got %d", n, len(c.Valid))
	}
	for name, band := range c.Masks {
		if len(band) != n {
			return fmt.Errorf("mask band %q must hold %d points, got %d", name, n, len(band))
		}
	}
	return nil
}

// Colors is an optional fixed-length color vector per point of a Cloud,
// stored band-major: Data[b][r*Cols+c] is band b at scan position (r, c).
type Colors struct {
	Rows, Cols int
	Data       [][]float64
}

// Bands returns the number of color bands.
func (c *Colors) Bands() int { return len(c.Data) }

// Check verifies the color bands against the owning cloud's scan grid.
func (c *Colors) Check(cloud *Cloud) error {
	if c.Rows != cloud.Rows || c.Cols != cloud.Cols {
		return fmt.Errorf("color set is %dx%d but cloud is %dx%d",
			c.Rows, c.Cols, cloud.Rows, cloud.Cols)
	}
	n := c.Rows * c.Cols
	for b, band := range c.Data {
		if len(band) != n {
			return fmt.Errorf("color band %d must hold %d points, got %d", b, n, len(band))
		}
	}
	return nil
}

// PointTable is the merged, column-oriented point set produced by the
// cloud merger and consumed by the aggregators. All columns share the
// same length and a single coordinate reference system.
type PointTable struct {
	// InExtent flags points whose radius-0 cell lies inside the strict
	// target extent. Points retained only because of the on-ground and
	// radius margins carry false: they contribute to neighbor sets but
	// never to pts_in_cell or categorical votes.
	InExtent []bool

	// X, Y, Z are the point coordinates in CRS.
	X, Y, Z []float64

	// Colors holds the merged color bands, band-major, or nil when the
	// merge was performed without colors.
	Colors [][]float64

	// Masks holds the merged categorical code bands. Points originating
	// from clouds lacking a band carry NaN in that band.
	Masks map[string][]float64

	// SrcRow, SrcCol and SrcCloud identify each point's origin scan
	// position and input cloud index. They are nil unless the merge was
	// requested with coordinates.
	SrcRow, SrcCol, SrcCloud []int

	// CRS is the single coordinate reference system shared by all
	// points; uniformity is enforced at merge time.
	CRS geo.EPSG
}

// Len returns the number of points in the table.
func (t *PointTable) Len() int { return len(t.X) }

// HasMissingCode reports whether the named mask band carries the
// missing-code sentinel for the given point.
func HasMissingCode(band []float64, i int) bool {
	return math.IsNaN(band[i])
}
