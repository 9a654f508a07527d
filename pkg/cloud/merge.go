// Package cloud implements the merging of per-tile point clouds into a
// single point table ready for aggregation. Merging trims tile-overlap
// margins, drops excluded points, clips to the target extent expanded by
// the aggregation margins, and enforces a uniform coordinate reference
// system across the inputs.
package cloud

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/Datafalk/cars/internal/models"
	"github.com/Datafalk/cars/pkg/geo"
)

var (
	// ErrNoClouds is returned when the merge receives no input clouds.
	ErrNoClouds = errors.New("no input cloud to merge")

	// ErrCloudColorMismatch is returned when the number of color sets
	// differs from the number of clouds.
	ErrCloudColorMismatch = errors.New("there must be as many clouds as color sets")

	// ErrMixedCRS is returned when input clouds carry different
	// coordinate reference systems and no reprojector is available.
	// Mixing coordinate systems silently would corrupt the raster, so
	// this is treated as a precondition violation.
	ErrMixedCRS = errors.New("input clouds carry mixed coordinate systems")
)

// Params configures one merge call.
type Params struct {
	// TargetCRS is the coordinate reference system of the output table.
	TargetCRS geo.EPSG

	// Grid is the target raster grid used for extent clipping and the
	// strict-extent flags. A nil grid disables clipping: every
	// non-excluded point is retained and flagged in-extent. The
	// assembler uses that mode to compute a default extent.
	Grid *models.GridSpec

	// OnGroundMargin and Radius together widen the clipping extent by
	// (OnGroundMargin+Radius) cells on every side, so that points just
	// outside the raster still feed the edge cells' neighbor sets.
	OnGroundMargin int
	Radius         int

	// TileBorderMargin drops points within that many cells of the
	// tile's own local scan edges, independent of ground position.
	TileBorderMargin int

	// WithCoords requests the source row, column and cloud index
	// columns in the output table.
	WithCoords bool
}

// Merger combines per-tile point clouds into one PointTable.
type Merger struct {
	// Reproject converts clouds whose coordinate system differs from
	// the target. When nil, any mixed-CRS input fails with ErrMixedCRS.
	Reproject geo.Reprojector
}

// Merge combines the clouds into a single point table in the target
// coordinate system. Colors may be nil; otherwise it must hold one color
// set per cloud. Rows are concatenated in input-cloud order, each
// cloud's rows in its row-major scan order.
func (m Merger) Merge(clouds []*models.Cloud, colors []*models.Colors, p Params) (*models.PointTable, error) {
	if len(clouds) == 0 {
		return nil, ErrNoClouds
	}
	if colors != nil && len(colors) != len(clouds) {
		return nil, fmt.Errorf("%w: %d clouds, %d color sets", ErrCloudColorMismatch, len(clouds), len(colors))
	}
	if p.OnGroundMargin < 0 || p.TileBorderMargin < 0 || p.Radius < 0 {
		return nil, fmt.Errorf("margins and radius must be non-negative, got on_ground=%d border=%d radius=%d",
			p.OnGroundMargin, p.TileBorderMargin, p.Radius)
	}

	bands := 0
	for i, c := range clouds {
		if err := c.Check(); err != nil {
			return nil, fmt.Errorf("cloud %d: %w", i, err)
		}
		if colors == nil {
			continue
		}
		if colors[i] == nil {
			return nil, fmt.Errorf("%w: color set %d is missing", ErrCloudColorMismatch, i)
		}
		if err := colors[i].Check(c); err != nil {
			return nil, fmt.Errorf("color set %d: %w", i, err)
		}
		if i == 0 {
			bands = colors[i].Bands()
		} else if colors[i].Bands() != bands {
			return nil, fmt.Errorf("color set %d has %d bands, want %d", i, colors[i].Bands(), bands)
		}
	}

	var clip r2.Rect
	hasClip := p.Grid != nil
	if hasClip {
		if err := p.Grid.Validate(); err != nil {
			return nil, err
		}
		margin := float64(p.OnGroundMargin+p.Radius) * p.Grid.Resolution
		clip = r2.RectFromPoints(
			r2.Point{X: p.Grid.XStart, Y: p.Grid.YBottom()},
			r2.Point{X: p.Grid.XStart + float64(p.Grid.XSize)*p.Grid.Resolution, Y: p.Grid.YStart},
		).ExpandedByMargin(margin)
	}

	maskNames := maskBandNames(clouds)

	out := &models.PointTable{CRS: p.TargetCRS}
	if colors != nil {
		out.Colors = make([][]float64, bands)
	}
	if len(maskNames) > 0 {
		out.Masks = make(map[string][]float64, len(maskNames))
		for _, name := range maskNames {
			out.Masks[name] = nil
		}
	}
	if p.WithCoords {
		out.SrcRow = []int{}
		out.SrcCol = []int{}
		out.SrcCloud = []int{}
	}

	for ci, c := range clouds {
		x, y, z := c.X, c.Y, c.Z
		if c.CRS != p.TargetCRS {
			if m.Reproject == nil {
				return nil, fmt.Errorf("%w: cloud %d is in %s, target is %s",
					ErrMixedCRS, ci, c.CRS, p.TargetCRS)
			}
			x = append([]float64(nil), c.X...)
			y = append([]float64(nil), c.Y...)
			z = append([]float64(nil), c.Z...)
			if err := m.Reproject.Convert(x, y, z, c.CRS, p.TargetCRS); err != nil {
				return nil, fmt.Errorf("reprojecting cloud %d from %s to %s: %w", ci, c.CRS, p.TargetCRS, err)
			}
		}

		border := p.TileBorderMargin
		for r := border; r < c.Rows-border; r++ {
			for cc := border; cc < c.Cols-border; cc++ {
				i := r*c.Cols + cc
				if c.Valid != nil && c.Valid[i] == 0 {
					continue
				}
				px, py, pz := x[i], y[i], z[i]
				if math.IsNaN(px) || math.IsNaN(py) || math.IsNaN(pz) {
					continue
				}

				inExtent := true
				if hasClip {
					if !clip.ContainsPoint(r2.Point{X: px, Y: py}) {
						continue
					}
					col, row := p.Grid.CellOf(px, py)
					inExtent = p.Grid.Contains(col, row)
				}

				out.InExtent = append(out.InExtent, inExtent)
				out.X = append(out.X, px)
				out.Y = append(out.Y, py)
				out.Z = append(out.Z, pz)
				for b := 0; b < bands; b++ {
					out.Colors[b] = append(out.Colors[b], colors[ci].Data[b][i])
				}
				for _, name := range maskNames {
					code := math.NaN()
					if band, ok := c.Masks[name]; ok {
						code = band[i]
					}
					out.Masks[name] = append(out.Masks[name], code)
				}
				if p.WithCoords {
					out.SrcRow = append(out.SrcRow, r)
					out.SrcCol = append(out.SrcCol, cc)
					out.SrcCloud = append(out.SrcCloud, ci)
				}
			}
		}
	}

	return out, nil
}

// maskBandNames returns the sorted union of mask band names across all
// clouds. Sorting keeps the merged table deterministic.
func maskBandNames(clouds []*models.Cloud) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range clouds {
		for name := range c.Masks {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
