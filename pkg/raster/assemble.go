package raster

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/Datafalk/cars/internal/models"
	"github.com/Datafalk/cars/pkg/cloud"
	"github.com/Datafalk/cars/pkg/geo"
	"github.com/Datafalk/cars/pkg/grid"
)

// Request describes one complete rasterization call: the input clouds,
// the target grid placement and the aggregation parameters.
type Request struct {
	// Clouds are the per-tile input point clouds. Colors, when not nil,
	// must hold one color set per cloud.
	Clouds []*models.Cloud
	Colors []*models.Colors

	// CRS is the coordinate system of the output raster. Input clouds
	// in a different system are reprojected through the assembler's
	// merger, or rejected when no reprojector is configured.
	CRS geo.EPSG

	// Resolution is the cell size of the output raster.
	Resolution float64

	// Extent places the raster explicitly. When nil a default extent
	// covering all merged points is computed.
	Extent *models.Extent

	// Sigma is the Gaussian kernel width for the weighted layers; +Inf
	// selects uniform weights. Radius is the neighbor search radius in
	// cell units and Geometry its interpretation.
	Sigma    float64
	Radius   int
	Geometry grid.Geometry

	// OnGroundMargin and TileBorderMargin are the merge margins, in
	// cell units.
	OnGroundMargin   int
	TileBorderMargin int

	// WithCoords carries the source scan coordinates through the merge.
	WithCoords bool

	// MaskLayers names the categorical bands to rasterize. Every name
	// must be present in at least one input cloud.
	MaskLayers []string

	// UndefinedValue is written to categorical cells whose vote is
	// ambiguous.
	UndefinedValue float64
}

// Assembler drives one full rasterization: merge, neighbor indexing,
// continuous aggregation and the categorical layers. It holds no state
// across calls; every call owns its inputs and output.
type Assembler struct {
	// Merger performs the cloud combination step; its Reproject field
	// enables mixed-CRS inputs.
	Merger cloud.Merger

	// Log receives debug records during assembly; nil disables logging.
	Log *slog.Logger
}

// Assemble merges the input clouds, indexes them on the target grid and
// aggregates every requested layer into a single north-up raster.
func (a *Assembler) Assemble(req Request) (*models.Raster, error) {
	if req.Resolution <= 0 || math.IsNaN(req.Resolution) {
		return nil, fmt.Errorf("resolution must be positive, got %v", req.Resolution)
	}
	if req.Sigma < 0 || math.IsNaN(req.Sigma) {
		return nil, fmt.Errorf("sigma must be non-negative or +Inf, got %v", req.Sigma)
	}
	if req.Radius < 0 {
		return nil, fmt.Errorf("radius must be non-negative, got %d", req.Radius)
	}

	extent := req.Extent
	if extent == nil {
		computed, err := a.defaultExtent(req)
		if err != nil {
			return nil, err
		}
		extent = &computed
	}
	spec := models.GridSpec{Extent: *extent, Resolution: req.Resolution}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	table, err := a.Merger.Merge(req.Clouds, req.Colors, cloud.Params{
		TargetCRS:        req.CRS,
		Grid:             &spec,
		OnGroundMargin:   req.OnGroundMargin,
		Radius:           req.Radius,
		TileBorderMargin: req.TileBorderMargin,
		WithCoords:       req.WithCoords,
	})
	if err != nil {
		return nil, err
	}
	if a.Log != nil {
		a.Log.Debug("clouds merged",
			"clouds", len(req.Clouds),
			"points", table.Len(),
			"grid", fmt.Sprintf("%dx%d", spec.XSize, spec.YSize),
			"crs", req.CRS.String())
	}

	ix := grid.Indexer{Geometry: req.Geometry, Log: a.Log}
	idx, err := ix.Index(spec, table.X, table.Y, req.Radius)
	if err != nil {
		return nil, err
	}
	centers := grid.BuildGrid(spec)

	out := aggregateContinuous(table, spec, centers, idx, req.Sigma)
	out.CRS = req.CRS

	if len(req.MaskLayers) > 0 {
		out.Masks = make(map[string][]float64, len(req.MaskLayers))
		for _, name := range req.MaskLayers {
			band, ok := table.Masks[name]
			if !ok {
				return nil, fmt.Errorf("mask layer %q is not present in any input cloud", name)
			}
			codes := Interpolate(table, band, nil, idx, centers, req.Sigma)
			layer := make([]float64, spec.Cells())
			for cell, code := range codes {
				row := cell / spec.XSize
				col := cell % spec.XSize
				layer[out.Index(spec.YSize-1-row, col)] = code.Float(req.UndefinedValue)
			}
			out.Masks[name] = layer
		}
	}

	return out, nil
}

// defaultExtent merges the clouds without extent clipping and snaps a
// grid extent outward around the retained points. The clouds are merged
// a second time afterwards against the computed extent, so the auto and
// explicit extent paths share one code path and produce identical
// rasters.
func (a *Assembler) defaultExtent(req Request) (models.Extent, error) {
	table, err := a.Merger.Merge(req.Clouds, req.Colors, cloud.Params{
		TargetCRS:        req.CRS,
		OnGroundMargin:   req.OnGroundMargin,
		Radius:           req.Radius,
		TileBorderMargin: req.TileBorderMargin,
	})
	if err != nil {
		return models.Extent{}, err
	}
	extent, err := ComputeExtent(table.X, table.Y, req.Resolution)
	if err != nil {
		return models.Extent{}, fmt.Errorf("computing default extent: %w", err)
	}
	if a.Log != nil {
		a.Log.Debug("default extent computed",
			"xstart", extent.XStart, "ystart", extent.YStart,
			"xsize", extent.XSize, "ysize", extent.YSize)
	}
	return extent, nil
}
