package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/Datafalk/cars/internal/models"
)

// ErrEmptyTable is returned when an operation needs at least one point
// and the table holds none.
var ErrEmptyTable = errors.New("point table holds no points")

// ComputeExtent returns a default raster extent covering every input
// point, with the start coordinates snapped outward to multiples of the
// resolution. It is used when the caller omits an explicit extent.
func ComputeExtent(x, y []float64, resolution float64) (models.Extent, error) {
	if resolution <= 0 || math.IsNaN(resolution) {
		return models.Extent{}, fmt.Errorf("resolution must be positive, got %v", resolution)
	}
	if len(x) == 0 || len(x) != len(y) {
		return models.Extent{}, fmt.Errorf("%w: got %d x and %d y coordinates", ErrEmptyTable, len(x), len(y))
	}

	bounds := r2.RectFromPoints(r2.Point{X: x[0], Y: y[0]})
	for i := 1; i < len(x); i++ {
		bounds = bounds.AddPoint(r2.Point{X: x[i], Y: y[i]})
	}

	xStart := math.Floor(bounds.X.Lo/resolution) * resolution
	yStart := math.Ceil(bounds.Y.Hi/resolution) * resolution
	xSize := int(math.Ceil((bounds.X.Hi - xStart) / resolution))
	ySize := int(math.Ceil((yStart - bounds.Y.Lo) / resolution))
	if xSize == 0 {
		xSize = 1
	}
	if ySize == 0 {
		ySize = 1
	}

	return models.Extent{XStart: xStart, YStart: yStart, XSize: xSize, YSize: ySize}, nil
}
