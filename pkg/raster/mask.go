package raster

import (
	"github.com/Datafalk/cars/internal/models"
	"github.com/Datafalk/cars/pkg/grid"
)

// Interpolate performs the categorical vote for one code band over every
// cell of the grid. Only valid contributors vote; a nil valid slice
// falls back to the table's strict-extent flags. Results stay in the
// internal three-state form so that absence of data and ambiguity remain
// distinct until the output boundary. Cells follow the internal
// ascending-y order of the neighbor index.
//
// Vote semantics per cell:
//   - no valid contributor: no data;
//   - any contributor carrying the missing-code sentinel: no data
//     (a missing code poisons the whole vote);
//   - only code 0 present: 0 (code 0 alone is a valid outcome);
//   - exactly one distinct non-zero code: that code wins regardless of
//     accompanying zero codes, which are neutral;
//   - several distinct non-zero codes: the code with the strictly
//     greatest total Gaussian weight wins; an exact tie at the top is
//     ambiguous.
func Interpolate(table *models.PointTable, band []float64, valid []bool, idx *grid.NeighborIndex, centers []grid.Point, sigma float64) []models.CellCode {
	if valid == nil {
		valid = table.InExtent
	}

	out := make([]models.CellCode, len(centers))
	var codes, totals []float64
	for cell := range centers {
		codes = codes[:0]
		totals = totals[:0]
		var (
			poisoned bool
			anyVote  bool
		)

		center := centers[cell]
		for _, id := range idx.Neighbors(cell) {
			if valid != nil && !valid[id] {
				continue
			}
			code := band[id]
			if models.HasMissingCode(band, id) {
				poisoned = true
				break
			}
			anyVote = true
			if code == 0 {
				continue
			}

			dx := table.X[id] - center.X
			dy := table.Y[id] - center.Y
			w := kernelWeight(dx*dx+dy*dy, sigma)

			found := false
			for k := range codes {
				if codes[k] == code {
					totals[k] += w
					found = true
					break
				}
			}
			if !found {
				codes = append(codes, code)
				totals = append(totals, w)
			}
		}

		switch {
		case poisoned || !anyVote:
			out[cell] = models.CellCode{State: models.CodeNoData}
		case len(codes) == 0:
			out[cell] = models.CellCode{State: models.CodeValue, Code: 0}
		case len(codes) == 1:
			out[cell] = models.CellCode{State: models.CodeValue, Code: codes[0]}
		default:
			best := 0
			ties := 1
			for k := 1; k < len(codes); k++ {
				switch {
				case totals[k] > totals[best]:
					best = k
					ties = 1
				case totals[k] == totals[best]:
					ties++
				}
			}
			if ties > 1 {
				out[cell] = models.CellCode{State: models.CodeAmbiguous}
			} else {
				out[cell] = models.CellCode{State: models.CodeValue, Code: codes[best]}
			}
		}
	}

	return out
}
