package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Datafalk/cars/internal/models"
)

// syntheticSpec is a 3x2 cell grid with one point per cell center,
// mirroring the reference rasterization scenario.
func syntheticSpec() (models.GridSpec, []float64, []float64) {
	spec := models.GridSpec{
		Extent:     models.Extent{XStart: 0, YStart: 12, XSize: 3, YSize: 2},
		Resolution: 1,
	}
	x := []float64{0.5, 1.5, 2.5, 0.5, 1.5, 2.5}
	y := []float64{10.5, 10.5, 10.5, 11.5, 11.5, 11.5}
	return spec, x, y
}

func TestBuildGrid(t *testing.T) {
	spec := models.GridSpec{
		Extent:     models.Extent{XStart: -0.5, YStart: 3.5, XSize: 5, YSize: 4},
		Resolution: 1,
	}

	centers := BuildGrid(spec)
	require.Len(t, centers, 20)

	// Row-major, ascending y: center (i, j) sits at integer (j, i).
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			c := centers[i*5+j]
			assert.InDelta(t, float64(j), c.X, 1e-12)
			assert.InDelta(t, float64(i), c.Y, 1e-12)
		}
	}
}

func TestIndexNearestCellBinning(t *testing.T) {
	spec, x, y := syntheticSpec()

	for _, geom := range []Geometry{SquareWindow, EuclideanDisk} {
		idx, err := Indexer{Geometry: geom}.Index(spec, x, y, 0)
		require.NoError(t, err)

		// Radius 0: every point contributes to exactly its own cell.
		// Internal cell (i, j) holds the point at (j+0.5, 10.5+i).
		for i := 0; i < 2; i++ {
			for j := 0; j < 3; j++ {
				cell := i*3 + j
				assert.Equal(t, []int{i*3 + j}, idx.Neighbors(cell), "geometry %s cell %d", geom, cell)
			}
		}
	}
}

func TestIndexSquareWindow(t *testing.T) {
	spec, x, y := syntheticSpec()

	idx, err := Indexer{}.Index(spec, x, y, 1)
	require.NoError(t, err)

	// Reference neighbor counts for the square window: corner cells see
	// a 2x2 block, middle-column cells a 2x3 block.
	assert.Equal(t, []int{4, 6, 4, 4, 6, 4}, idx.Count)

	// The corner cell collects its own point and the three adjacent ones.
	assert.ElementsMatch(t, []int{0, 1, 3, 4}, idx.Neighbors(0))
}

func TestIndexEuclideanDisk(t *testing.T) {
	spec, x, y := syntheticSpec()

	idx, err := Indexer{Geometry: EuclideanDisk}.Index(spec, x, y, 1)
	require.NoError(t, err)

	// The diagonal neighbor sits at distance sqrt(2) > 1 and drops out;
	// the axis-aligned neighbors at exactly the search radius stay in.
	assert.Equal(t, []int{3, 4, 3, 3, 4, 3}, idx.Count)
	assert.Equal(t, []int{0, 1, 3}, idx.Neighbors(0))
}

func TestIndexMarginPoints(t *testing.T) {
	spec := models.GridSpec{
		Extent:     models.Extent{XStart: 0, YStart: 1, XSize: 2, YSize: 1},
		Resolution: 1,
	}
	// One point inside cell 0, one in the margin west of the grid.
	x := []float64{0.5, -0.5}
	y := []float64{0.5, 0.5}

	idx, err := Indexer{}.Index(spec, x, y, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, idx.Count)

	// With radius 1 the margin point reaches the edge cell.
	idx, err = Indexer{}.Index(spec, x, y, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, idx.Neighbors(0))
	assert.Equal(t, []int{0}, idx.Neighbors(1))
}

func TestIndexValidation(t *testing.T) {
	spec, x, y := syntheticSpec()

	_, err := Indexer{}.Index(spec, x, y, -1)
	assert.Error(t, err)

	_, err = Indexer{}.Index(spec, x, y[:3], 1)
	assert.Error(t, err)

	bad := spec
	bad.Resolution = 0
	_, err = Indexer{}.Index(bad, x, y, 1)
	assert.Error(t, err)
}

func TestIndexEmptyPoints(t *testing.T) {
	spec, _, _ := syntheticSpec()

	for _, geom := range []Geometry{SquareWindow, EuclideanDisk} {
		idx, err := Indexer{Geometry: geom}.Index(spec, nil, nil, 1)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, idx.Count)
		assert.Empty(t, idx.IDs)
	}
}

func TestParseGeometry(t *testing.T) {
	g, err := ParseGeometry("square")
	require.NoError(t, err)
	assert.Equal(t, SquareWindow, g)

	g, err = ParseGeometry("disk")
	require.NoError(t, err)
	assert.Equal(t, EuclideanDisk, g)

	g, err = ParseGeometry("")
	require.NoError(t, err)
	assert.Equal(t, SquareWindow, g)

	_, err = ParseGeometry("hexagon")
	assert.Error(t, err)
}
