package cloud

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Datafalk/cars/internal/models"
	"github.com/Datafalk/cars/pkg/geo"
)

// rampCloud builds a rows x cols tile where point i has coordinates
// (i, i+1, i+2), every point valid except the listed scan indices.
func rampCloud(rows, cols int, invalid ...int) *models.Cloud {
	n := rows * cols
	c := &models.Cloud{
		Rows: rows, Cols: cols,
		X: make([]float64, n), Y: make([]float64, n), Z: make([]float64, n),
		Valid: make([]int, n),
		CRS:   geo.WGS84,
	}
	for i := 0; i < n; i++ {
		c.X[i] = float64(i)
		c.Y[i] = float64(i) + 1
		c.Z[i] = float64(i) + 2
		c.Valid[i] = 255
	}
	for _, i := range invalid {
		c.Valid[i] = 0
	}
	return c
}

// constantCloud builds a rows x cols tile with every point at (x, y, z).
func constantCloud(rows, cols int, x, y, z float64, invalid ...int) *models.Cloud {
	n := rows * cols
	c := &models.Cloud{
		Rows: rows, Cols: cols,
		X: make([]float64, n), Y: make([]float64, n), Z: make([]float64, n),
		Valid: make([]int, n),
		CRS:   geo.WGS84,
	}
	for i := 0; i < n; i++ {
		c.X[i] = x
		c.Y[i] = y
		c.Z[i] = z
		c.Valid[i] = 255
	}
	for _, i := range invalid {
		c.Valid[i] = 0
	}
	return c
}

func constantColors(rows, cols int, bands ...float64) *models.Colors {
	n := rows * cols
	cs := &models.Colors{Rows: rows, Cols: cols, Data: make([][]float64, len(bands))}
	for b, v := range bands {
		cs.Data[b] = make([]float64, n)
		for i := range cs.Data[b] {
			cs.Data[b][i] = v
		}
	}
	return cs
}

// referenceParams mirrors the reference scenario: a 20x25-cell grid at
// resolution 0.5 starting at (40, 50), one cell of on-ground margin, one
// cell of tile border margin, radius 1.
func referenceParams(withCoords bool) Params {
	spec := models.GridSpec{
		Extent:     models.Extent{XStart: 40, YStart: 50, XSize: 20, YSize: 25},
		Resolution: 0.5,
	}
	return Params{
		TargetCRS:        geo.WGS84,
		Grid:             &spec,
		OnGroundMargin:   1,
		TileBorderMargin: 1,
		Radius:           1,
		WithCoords:       withCoords,
	}
}

func TestMergeReferenceScenario(t *testing.T) {
	// Cloud 0 ramps diagonally through the extent with scan index 44
	// invalidated; cloud 1 sits far west of the extent; cloud 2 stacks
	// a 5x5 tile on (45, 45) with scan index 12 invalidated.
	clouds := []*models.Cloud{
		rampCloud(10, 10, 44),
		constantCloud(10, 10, 0, 1, 2, 66),
		constantCloud(5, 5, 45, 45, 50, 12),
	}

	table, err := Merger{}.Merge(clouds, nil, referenceParams(true))
	require.NoError(t, err)

	// Cloud 0 retains scan indices 41..48 except 44: interior points of
	// the expanded extent [39, 51] x [36.5, 51] away from tile borders.
	// Cloud 1 lies entirely outside; cloud 2 keeps its 3x3 interior
	// minus the invalidated center.
	wantX := []float64{41, 42, 43, 45, 46, 47, 48, 45, 45, 45, 45, 45, 45, 45, 45}
	require.Equal(t, len(wantX), table.Len())
	assert.Equal(t, wantX, table.X)
	for i, x := range table.X[:7] {
		assert.Equal(t, x+1, table.Y[i])
		assert.Equal(t, x+2, table.Z[i])
	}
	for i := 7; i < 15; i++ {
		assert.Equal(t, 45.0, table.Y[i])
		assert.Equal(t, 50.0, table.Z[i])
	}

	// All retained points land inside the strict extent here.
	for i, in := range table.InExtent {
		assert.True(t, in, "point %d", i)
	}

	// Source coordinates: cloud 0 keeps row 4, columns 1..8 minus 4;
	// cloud 2 keeps its interior scan positions.
	assert.Equal(t, []int{4, 4, 4, 4, 4, 4, 4, 1, 1, 1, 2, 2, 3, 3, 3}, table.SrcRow)
	assert.Equal(t, []int{1, 2, 3, 5, 6, 7, 8, 1, 2, 3, 1, 3, 1, 2, 3}, table.SrcCol)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 2, 2, 2, 2, 2, 2, 2, 2}, table.SrcCloud)
}

func TestMergeColors(t *testing.T) {
	clouds := []*models.Cloud{
		rampCloud(10, 10, 44),
		constantCloud(10, 10, 0, 1, 2),
		constantCloud(5, 5, 45, 45, 50, 12),
	}

	// Cloud 2's first band ramps with the scan index so retained color
	// values identify their source position.
	clr2 := constantColors(5, 5, 0, 0, 0)
	for i := 0; i < 25; i++ {
		clr2.Data[0][i] = float64(i)
		clr2.Data[1][i] = float64(i) + 1
		clr2.Data[2][i] = float64(i) + 2
	}
	colors := []*models.Colors{
		constantColors(10, 10, 10, 20, 30),
		constantColors(10, 10, 20, 20, 20),
		clr2,
	}

	table, err := Merger{}.Merge(clouds, colors, referenceParams(false))
	require.NoError(t, err)
	require.Equal(t, 15, table.Len())
	require.Len(t, table.Colors, 3)

	for i := 0; i < 7; i++ {
		assert.Equal(t, 10.0, table.Colors[0][i])
		assert.Equal(t, 20.0, table.Colors[1][i])
		assert.Equal(t, 30.0, table.Colors[2][i])
	}
	// Interior scan indices of the 5x5 tile, minus the invalid center.
	wantBand0 := []float64{6, 7, 8, 11, 13, 16, 17, 18}
	assert.Equal(t, wantBand0, table.Colors[0][7:])
	for i := 7; i < 15; i++ {
		assert.Equal(t, table.Colors[0][i]+1, table.Colors[1][i])
		assert.Equal(t, table.Colors[0][i]+2, table.Colors[2][i])
	}
}

func TestMergeColorCountMismatch(t *testing.T) {
	clouds := []*models.Cloud{
		rampCloud(10, 10),
		constantCloud(5, 5, 45, 45, 50),
	}
	colors := []*models.Colors{constantColors(10, 10, 10)}

	_, err := Merger{}.Merge(clouds, colors, referenceParams(false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCloudColorMismatch))
}

func TestMergeMixedCRS(t *testing.T) {
	shifted := constantCloud(5, 5, 245, 45, 50)
	shifted.CRS = geo.EPSG(32631)
	clouds := []*models.Cloud{shifted}

	// Without a reprojector a mixed input is a precondition violation.
	_, err := Merger{}.Merge(clouds, nil, referenceParams(false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMixedCRS))

	// With one, the cloud is converted before filtering.
	m := Merger{Reproject: geo.ReprojectorFunc(func(x, y, z []float64, from, to geo.EPSG) error {
		require.Equal(t, geo.EPSG(32631), from)
		require.Equal(t, geo.WGS84, to)
		for i := range x {
			x[i] -= 200
		}
		return nil
	})}
	table, err := m.Merge(clouds, nil, referenceParams(false))
	require.NoError(t, err)
	assert.Equal(t, 9, table.Len())
	assert.Equal(t, 45.0, table.X[0])

	// The caller's cloud must not be mutated by the conversion.
	assert.Equal(t, 245.0, shifted.X[0])
}

func TestMergeMaskBands(t *testing.T) {
	withMask := constantCloud(3, 3, 45, 45, 50)
	withMask.Masks = map[string][]float64{"classes": {
		7, 7, 7,
		7, 7, 7,
		7, 7, 7,
	}}
	plain := constantCloud(3, 3, 46, 46, 50)

	p := referenceParams(false)
	p.TileBorderMargin = 0

	table, err := Merger{}.Merge([]*models.Cloud{withMask, plain}, nil, p)
	require.NoError(t, err)
	require.Equal(t, 18, table.Len())
	require.Contains(t, table.Masks, "classes")

	band := table.Masks["classes"]
	for i := 0; i < 9; i++ {
		assert.Equal(t, 7.0, band[i])
	}
	// Points from the cloud lacking the band carry the missing code.
	for i := 9; i < 18; i++ {
		assert.True(t, math.IsNaN(band[i]), "point %d", i)
	}
}

func TestMergeDropsNaNPoints(t *testing.T) {
	c := constantCloud(3, 3, 45, 45, 50)
	c.X[4] = math.NaN()

	p := referenceParams(false)
	p.TileBorderMargin = 0

	table, err := Merger{}.Merge([]*models.Cloud{c}, nil, p)
	require.NoError(t, err)
	assert.Equal(t, 8, table.Len())
}

func TestMergeNoClouds(t *testing.T) {
	_, err := Merger{}.Merge(nil, nil, referenceParams(false))
	assert.True(t, errors.Is(err, ErrNoClouds))
}

func TestMergeWithoutGridKeepsEverything(t *testing.T) {
	c := rampCloud(4, 4)

	table, err := Merger{}.Merge([]*models.Cloud{c}, nil, Params{TargetCRS: geo.WGS84})
	require.NoError(t, err)
	assert.Equal(t, 16, table.Len())
	for _, in := range table.InExtent {
		assert.True(t, in)
	}
}
