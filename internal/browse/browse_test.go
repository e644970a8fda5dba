package browse

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-eo/disp/internal/raster"
)

func testRaster(rows, cols int) *raster.Raster {
	r := raster.New(raster.Grid{
		Rows:         rows,
		Cols:         cols,
		Geotransform: [6]float64{500000, 30, 0, 4000000, 0, -30},
		EPSG:         32611,
	}, "meters")
	for i := range r.Data {
		r.Data[i] = float32(i%7)*0.03 - 0.1
	}
	return r
}

func TestWritePNG(t *testing.T) {
	t.Parallel()

	r := testRaster(32, 48)
	r.Set(3, 4, float32(math.NaN()))
	path := filepath.Join(t.TempDir(), "browse.png")

	require.NoError(t, WritePNG(path, r, Options{VMin: -0.1, VMax: 0.1, Title: "displacement"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
	assert.Positive(t, img.Bounds().Dy())
}

func TestWritePNGStridesLargeRasters(t *testing.T) {
	t.Parallel()

	r := testRaster(30, 90)
	path := filepath.Join(t.TempDir(), "browse.png")
	require.NoError(t, WritePNG(path, r, Options{VMin: -0.1, VMax: 0.1, MaxDim: 40}))

	grid := &displayGrid{r: r, stride: 3, vmin: -0.1, vmax: 0.1}
	cols, rows := grid.Dims()
	assert.Equal(t, 30, cols)
	assert.Equal(t, 10, rows)
}

func TestDisplayGridClampsRange(t *testing.T) {
	t.Parallel()

	r := testRaster(4, 4)
	r.Set(0, 0, 5)
	r.Set(0, 1, -5)
	r.Set(0, 2, float32(math.NaN()))

	grid := &displayGrid{r: r, stride: 1, vmin: -0.1, vmax: 0.1}
	_, rows := grid.Dims()
	top := rows - 1
	assert.Equal(t, 0.1, grid.Z(0, top))
	assert.Equal(t, -0.1, grid.Z(1, top))
	assert.Equal(t, -0.1, grid.Z(2, top))
}

func TestDisplayGridYIncreasing(t *testing.T) {
	t.Parallel()

	grid := &displayGrid{r: testRaster(8, 8), stride: 1, vmin: -0.1, vmax: 0.1}
	_, rows := grid.Dims()
	for i := 1; i < rows; i++ {
		require.Greater(t, grid.Y(i), grid.Y(i-1))
	}
}

func TestWritePNGRejectsBadRange(t *testing.T) {
	t.Parallel()

	err := WritePNG(filepath.Join(t.TempDir(), "x.png"), testRaster(4, 4), Options{VMin: 0.1, VMax: -0.1})
	assert.Error(t, err)
}
