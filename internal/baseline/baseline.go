// Package baseline estimates the perpendicular baseline between the reference
// and secondary acquisition geometries. Estimation runs on a coarse grid and
// is upsampled onto the product grid before being written.
package baseline

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"github.com/meridian-eo/disp/internal/raster"
)

// Model computes the perpendicular baseline (meters) on a coarse grid derived
// from the target grid.
type Model interface {
	Estimate(target raster.Grid) (*raster.Raster, error)
}

// CoarseRows and CoarseCols size the estimation grid. Baseline varies slowly
// across a frame, so a coarse grid plus interpolation is sufficient.
const (
	CoarseRows = 100
	CoarseCols = 100
)

// ZeroModel produces an all-zero baseline, the documented fallback when no
// geometry files are available.
type ZeroModel struct{}

func (ZeroModel) Estimate(target raster.Grid) (*raster.Raster, error) {
	return raster.New(coarseGrid(target), "meters"), nil
}

// GridModel wraps an externally computed coarse baseline grid.
type GridModel struct {
	Baseline *raster.Raster
}

func (m GridModel) Estimate(raster.Grid) (*raster.Raster, error) {
	if m.Baseline == nil {
		return nil, fmt.Errorf("no baseline grid set")
	}
	return m.Baseline, nil
}

// coarseGrid covers the same extent as target at the coarse resolution.
func coarseGrid(target raster.Grid) raster.Grid {
	gt := target.Geotransform
	gt[1] = gt[1] * float64(target.Cols) / float64(CoarseCols)
	gt[5] = gt[5] * float64(target.Rows) / float64(CoarseRows)
	return raster.Grid{
		Rows:         CoarseRows,
		Cols:         CoarseCols,
		Geotransform: gt,
		EPSG:         target.EPSG,
	}
}

// Upsample resamples a coarse raster onto the target grid with separable
// piecewise-linear interpolation between pixel centers. Target pixels outside
// the source extent take the nearest edge value.
func Upsample(src *raster.Raster, target raster.Grid) (*raster.Raster, error) {
	if src.Rows < 2 || src.Cols < 2 {
		return nil, fmt.Errorf("upsample source must be at least 2x2, got %dx%d", src.Rows, src.Cols)
	}
	srcY, srcX := src.Grid.XYCoords()
	dstY, dstX := target.XYCoords()

	srcXAsc, flipX := ascending(srcX)
	srcYAsc, flipY := ascending(srcY)

	// First pass: interpolate each source row onto the target columns.
	rowVals := make([]float64, src.Cols)
	mid := make([][]float64, src.Rows)
	for r := 0; r < src.Rows; r++ {
		for c := 0; c < src.Cols; c++ {
			cc := c
			if flipX {
				cc = src.Cols - 1 - c
			}
			rowVals[c] = float64(src.Data[r*src.Cols+cc])
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(srcXAsc, rowVals); err != nil {
			return nil, fmt.Errorf("failed to fit baseline row %d: %w", r, err)
		}
		mid[r] = make([]float64, target.Cols)
		for c, x := range dstX {
			mid[r][c] = pl.Predict(clamp(x, srcXAsc))
		}
	}

	// Second pass: interpolate each target column down the rows.
	out := raster.New(target, src.Units)
	colVals := make([]float64, src.Rows)
	for c := 0; c < target.Cols; c++ {
		for r := 0; r < src.Rows; r++ {
			rr := r
			if flipY {
				rr = src.Rows - 1 - r
			}
			colVals[r] = mid[rr][c]
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(srcYAsc, colVals); err != nil {
			return nil, fmt.Errorf("failed to fit baseline column %d: %w", c, err)
		}
		for r, y := range dstY {
			out.Data[r*target.Cols+c] = float32(pl.Predict(clamp(y, srcYAsc)))
		}
	}
	return out, nil
}

// ascending returns coords in increasing order plus whether they were flipped.
// North-up grids have descending y coordinates.
func ascending(coords []float64) ([]float64, bool) {
	if len(coords) < 2 || coords[0] <= coords[len(coords)-1] {
		return coords, false
	}
	out := make([]float64, len(coords))
	for i, v := range coords {
		out[len(coords)-1-i] = v
	}
	return out, true
}

func clamp(x float64, asc []float64) float64 {
	if x < asc[0] {
		return asc[0]
	}
	if x > asc[len(asc)-1] {
		return asc[len(asc)-1]
	}
	return x
}
