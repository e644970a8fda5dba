// Package browse renders the quick-look PNG that accompanies each product.
// The image is a heatmap of the displacement layer on a fixed display range
// so successive products are visually comparable.
package browse

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/meridian-eo/disp/internal/raster"
)

// Options control the rendered image.
type Options struct {
	// VMin/VMax clamp the display range (meters).
	VMin, VMax float64

	// MaxDim caps the larger image axis; bigger rasters are strided down.
	// Zero means the default of 2048.
	MaxDim int

	Title string
}

const defaultMaxDim = 2048

// WritePNG renders the raster as a heatmap PNG at path. Masked pixels (NaN)
// render at the low end of the palette.
func WritePNG(path string, r *raster.Raster, opts Options) error {
	if r == nil || len(r.Data) == 0 {
		return fmt.Errorf("no raster to render")
	}
	if opts.VMax <= opts.VMin {
		return fmt.Errorf("display range must have vmax > vmin, got (%f, %f)", opts.VMin, opts.VMax)
	}
	maxDim := opts.MaxDim
	if maxDim <= 0 {
		maxDim = defaultMaxDim
	}

	stride := 1
	for (r.Rows+stride-1)/stride > maxDim || (r.Cols+stride-1)/stride > maxDim {
		stride++
	}

	grid := &displayGrid{r: r, stride: stride, vmin: opts.VMin, vmax: opts.VMax}
	pal := moreland.SmoothBlueRed().Palette(255)
	hm := plotter.NewHeatMap(grid, pal)
	hm.Min = opts.VMin
	hm.Max = opts.VMax

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Easting (m)"
	p.Y.Label.Text = "Northing (m)"
	p.Add(hm)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save browse image %s: %w", path, err)
	}
	return nil
}

// displayGrid adapts a raster to plotter.GridXYZ, striding it down and
// clamping values into the display range. Heatmap rows run bottom-up, raster
// rows top-down.
type displayGrid struct {
	r          *raster.Raster
	stride     int
	vmin, vmax float64
}

func (g *displayGrid) Dims() (int, int) {
	return (g.r.Cols + g.stride - 1) / g.stride, (g.r.Rows + g.stride - 1) / g.stride
}

func (g *displayGrid) X(c int) float64 {
	gt := g.r.Geotransform
	return gt[0] + gt[1]*float64(c*g.stride)
}

func (g *displayGrid) Y(rowUp int) float64 {
	_, rows := g.Dims()
	row := (rows - 1 - rowUp) * g.stride
	gt := g.r.Geotransform
	return gt[3] + gt[5]*float64(row)
}

func (g *displayGrid) Z(c, rowUp int) float64 {
	_, rows := g.Dims()
	row := (rows - 1 - rowUp) * g.stride
	col := c * g.stride
	v := float64(g.r.At(row, col))
	if math.IsNaN(v) || v < g.vmin {
		return g.vmin
	}
	if v > g.vmax {
		return g.vmax
	}
	return v
}
