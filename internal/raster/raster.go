// Package raster holds the in-memory grid types the product layer composes,
// plus the flat-file reader/writer at the raster I/O boundary. Coordinate
// reference system handling beyond carrying an EPSG code, and any chunked or
// compressed storage codec, live outside this module.
package raster

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrShapeMismatch marks rasters that are not co-registered on the same grid.
var ErrShapeMismatch = errors.New("raster shape mismatch")

// Grid is the shared georeferencing of a set of co-registered rasters.
// Geotransform follows the GDAL convention: (x origin, x res, 0, y origin, 0,
// y res), referring to the upper-left corner of the top-left pixel.
type Grid struct {
	Rows         int        `json:"rows"`
	Cols         int        `json:"cols"`
	Geotransform [6]float64 `json:"geotransform"`
	EPSG         int        `json:"epsg"`
}

// Bounds returns (west, south, east, north) in grid coordinates.
func (g Grid) Bounds() (west, south, east, north float64) {
	xo, xr := g.Geotransform[0], g.Geotransform[1]
	yo, yr := g.Geotransform[3], g.Geotransform[5]
	west = xo
	east = xo + xr*float64(g.Cols)
	north = yo
	south = yo + yr*float64(g.Rows)
	if north < south {
		north, south = south, north
	}
	return west, south, east, north
}

// PixelSpacing is the mean of the absolute x/y resolutions, used as the
// spacing parameter for spatial filtering.
func (g Grid) PixelSpacing() float64 {
	return (math.Abs(g.Geotransform[1]) + math.Abs(g.Geotransform[5])) / 2
}

// XYCoords returns pixel-centre coordinate arrays for the grid.
func (g Grid) XYCoords() (y, x []float64) {
	xo, xr := g.Geotransform[0], g.Geotransform[1]
	yo, yr := g.Geotransform[3], g.Geotransform[5]
	y = make([]float64, g.Rows)
	for r := 0; r < g.Rows; r++ {
		y[r] = yo + yr/2 + yr*float64(r)
	}
	x = make([]float64, g.Cols)
	for c := 0; c < g.Cols; c++ {
		x[c] = xo + xr/2 + xr*float64(c)
	}
	return y, x
}

// Same reports whether two grids are identical. The product layer requires
// all its input layers co-registered; callers turn false into
// ErrShapeMismatch with context.
func (g Grid) Same(other Grid) bool {
	return g.Rows == other.Rows && g.Cols == other.Cols &&
		g.Geotransform == other.Geotransform && g.EPSG == other.EPSG
}

// Raster is a single-band float32 grid. Integer-valued layers (masks,
// component labels, counts) are carried as float32 in memory and converted at
// the dataset-write boundary.
type Raster struct {
	Grid
	Units  string
	NoData float32
	Data   []float32 // row-major
}

// New allocates a zero-filled raster on the grid.
func New(grid Grid, units string) *Raster {
	return &Raster{
		Grid:   grid,
		Units:  units,
		NoData: float32(math.NaN()),
		Data:   make([]float32, grid.Rows*grid.Cols),
	}
}

// NewFill allocates a constant-valued raster on the grid, used as the
// fallback for missing diagnostic sources.
func NewFill(grid Grid, value float32, units string) *Raster {
	r := New(grid, units)
	for i := range r.Data {
		r.Data[i] = value
	}
	return r
}

// At returns the value at (row, col). Callers index within bounds.
func (r *Raster) At(row, col int) float32 {
	return r.Data[row*r.Cols+col]
}

// Set writes the value at (row, col).
func (r *Raster) Set(row, col int, v float32) {
	r.Data[row*r.Cols+col] = v
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := *r
	out.Data = append([]float32(nil), r.Data...)
	return &out
}

// CheckSameGrid verifies that every raster shares the base grid.
func CheckSameGrid(base Grid, others ...*Raster) error {
	for i, o := range others {
		if o == nil {
			continue
		}
		if !base.Same(o.Grid) {
			return fmt.Errorf("%w: layer %d is %dx%d, expected %dx%d",
				ErrShapeMismatch, i, o.Rows, o.Cols, base.Rows, base.Cols)
		}
	}
	return nil
}

// ComplexRaster is a single-band complex64 grid, used by compressed
// acquisition products.
type ComplexRaster struct {
	Grid
	Units string
	Data  []complex64 // row-major
}

// rasterHeader is the JSON sidecar describing a flat binary raster file.
type rasterHeader struct {
	Grid
	Dtype  string  `json:"dtype"` // "float32" or "complex64"
	Units  string  `json:"units,omitempty"`
	NoData float64 `json:"nodata,omitempty"`
}

func headerPath(path string) string { return path + ".hdr.json" }

// Write stores the raster as little-endian float32 with a JSON header
// sidecar.
func (r *Raster) Write(path string) error {
	hdr := rasterHeader{Grid: r.Grid, Dtype: "float32", Units: r.Units, NoData: float64(r.NoData)}
	return writeRasterFile(path, hdr, func(buf []byte) {
		for i, v := range r.Data {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
	}, len(r.Data)*4)
}

// Write stores the raster as interleaved little-endian complex64 with a JSON
// header sidecar.
func (c *ComplexRaster) Write(path string) error {
	hdr := rasterHeader{Grid: c.Grid, Dtype: "complex64", Units: c.Units}
	return writeRasterFile(path, hdr, func(buf []byte) {
		for i, v := range c.Data {
			binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(real(v)))
			binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(imag(v)))
		}
	}, len(c.Data)*8)
}

func writeRasterFile(path string, hdr rasterHeader, fill func([]byte), size int) error {
	buf := make([]byte, size)
	fill(buf)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write raster %s: %w", path, err)
	}
	hdrBytes, err := json.MarshalIndent(hdr, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(headerPath(path), hdrBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write raster header %s: %w", headerPath(path), err)
	}
	return nil
}

func loadHeader(path string) (rasterHeader, error) {
	raw, err := os.ReadFile(headerPath(path))
	if err != nil {
		return rasterHeader{}, fmt.Errorf("failed to read raster header for %s: %w", path, err)
	}
	var hdr rasterHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return rasterHeader{}, fmt.Errorf("failed to parse raster header for %s: %w", path, err)
	}
	return hdr, nil
}

// Load reads a float32 raster written by Write.
func Load(path string) (*Raster, error) {
	hdr, err := loadHeader(path)
	if err != nil {
		return nil, err
	}
	if hdr.Dtype != "float32" {
		return nil, fmt.Errorf("raster %s has dtype %s, expected float32", path, hdr.Dtype)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster %s: %w", path, err)
	}
	n := hdr.Rows * hdr.Cols
	if len(raw) != n*4 {
		return nil, fmt.Errorf("raster %s has %d bytes, expected %d", path, len(raw), n*4)
	}
	r := &Raster{Grid: hdr.Grid, Units: hdr.Units, NoData: float32(hdr.NoData), Data: make([]float32, n)}
	for i := 0; i < n; i++ {
		r.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return r, nil
}

// LoadComplex reads a complex64 raster written by ComplexRaster.Write.
func LoadComplex(path string) (*ComplexRaster, error) {
	hdr, err := loadHeader(path)
	if err != nil {
		return nil, err
	}
	if hdr.Dtype != "complex64" {
		return nil, fmt.Errorf("raster %s has dtype %s, expected complex64", path, hdr.Dtype)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster %s: %w", path, err)
	}
	n := hdr.Rows * hdr.Cols
	if len(raw) != n*8 {
		return nil, fmt.Errorf("raster %s has %d bytes, expected %d", path, len(raw), n*8)
	}
	c := &ComplexRaster{Grid: hdr.Grid, Units: hdr.Units, Data: make([]complex64, n)}
	for i := 0; i < n; i++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
		c.Data[i] = complex(re, im)
	}
	return c, nil
}
