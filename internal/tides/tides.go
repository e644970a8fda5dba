// Package tides carries the solid-earth tide correction into the product. The
// tide displacement itself comes from an external model as east/north/up
// components; this package projects it into the radar line of sight using the
// LOS unit vectors from the static geometry layers.
package tides

import (
	"fmt"
	"math"

	"github.com/meridian-eo/disp/internal/raster"
)

// Model produces the east/north/up solid-earth tide displacement (meters) on
// the target grid for the product's secondary acquisition epoch, differenced
// against the reference epoch.
type Model interface {
	Displacement(target raster.Grid) (east, north, up *raster.Raster, err error)
}

// ZeroModel reports no tide displacement.
type ZeroModel struct{}

func (ZeroModel) Displacement(target raster.Grid) (*raster.Raster, *raster.Raster, *raster.Raster, error) {
	e := raster.New(target, "meters")
	n := raster.New(target, "meters")
	u := raster.New(target, "meters")
	return e, n, u, nil
}

// ProjectToLOS projects an ENU displacement into the line of sight. losEast
// and losNorth are the LOS unit-vector components from the static layers; the
// up component is recovered from the unit-length constraint. Pixels whose LOS
// components are not a valid unit vector come out NaN.
func ProjectToLOS(east, north, up, losEast, losNorth *raster.Raster) (*raster.Raster, error) {
	if losEast == nil || losNorth == nil {
		return nil, fmt.Errorf("line-of-sight unit vectors are required")
	}
	if err := raster.CheckSameGrid(east.Grid, north, up, losEast, losNorth); err != nil {
		return nil, err
	}

	out := raster.New(east.Grid, "meters")
	for i := range out.Data {
		le := float64(losEast.Data[i])
		ln := float64(losNorth.Data[i])
		sq := 1 - le*le - ln*ln
		if sq < 0 {
			out.Data[i] = float32(math.NaN())
			continue
		}
		lu := math.Sqrt(sq)
		out.Data[i] = float32(le*float64(east.Data[i]) +
			ln*float64(north.Data[i]) +
			lu*float64(up.Data[i]))
	}
	return out, nil
}
