// Package quality combines per-pixel quality indicators into the recommended
// validity mask shipped with the displacement product.
package quality

import (
	"fmt"

	"github.com/meridian-eo/disp/internal/raster"
)

// Fixed thresholds for the low-quality criterion. Both signals must be weak
// simultaneously for a pixel to be flagged on quality grounds alone.
const (
	TemporalCoherenceThreshold = 0.6
	SimilarityThreshold        = 0.5
)

// Mask is a per-pixel boolean layer on a raster grid.
type Mask struct {
	raster.Grid
	Data []bool // row-major; true = recommended (good) pixel
}

// At returns the mask value at (row, col).
func (m *Mask) At(row, col int) bool {
	return m.Data[row*m.Cols+col]
}

// ToRaster renders the mask as a 0/1 raster for the product writer.
func (m *Mask) ToRaster() *raster.Raster {
	r := raster.New(m.Grid, "unitless")
	for i, good := range m.Data {
		if good {
			r.Data[i] = 1
		}
	}
	return r
}

// Layers are the co-registered quality inputs for one product assembly.
// WaterMask may be nil when no mask file was provided; nothing is then
// treated as water.
type Layers struct {
	TemporalCoherence   *raster.Raster
	ConnectedComponents *raster.Raster
	Similarity          *raster.Raster
	WaterMask           *raster.Raster // 0 = no data/water, 1 = good data
}

// RecommendedMask composes the validity mask. A pixel is bad if it is water,
// if unwrapping produced no connected region there, or if both the temporal
// coherence and the phase similarity are weak. The recommended mask is the
// negation.
func RecommendedMask(l Layers) (*Mask, error) {
	if l.TemporalCoherence == nil || l.ConnectedComponents == nil || l.Similarity == nil {
		return nil, fmt.Errorf("temporal coherence, connected components and similarity layers are all required")
	}
	base := l.TemporalCoherence.Grid
	if err := raster.CheckSameGrid(base, l.ConnectedComponents, l.Similarity, l.WaterMask); err != nil {
		return nil, err
	}

	m := &Mask{Grid: base, Data: make([]bool, base.Rows*base.Cols)}
	for i := range m.Data {
		isWater := l.WaterMask != nil && l.WaterMask.Data[i] == 0
		isZeroConncomp := l.ConnectedComponents.Data[i] == 0
		isLowQuality := l.TemporalCoherence.Data[i] < TemporalCoherenceThreshold &&
			l.Similarity.Data[i] < SimilarityThreshold

		bad := isWater || isZeroConncomp || isLowQuality
		m.Data[i] = !bad
	}
	return m, nil
}
