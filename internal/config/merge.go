package config

import (
	"encoding/json"
	"fmt"
)

// FrameOverrides maps frame ids to partial algorithm parameter records. An
// override record has the same shape as AlgorithmParameters; only the fields
// it sets are applied. Unknown frames yield an identity merge.
type FrameOverrides struct {
	frames map[string]json.RawMessage
}

// frameOverridesDocument accepts both a bare mapping and a {"data": {...}}
// wrapper, matching the two layouts the override database has shipped in.
type frameOverridesDocument struct {
	Data map[string]json.RawMessage `json:"data"`
}

// LoadFrameOverrides reads a frame-keyed override document.
func LoadFrameOverrides(path string) (*FrameOverrides, error) {
	raw, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var doc frameOverridesDocument
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Data != nil {
		return &FrameOverrides{frames: doc.Data}, nil
	}

	var bare map[string]json.RawMessage
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("%w: override document %s: %v", ErrConfig, path, err)
	}
	return &FrameOverrides{frames: bare}, nil
}

// ForFrame decodes the override record for one frame. A frame without an
// entry returns an empty record. A record whose shape conflicts with the
// parameter layout (nested object where a scalar belongs, or an unknown key)
// is a ConfigError, not a silent coercion.
func (f *FrameOverrides) ForFrame(frameID int) (*AlgorithmParameters, error) {
	if f == nil || f.frames == nil {
		return &AlgorithmParameters{}, nil
	}
	raw, ok := f.frames[fmt.Sprintf("%d", frameID)]
	if !ok {
		return &AlgorithmParameters{}, nil
	}
	ov := &AlgorithmParameters{}
	if err := strictUnmarshal(raw, ov); err != nil {
		return nil, fmt.Errorf("%w: override for frame %d: %v", ErrConfig, frameID, err)
	}
	if err := rejectInjectedKeys(raw); err != nil {
		return nil, fmt.Errorf("%w: override for frame %d: %v", ErrConfig, frameID, err)
	}
	return ov, nil
}

// Merge deep-merges an override record into a copy of p and returns the
// result. Fields the override leaves nil are untouched; fields it sets win
// outright. Merge is not commutative and is idempotent for a fixed override.
// Translator-injected fields (reference index, bounds, extra reference date)
// are not mergeable from override documents.
func (p *AlgorithmParameters) Merge(ov *AlgorithmParameters) *AlgorithmParameters {
	out := *p
	if ov == nil {
		return &out
	}

	mergeFloat(&out.PSOptions.AmpDispersionThreshold, ov.PSOptions.AmpDispersionThreshold)

	mergeInt(&out.PhaseLinking.HalfWindowX, ov.PhaseLinking.HalfWindowX)
	mergeInt(&out.PhaseLinking.HalfWindowY, ov.PhaseLinking.HalfWindowY)
	mergeInt(&out.PhaseLinking.MiniStackSize, ov.PhaseLinking.MiniStackSize)
	mergeString(&out.PhaseLinking.ShpMethod, ov.PhaseLinking.ShpMethod)
	mergeFloat(&out.PhaseLinking.ShpAlpha, ov.PhaseLinking.ShpAlpha)

	mergeInt(&out.InterferogramNetwork.ReferenceIdx, ov.InterferogramNetwork.ReferenceIdx)
	mergeInt(&out.InterferogramNetwork.MaxBandwidth, ov.InterferogramNetwork.MaxBandwidth)
	mergeInt(&out.InterferogramNetwork.MaxTemporalBaseline, ov.InterferogramNetwork.MaxTemporalBaseline)

	mergeBool(&out.UnwrapOptions.RunUnwrap, ov.UnwrapOptions.RunUnwrap)
	mergeString(&out.UnwrapOptions.UnwrapMethod, ov.UnwrapOptions.UnwrapMethod)
	mergeInt(&out.UnwrapOptions.NTilesRow, ov.UnwrapOptions.NTilesRow)
	mergeInt(&out.UnwrapOptions.NTilesCol, ov.UnwrapOptions.NTilesCol)
	mergeInt(&out.UnwrapOptions.DownsampleFactor, ov.UnwrapOptions.DownsampleFactor)

	mergeBool(&out.TimeseriesOptions.RunVelocity, ov.TimeseriesOptions.RunVelocity)
	mergeString(&out.TimeseriesOptions.Method, ov.TimeseriesOptions.Method)

	mergeInt(&out.OutputOptions.StridesX, ov.OutputOptions.StridesX)
	mergeInt(&out.OutputOptions.StridesY, ov.OutputOptions.StridesY)
	mergeBool(&out.OutputOptions.AddOverviews, ov.OutputOptions.AddOverviews)

	mergeString(&out.Subdataset, ov.Subdataset)
	mergeFloat(&out.SpatialWavelengthCutoff, ov.SpatialWavelengthCutoff)
	if len(ov.BrowseImageVminVmax) == 2 {
		out.BrowseImageVminVmax = append([]float64(nil), ov.BrowseImageVminVmax...)
	}

	return &out
}

// Reinstantiate normalises a merged record through its JSON form, so that a
// partially-specified nested record decodes the same way a freshly loaded
// document would. Returns a ConfigError if the merged record no longer
// validates.
func (p *AlgorithmParameters) Reinstantiate() (*AlgorithmParameters, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to re-serialise parameters: %v", ErrConfig, err)
	}
	fresh := &AlgorithmParameters{}
	if err := strictUnmarshal(raw, fresh); err != nil {
		return nil, fmt.Errorf("%w: failed to re-instantiate parameters: %v", ErrConfig, err)
	}
	if err := fresh.Validate(); err != nil {
		return nil, fmt.Errorf("%w: merged parameters invalid: %v", ErrConfig, err)
	}
	return fresh, nil
}

// The merge helpers copy values rather than sharing pointers so the merged
// record has no aliasing back into the override document.

func mergeFloat(dst **float64, src *float64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeInt(dst **int, src *int) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeBool(dst **bool, src *bool) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeString(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
