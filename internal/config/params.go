// Package config holds the processing configuration records: the PGE-style
// run configuration, the algorithm parameter document and its frame-keyed
// override mechanism.
//
// All optional knobs are pointer-typed so a JSON document can distinguish
// "omitted" from "zero"; Get* accessors carry the documented defaults. The
// same layout drives both initial loading and the override merge.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxConfigFileSize bounds configuration documents read from disk.
const maxConfigFileSize = 4 * 1024 * 1024

// PSOptions are the persistent-scatterer selection knobs.
type PSOptions struct {
	AmpDispersionThreshold *float64 `json:"amp_dispersion_threshold,omitempty"`
}

// GetAmpDispersionThreshold returns the amplitude-dispersion cutoff for PS
// selection.
func (o *PSOptions) GetAmpDispersionThreshold() float64 {
	if o.AmpDispersionThreshold == nil {
		return 0.25
	}
	return *o.AmpDispersionThreshold
}

// PhaseLinkingOptions control the phase-linking stage.
type PhaseLinkingOptions struct {
	HalfWindowX   *int    `json:"half_window_x,omitempty"`
	HalfWindowY   *int    `json:"half_window_y,omitempty"`
	MiniStackSize *int    `json:"ministack_size,omitempty"`
	ShpMethod     *string `json:"shp_method,omitempty"`
	ShpAlpha      *float64 `json:"shp_alpha,omitempty"`

	// OutputReferenceIdx is injected by the translator from the resolved
	// reference, never set in parameter documents.
	OutputReferenceIdx int `json:"output_reference_idx"`
}

func (o *PhaseLinkingOptions) GetHalfWindowX() int {
	if o.HalfWindowX == nil {
		return 11
	}
	return *o.HalfWindowX
}

func (o *PhaseLinkingOptions) GetHalfWindowY() int {
	if o.HalfWindowY == nil {
		return 5
	}
	return *o.HalfWindowY
}

func (o *PhaseLinkingOptions) GetMiniStackSize() int {
	if o.MiniStackSize == nil {
		return 15
	}
	return *o.MiniStackSize
}

func (o *PhaseLinkingOptions) GetShpMethod() string {
	if o.ShpMethod == nil {
		return "glrt"
	}
	return *o.ShpMethod
}

func (o *PhaseLinkingOptions) GetShpAlpha() float64 {
	if o.ShpAlpha == nil {
		return 0.005
	}
	return *o.ShpAlpha
}

// InterferogramNetworkOptions choose which pairs enter the unwrapped network.
type InterferogramNetworkOptions struct {
	ReferenceIdx        *int `json:"reference_idx,omitempty"`
	MaxBandwidth        *int `json:"max_bandwidth,omitempty"`
	MaxTemporalBaseline *int `json:"max_temporal_baseline,omitempty"`
}

func (o *InterferogramNetworkOptions) GetMaxBandwidth() int {
	if o.MaxBandwidth == nil {
		return 4
	}
	return *o.MaxBandwidth
}

// UnwrapOptions control the phase unwrapping stage (the algorithm itself is
// an external collaborator; only its knobs are carried).
type UnwrapOptions struct {
	RunUnwrap        *bool   `json:"run_unwrap,omitempty"`
	UnwrapMethod     *string `json:"unwrap_method,omitempty"`
	NTilesRow        *int    `json:"ntiles_row,omitempty"`
	NTilesCol        *int    `json:"ntiles_col,omitempty"`
	DownsampleFactor *int    `json:"downsample_factor,omitempty"`
}

func (o *UnwrapOptions) GetRunUnwrap() bool {
	if o.RunUnwrap == nil {
		return true
	}
	return *o.RunUnwrap
}

func (o *UnwrapOptions) GetUnwrapMethod() string {
	if o.UnwrapMethod == nil {
		return "snaphu"
	}
	return *o.UnwrapMethod
}

// TimeseriesOptions control the unwrapped-network inversion.
type TimeseriesOptions struct {
	RunVelocity *bool   `json:"run_velocity,omitempty"`
	Method      *string `json:"method,omitempty"`
}

func (o *TimeseriesOptions) GetRunVelocity() bool {
	if o.RunVelocity == nil {
		return true
	}
	return *o.RunVelocity
}

func (o *TimeseriesOptions) GetMethod() string {
	if o.Method == nil {
		return "L2"
	}
	return *o.Method
}

// OutputOptions shape the written product grid.
type OutputOptions struct {
	StridesX     *int `json:"strides_x,omitempty"`
	StridesY     *int `json:"strides_y,omitempty"`
	AddOverviews *bool `json:"add_overviews,omitempty"`

	// Bounds, BoundsEPSG and ExtraReferenceDate are injected by the
	// translator, never set in parameter documents.
	Bounds             []float64  `json:"bounds,omitempty"`
	BoundsEPSG         int        `json:"bounds_epsg,omitempty"`
	ExtraReferenceDate *time.Time `json:"extra_reference_date,omitempty"`
}

func (o *OutputOptions) GetStridesX() int {
	if o.StridesX == nil {
		return 6
	}
	return *o.StridesX
}

func (o *OutputOptions) GetStridesY() int {
	if o.StridesY == nil {
		return 3
	}
	return *o.StridesY
}

func (o *OutputOptions) GetAddOverviews() bool {
	if o.AddOverviews == nil {
		return true
	}
	return *o.AddOverviews
}

// AlgorithmParameters is the nested record of processing knobs. It is mutated
// only by the override merge; a merge either applies fully or not at all.
type AlgorithmParameters struct {
	// OverridesPath optionally points at a frame-keyed override document.
	OverridesPath string `json:"algorithm_parameters_overrides_json,omitempty"`

	PSOptions            PSOptions                   `json:"ps_options"`
	PhaseLinking         PhaseLinkingOptions         `json:"phase_linking"`
	InterferogramNetwork InterferogramNetworkOptions `json:"interferogram_network"`
	UnwrapOptions        UnwrapOptions               `json:"unwrap_options"`
	TimeseriesOptions    TimeseriesOptions           `json:"timeseries_options"`
	OutputOptions        OutputOptions               `json:"output_options"`

	Subdataset *string `json:"subdataset,omitempty"`

	// SpatialWavelengthCutoff (meters) feeds the long-wavelength spatial
	// filter that produces the short-wavelength displacement layer.
	SpatialWavelengthCutoff *float64 `json:"spatial_wavelength_cutoff,omitempty"`

	// BrowseImageVminVmax is the fixed display range (meters) for the
	// browse image.
	BrowseImageVminVmax []float64 `json:"browse_image_vmin_vmax,omitempty"`
}

func (p *AlgorithmParameters) GetSubdataset() string {
	if p.Subdataset == nil {
		return "/data/VV"
	}
	return *p.Subdataset
}

func (p *AlgorithmParameters) GetSpatialWavelengthCutoff() float64 {
	if p.SpatialWavelengthCutoff == nil {
		return 25000
	}
	return *p.SpatialWavelengthCutoff
}

// GetBrowseImageVminVmax returns the (vmin, vmax) display range.
func (p *AlgorithmParameters) GetBrowseImageVminVmax() (float64, float64) {
	if len(p.BrowseImageVminVmax) != 2 {
		return -0.10, 0.10
	}
	return p.BrowseImageVminVmax[0], p.BrowseImageVminVmax[1]
}

// LoadAlgorithmParameters loads an algorithm parameter document from JSON.
func LoadAlgorithmParameters(path string) (*AlgorithmParameters, error) {
	raw, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	params := &AlgorithmParameters{}
	if err := strictUnmarshal(raw, params); err != nil {
		return nil, fmt.Errorf("%w: algorithm parameters %s: %v", ErrConfig, path, err)
	}
	if err := rejectInjectedKeys(raw); err != nil {
		return nil, fmt.Errorf("%w: algorithm parameters %s: %v", ErrConfig, path, err)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: algorithm parameters %s: %v", ErrConfig, path, err)
	}
	return params, nil
}

// Validate checks value ranges for the knobs that have them.
func (p *AlgorithmParameters) Validate() error {
	if v := p.PSOptions.AmpDispersionThreshold; v != nil && (*v <= 0 || *v >= 1) {
		return fmt.Errorf("amp_dispersion_threshold must be in (0, 1), got %f", *v)
	}
	if v := p.SpatialWavelengthCutoff; v != nil && *v <= 0 {
		return fmt.Errorf("spatial_wavelength_cutoff must be positive, got %f", *v)
	}
	if m := p.TimeseriesOptions.Method; m != nil && *m != "L1" && *m != "L2" {
		return fmt.Errorf("timeseries method must be L1 or L2, got %q", *m)
	}
	if len(p.BrowseImageVminVmax) != 0 && len(p.BrowseImageVminVmax) != 2 {
		return fmt.Errorf("browse_image_vmin_vmax must have exactly 2 entries, got %d", len(p.BrowseImageVminVmax))
	}
	return nil
}

// readConfigFile applies the shared extension and size guards.
func readConfigFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("%w: config file must have .json extension, got %q", ErrConfig, ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrConfig, info.Size(), maxConfigFileSize)
	}
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return raw, nil
}

// injectedParameterKeys are populated by the translator from the resolved
// run, never by documents. They share the parameter layout so the merged
// record can round-trip through Reinstantiate, which makes them decodable;
// a document setting one is rejected rather than silently overwritten.
var injectedParameterKeys = [][2]string{
	{"phase_linking", "output_reference_idx"},
	{"output_options", "bounds"},
	{"output_options", "bounds_epsg"},
	{"output_options", "extra_reference_date"},
}

func rejectInjectedKeys(raw []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	for _, k := range injectedParameterKeys {
		groupRaw, ok := doc[k[0]]
		if !ok {
			continue
		}
		var group map[string]json.RawMessage
		if err := json.Unmarshal(groupRaw, &group); err != nil {
			continue
		}
		if _, ok := group[k[1]]; ok {
			return fmt.Errorf("%s.%s is set during translation and must not appear in a parameter document", k[0], k[1])
		}
	}
	return nil
}

// strictUnmarshal decodes JSON refusing unknown keys, so typos in parameter
// documents surface instead of silently doing nothing.
func strictUnmarshal(raw []byte, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
