package config

import (
	"fmt"
)

// InputFileGroup lists the CSLC granules and the frame they belong to.
type InputFileGroup struct {
	CslcFileList []string `json:"cslc_file_list"`
	FrameID      int      `json:"frame_id"`
}

// DynamicAncillaryFileGroup holds per-run ancillary inputs. Optional entries
// left empty cause the corresponding correction to be skipped downstream.
type DynamicAncillaryFileGroup struct {
	AlgorithmParametersFile string `json:"algorithm_parameters_file"`

	// GeometryFiles are the CSLC static-layer files (one per burst) with
	// line-of-sight unit vectors. The document key keeps the historical
	// "static_layers_files" name.
	GeometryFiles []string `json:"static_layers_files,omitempty"`

	// MaskFile is a byte mask; 0 marks no-data/water, 1 good data.
	MaskFile string `json:"mask_file,omitempty"`

	DEMFile          string   `json:"dem_file,omitempty"`
	IonosphereFiles  []string `json:"ionosphere_files,omitempty"`
	TroposphereFiles []string `json:"troposphere_files,omitempty"`
}

// StaticAncillaryFileGroup holds inputs that stay fixed across runs.
type StaticAncillaryFileGroup struct {
	FrameToBurstFile      string `json:"frame_to_burst_json,omitempty"`
	ReferenceDateDatabase string `json:"reference_date_database_json,omitempty"`
}

// PrimaryExecutable names the product type this run produces.
type PrimaryExecutable struct {
	ProductType string `json:"product_type,omitempty"`
}

// GetProductType returns the product type, defaulting to the forward mode.
func (p *PrimaryExecutable) GetProductType() string {
	if p.ProductType == "" {
		return "DISP_FORWARD"
	}
	return p.ProductType
}

// ProductPathGroup holds the output locations.
type ProductPathGroup struct {
	ProductPath string `json:"product_path"`
	ScratchPath string `json:"scratch_path,omitempty"`

	// OutputDirectory keeps the historical "sas_output_path" document key.
	OutputDirectory string `json:"sas_output_path,omitempty"`

	ProductVersion         string `json:"product_version,omitempty"`
	SaveCompressedSLC      bool   `json:"save_compressed_slc,omitempty"`
	StaticLayersDataAccess string `json:"static_layers_data_access,omitempty"`
}

// GetScratchPath returns the scratch directory, defaulting next to the run.
func (p *ProductPathGroup) GetScratchPath() string {
	if p.ScratchPath == "" {
		return "./scratch"
	}
	return p.ScratchPath
}

// GetOutputDirectory returns the output directory, defaulting next to the run.
func (p *ProductPathGroup) GetOutputDirectory() string {
	if p.OutputDirectory == "" {
		return "./output"
	}
	return p.OutputDirectory
}

// GetProductVersion returns the product version string.
func (p *ProductPathGroup) GetProductVersion() string {
	if p.ProductVersion == "" {
		return "0.3"
	}
	return p.ProductVersion
}

// GetStaticLayersDataAccess returns the static-layers access string.
func (p *ProductPathGroup) GetStaticLayersDataAccess() string {
	if p.StaticLayersDataAccess == "" {
		return "(Not provided)"
	}
	return p.StaticLayersDataAccess
}

// WorkerSettings bound the parallelism of the fan-out stages.
type WorkerSettings struct {
	MaxWorkers *int `json:"n_workers,omitempty"`
}

// GetMaxWorkers returns the worker count for parallel stages.
func (w *WorkerSettings) GetMaxWorkers() int {
	if w.MaxWorkers == nil {
		return 3
	}
	return *w.MaxWorkers
}

// RunConfig is the PGE-style run configuration: what to process, where the
// ancillary inputs live and where output goes. It is immutable after load.
type RunConfig struct {
	InputFileGroup            InputFileGroup            `json:"input_file_group"`
	DynamicAncillaryFileGroup DynamicAncillaryFileGroup `json:"dynamic_ancillary_file_group"`
	StaticAncillaryFileGroup  StaticAncillaryFileGroup  `json:"static_ancillary_file_group"`
	PrimaryExecutable         PrimaryExecutable         `json:"primary_executable"`
	ProductPathGroup          ProductPathGroup          `json:"product_path_group"`
	WorkerSettings            WorkerSettings            `json:"worker_settings"`
	LogFile                   string                    `json:"log_file,omitempty"`
}

// LoadRunConfig reads and validates a run configuration document.
func LoadRunConfig(path string) (*RunConfig, error) {
	raw, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	rc := &RunConfig{}
	if err := strictUnmarshal(raw, rc); err != nil {
		return nil, fmt.Errorf("%w: run configuration %s: %v", ErrConfig, path, err)
	}
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: run configuration %s: %v", ErrConfig, path, err)
	}
	return rc, nil
}

// Validate checks the structural requirements a run configuration must meet
// before translation is attempted.
func (rc *RunConfig) Validate() error {
	if rc.InputFileGroup.FrameID <= 0 {
		return fmt.Errorf("frame_id must be positive, got %d", rc.InputFileGroup.FrameID)
	}
	if len(rc.InputFileGroup.CslcFileList) == 0 {
		return fmt.Errorf("cslc_file_list must not be empty")
	}
	if rc.DynamicAncillaryFileGroup.AlgorithmParametersFile == "" {
		return fmt.Errorf("algorithm_parameters_file is required")
	}
	if rc.ProductPathGroup.ProductPath == "" {
		return fmt.Errorf("product_path is required")
	}
	if w := rc.WorkerSettings.MaxWorkers; w != nil && *w < 1 {
		return fmt.Errorf("n_workers must be at least 1, got %d", *w)
	}
	return nil
}
