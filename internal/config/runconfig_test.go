package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRunConfig = `{
	"input_file_group": {
		"cslc_file_list": ["OPERA_L2_CSLC-S1_T042-088905-IW1_20221119T000000Z_20221121T000000Z_S1A_VV_v1.0.h5"],
		"frame_id": 831
	},
	"dynamic_ancillary_file_group": {
		"algorithm_parameters_file": "algorithm_parameters.json",
		"mask_file": "water_mask.tif"
	},
	"static_ancillary_file_group": {
		"frame_to_burst_json": "frame_to_burst.json",
		"reference_date_database_json": "reference_dates.json"
	},
	"product_path_group": {
		"product_path": "./products",
		"sas_output_path": "./sas_output",
		"product_version": "0.4"
	},
	"worker_settings": {"n_workers": 4}
}`

func TestLoadRunConfig(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, "runconfig.json", validRunConfig)
	rc, err := LoadRunConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 831, rc.InputFileGroup.FrameID)
	assert.Equal(t, "./sas_output", rc.ProductPathGroup.GetOutputDirectory())
	assert.Equal(t, "0.4", rc.ProductPathGroup.GetProductVersion())
	assert.Equal(t, 4, rc.WorkerSettings.GetMaxWorkers())
	assert.Equal(t, "DISP_FORWARD", rc.PrimaryExecutable.GetProductType())
	assert.Equal(t, "water_mask.tif", rc.DynamicAncillaryFileGroup.MaskFile)
}

func TestRunConfigDefaults(t *testing.T) {
	t.Parallel()

	pg := &ProductPathGroup{ProductPath: "p"}
	assert.Equal(t, "./scratch", pg.GetScratchPath())
	assert.Equal(t, "./output", pg.GetOutputDirectory())
	assert.Equal(t, "0.3", pg.GetProductVersion())
	assert.Equal(t, "(Not provided)", pg.GetStaticLayersDataAccess())

	ws := &WorkerSettings{}
	assert.Equal(t, 3, ws.GetMaxWorkers())
}

func TestRunConfigValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*RunConfig)
	}{
		{"zero frame id", func(rc *RunConfig) { rc.InputFileGroup.FrameID = 0 }},
		{"empty file list", func(rc *RunConfig) { rc.InputFileGroup.CslcFileList = nil }},
		{"missing params file", func(rc *RunConfig) { rc.DynamicAncillaryFileGroup.AlgorithmParametersFile = "" }},
		{"missing product path", func(rc *RunConfig) { rc.ProductPathGroup.ProductPath = "" }},
		{"zero workers", func(rc *RunConfig) { zero := 0; rc.WorkerSettings.MaxWorkers = &zero }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rc := &RunConfig{
				InputFileGroup: InputFileGroup{
					CslcFileList: []string{"a.h5"},
					FrameID:      831,
				},
				DynamicAncillaryFileGroup: DynamicAncillaryFileGroup{
					AlgorithmParametersFile: "params.json",
				},
				ProductPathGroup: ProductPathGroup{ProductPath: "./products"},
			}
			tc.mutate(rc)
			assert.Error(t, rc.Validate())
		})
	}
}

func TestLoadRunConfigRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, "runconfig.json", `{"input_file_group": {"cslc_file_list": ["a"], "frame_id": 1}, "bogus": true}`)
	_, err := LoadRunConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadRunConfigRejectsNonJSON(t *testing.T) {
	t.Parallel()

	_, err := LoadRunConfig("runconfig.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}
