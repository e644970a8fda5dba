// Package product assembles the layered displacement artifact: raster layers,
// quality masks, corrections and provenance metadata composed into one
// hierarchical dataset, degrading gracefully when auxiliary computations
// fail.
package product

import "math"

// Group names inside the output artifact.
const (
	CorrectionsGroupName    = "corrections"
	IdentificationGroupName = "identification"
	MetadataGroupName       = "metadata"
)

// SentinelWavelength is the C-band radar wavelength in meters, used when the
// source metadata does not carry one.
const SentinelWavelength = 0.05546576

// correctionsKeepBits is the shared mantissa budget for correction layers.
const correctionsKeepBits = 10

// LayerInfo describes one output raster layer.
type LayerInfo struct {
	Name        string
	LongName    string
	Description string

	// Dtype is the storage type the layer is declared with. Integer-valued
	// layers are carried as float32 in memory and converted at the dataset
	// boundary.
	Dtype string

	FillValue float32

	// KeepBits is the mantissa budget for lossy truncation; zero disables
	// truncation (integer layers).
	KeepBits int

	Units string
}

var nan32 = float32(math.NaN())

// Layers returns the ordered output layer catalog. The first two entries are
// computed from the unwrapped phase; the rest are read from diagnostic source
// files.
func Layers() []LayerInfo {
	return []LayerInfo{
		{
			Name:        "displacement",
			LongName:    "Displacement with respect to the reference date",
			Description: "Displacement in the line-of-sight direction, positive towards the sensor",
			Dtype:       "float32",
			FillValue:   nan32,
			KeepBits:    9,
			Units:       "meters",
		},
		{
			Name:        "short_wavelength_displacement",
			LongName:    "Short wavelength displacement",
			Description: "Displacement with long-wavelength signals removed by spatial filtering",
			Dtype:       "float32",
			FillValue:   nan32,
			KeepBits:    9,
			Units:       "meters",
		},
		{
			Name:        "recommended_mask",
			LongName:    "Recommended mask",
			Description: "Mask of pixels recommended for use, composed from quality layers",
			Dtype:       "uint8",
			FillValue:   255,
			Units:       "unitless",
		},
		{
			Name:        "connected_component_labels",
			LongName:    "Connected component labels",
			Description: "Connected component labels of the unwrapped phase",
			Dtype:       "uint16",
			FillValue:   65535,
			Units:       "unitless",
		},
		{
			Name:        "temporal_coherence",
			LongName:    "Temporal coherence",
			Description: "Temporal coherence of the phase linking inversion",
			Dtype:       "float32",
			FillValue:   nan32,
			KeepBits:    10,
			Units:       "unitless",
		},
		{
			Name:        "estimated_phase_quality",
			LongName:    "Estimated phase quality",
			Description: "Estimated interferometric correlation of the multilooked phase",
			Dtype:       "float32",
			FillValue:   nan32,
			KeepBits:    10,
			Units:       "unitless",
		},
		{
			Name:        "persistent_scatterer_mask",
			LongName:    "Persistent scatterer mask",
			Description: "Mask of pixels selected as persistent scatterers",
			Dtype:       "uint8",
			FillValue:   255,
			Units:       "unitless",
		},
		{
			Name:        "shp_counts",
			LongName:    "SHP counts",
			Description: "Number of statistically homogeneous pixels found per output pixel",
			Dtype:       "int16",
			FillValue:   0,
			Units:       "unitless",
		},
		{
			Name:        "water_mask",
			LongName:    "Water mask",
			Description: "Mask of water/no-data pixels from the ancillary water mask",
			Dtype:       "uint8",
			FillValue:   255,
			Units:       "unitless",
		},
		{
			Name:        "phase_similarity",
			LongName:    "Phase similarity",
			Description: "Median cosine similarity of the wrapped phase within a neighborhood",
			Dtype:       "float32",
			FillValue:   nan32,
			KeepBits:    10,
			Units:       "unitless",
		},
	}
}
