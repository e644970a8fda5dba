package product

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/meridian-eo/disp/internal/acquisition"
	"github.com/meridian-eo/disp/internal/hdataset"
	"github.com/meridian-eo/disp/internal/quality"
	"github.com/meridian-eo/disp/internal/raster"
)

// datetimeFormat renders timestamps in the provenance fields.
const datetimeFormat = "2006-01-02T15:04:05Z"

// buildInputs carries everything the group builders need.
type buildInputs struct {
	grid        raster.Grid
	disp        *raster.Raster
	filtered    *raster.Raster
	mask        *quality.Mask
	sources     Sources
	corrections computedCorrections
	footprint   string
	avgTempCoh  float64

	refStart, refEnd time.Time
	secStart, secEnd time.Time

	referenceFiles []string
}

// buildFile composes the full artifact tree: root layers, corrections,
// identification and metadata groups.
func (a *Assembler) buildFile(in buildInputs) *hdataset.File {
	file := hdataset.NewFile(hdataset.Attrs{
		"Conventions":        "CF-1.8",
		"title":              "Surface Displacement Product",
		"institution":        "Meridian Earth Observation",
		"contact":            "ops@meridian-eo.example",
		"mission_name":       "Sentinel-1",
		"reference_document": "Displacement Product Specification",
	})
	root := file.Root()

	addGridMapping(root, in.grid)

	layers := Layers()
	byName := make(map[string]LayerInfo, len(layers))
	for _, info := range layers {
		byName[info.Name] = info
	}

	addLayer(root, byName["displacement"], in.disp)
	addLayer(root, byName["short_wavelength_displacement"], in.filtered)
	addLayer(root, byName["recommended_mask"], in.mask.ToRaster())

	diagnostics := []struct {
		info LayerInfo
		path string
	}{
		{byName["connected_component_labels"], in.sources.ConnectedComponents},
		{byName["temporal_coherence"], in.sources.TemporalCoherence},
		{byName["estimated_phase_quality"], in.sources.Correlation},
		{byName["persistent_scatterer_mask"], in.sources.PSMask},
		{byName["shp_counts"], in.sources.SHPCount},
		{byName["water_mask"], in.sources.WaterMask},
		{byName["phase_similarity"], in.sources.Similarity},
	}
	for _, d := range diagnostics {
		addLayer(root, d.info, loadOrFill(d.path, in.grid, d.info))
	}

	a.addCorrectionsGroup(root, in)
	a.addIdentificationGroup(root, in)
	a.addMetadataGroup(root)

	return file
}

// addGridMapping writes the scalar CRS reference dataset the raster layers
// point at.
func addGridMapping(g *hdataset.Group, grid raster.Grid) {
	gt := grid.Geotransform
	g.CreateScalar("spatial_ref", 0, hdataset.Attrs{
		"grid_mapping_name": "transverse_mercator",
		"epsg":              grid.EPSG,
		"GeoTransform": fmt.Sprintf("%g %g %g %g %g %g",
			gt[0], gt[1], gt[2], gt[3], gt[4], gt[5]),
	})
}

// addLayer writes one raster layer, applying its mantissa budget first.
func addLayer(g *hdataset.Group, info LayerInfo, r *raster.Raster) {
	if info.KeepBits > 0 {
		raster.RoundMantissa(r.Data, info.KeepBits)
	}
	g.CreateRaster(info.Name, r, hdataset.Attrs{
		"long_name":    info.LongName,
		"description":  info.Description,
		"dtype":        info.Dtype,
		"fill_value":   info.FillValue,
		"units":        info.Units,
		"grid_mapping": "spatial_ref",
	})
}

func (a *Assembler) addCorrectionsGroup(root *hdataset.Group, in buildInputs) {
	g := root.CreateGroup(CorrectionsGroupName)
	g.Attrs["description"] = "Phase corrections applied to the unwrapped phase"
	addGridMapping(g, in.grid)

	iono := in.corrections.Ionosphere
	if iono == nil {
		iono = raster.New(in.grid, "meters")
	}
	addCorrection(g, "ionospheric_delay", "Ionospheric Delay",
		"Ionospheric phase delay used to correct the unwrapped phase", iono)

	if in.corrections.Troposphere != nil {
		addCorrection(g, "tropospheric_delay", "Tropospheric Delay",
			"Tropospheric phase delay used to correct the unwrapped phase", in.corrections.Troposphere)
	}

	if in.corrections.SolidEarth != nil {
		addCorrection(g, "solid_earth_tide", "Solid Earth Tide",
			"Solid Earth tide used to correct the unwrapped phase", in.corrections.SolidEarth)
	}

	addCorrection(g, "perpendicular_baseline", "Perpendicular Baseline",
		"Perpendicular baseline between reference and secondary acquisitions", in.corrections.Baseline)

	// The reference point dataset is a scalar; its attributes hold lists
	// since the reference can come from an averaged area.
	refAttrs := hdataset.Attrs{
		"rows": []int{}, "cols": []int{},
		"latitudes": []float64{}, "longitudes": []float64{},
		"units": "unitless",
	}
	if p := a.ReferencePoint; p != nil {
		refAttrs["rows"] = []int{p.Row}
		refAttrs["cols"] = []int{p.Col}
		refAttrs["latitudes"] = []float64{p.Lat}
		refAttrs["longitudes"] = []float64{p.Lon}
	}
	refAttrs["description"] = "Location where the reference phase was taken"
	g.CreateScalar("reference_point", 0, refAttrs)
}

func addCorrection(g *hdataset.Group, name, longName, description string, r *raster.Raster) {
	raster.RoundMantissa(r.Data, correctionsKeepBits)
	g.CreateRaster(name, r, hdataset.Attrs{
		"long_name":    longName,
		"description":  description,
		"units":        "meters",
		"grid_mapping": "spatial_ref",
	})
}

func (a *Assembler) addIdentificationGroup(root *hdataset.Group, in buildInputs) {
	g := root.CreateGroup(IdentificationGroupName)
	rc := a.Resolved
	near, far := a.incidenceAngles()

	add := func(name string, value interface{}, description string, attrs hdataset.Attrs) {
		if attrs == nil {
			attrs = hdataset.Attrs{}
		}
		attrs["description"] = description
		g.CreateScalar(name, value, attrs)
	}

	add("processing_facility", "Meridian EO processing cluster",
		"Product processing facility", nil)
	add("frame_id", rc.FrameID, "ID number of the processed frame", nil)
	add("product_version", rc.ProductVersion, "Version of the product", nil)
	add("static_layers_data_access", rc.StaticLayersDataAccess,
		"Location of the static layers product associated with this product (URL or DOI)", nil)
	add("radar_band", "C", "Acquired radar frequency band", nil)

	add("reference_zero_doppler_start_time", in.refStart.Format(datetimeFormat),
		"Zero doppler start time of the first burst contained in the frame for the reference acquisition", nil)
	add("reference_zero_doppler_end_time", in.refEnd.Format(datetimeFormat),
		"Zero doppler start time of the last burst contained in the frame for the reference acquisition", nil)
	add("secondary_zero_doppler_start_time", in.secStart.Format(datetimeFormat),
		"Zero doppler start time of the first burst contained in the frame for the secondary acquisition", nil)
	add("secondary_zero_doppler_end_time", in.secEnd.Format(datetimeFormat),
		"Zero doppler start time of the last burst contained in the frame for the secondary acquisition", nil)

	add("bounding_polygon", in.footprint,
		"WKT representation of bounding polygon of the image", hdataset.Attrs{"units": "degrees"})
	add("radar_wavelength", a.wavelength(),
		"Wavelength of the transmitted signal", hdataset.Attrs{"units": "meters"})
	add("reference_datetime", in.refStart.Format(datetimeFormat),
		"UTC datetime of the acquisition sensing start of the reference epoch", nil)
	add("secondary_datetime", in.secStart.Format(datetimeFormat),
		"UTC datetime of the acquisition sensing start of the secondary epoch", nil)
	add("average_temporal_coherence", in.avgTempCoh,
		"Mean value of valid pixels within temporal_coherence layer", hdataset.Attrs{"units": "unitless"})

	add("ceos_analysis_ready_data_product_type", "InSAR",
		"CEOS Analysis Ready Data (CARD) product type name", nil)
	add("ceos_analysis_ready_data_document_identifier", "https://ceos.org/ard/",
		"CEOS Analysis Ready Data (CARD) document identifier", nil)

	inputDates, processingDates := inputDateRanges(rc.CslcFileList)
	add("source_data_satellite_names", strings.Join(acquisition.Sensors(rc.CslcFileList), ","),
		"Names of satellites included in input granules", nil)
	if len(inputDates) > 0 {
		add("source_data_earliest_acquisition", inputDates[0].Format(datetimeFormat),
			"Datetime of earliest input granule used during processing", nil)
		add("source_data_latest_acquisition", inputDates[len(inputDates)-1].Format(datetimeFormat),
			"Datetime of latest input granule used during processing", nil)
	}
	if len(processingDates) > 0 {
		add("source_data_earliest_processing_datetime", processingDates[0].Format(datetimeFormat),
			"Earliest processing datetime of input granules", nil)
		add("source_data_latest_processing_datetime", processingDates[len(processingDates)-1].Format(datetimeFormat),
			"Latest processing datetime of input granules", nil)
	}
	add("ceos_number_of_input_granules", len(rc.CslcFileList),
		"Number of input data granules used during processing", nil)
	add("source_data_orbit_type", a.orbitType(),
		"Type of orbit (precise, restituted) used during input data processing", nil)

	add("acquisition_mode", "IW", "Radar acquisition mode for input products", nil)
	add("radar_center_frequency", 5405000454.33435,
		"Radar center frequency of input products", hdataset.Attrs{"units": "Hertz"})
	add("source_data_polarization", "VV", "Radar polarization of input products", nil)
	add("source_data_original_institution", "European Space Agency",
		"Original processing institution of the source SLC data", nil)
	add("source_data_access", "https://search.asf.alaska.edu/",
		"Location from where the source data can be retrieved (URL or DOI)", nil)

	stems := make([]string, len(rc.CslcFileList))
	for i, f := range rc.CslcFileList {
		stems[i] = acquisition.Stem(f)
	}
	add("source_data_file_list", strings.Join(stems, ","),
		"List of input coregistered SLC granules used to create the displacement frame", nil)

	add("source_data_range_resolutions", "[2.7, 3.1, 3.5]",
		"List of [IW1, IW2, IW3] range resolutions from source L1 SLCs", hdataset.Attrs{"units": "meters"})
	add("source_data_azimuth_resolutions", "[22.5, 22.7, 22.6]",
		"List of [IW1, IW2, IW3] azimuth resolutions from source L1 SLCs", hdataset.Attrs{"units": "meters"})
	add("source_data_x_spacing", 5,
		"Pixel spacing of source geocoded SLC data in the x-direction", hdataset.Attrs{"units": "meters"})
	add("source_data_y_spacing", 10,
		"Pixel spacing of source geocoded SLC data in the y-direction", hdataset.Attrs{"units": "meters"})
	add("source_data_max_noise_equivalent_sigma_zero", -22.0,
		"Maximum noise equivalent sigma0", hdataset.Attrs{"units": "dB"})
	add("source_data_dem_name", "Copernicus GLO-30",
		"Name of Digital Elevation Model used during input data processing", nil)

	add("near_range_incidence_angle", near,
		"Incidence angle at the near range of the displacement frame", hdataset.Attrs{"units": "degrees"})
	add("far_range_incidence_angle", far,
		"Incidence angle at the far range of the displacement frame", hdataset.Attrs{"units": "degrees"})

	add("product_sample_spacing", in.grid.PixelSpacing(),
		"Spacing between adjacent X/Y samples of the displacement product", hdataset.Attrs{"units": "meters"})
	west, south, east, north := in.grid.Bounds()
	add("product_bounding_box", fmt.Sprintf("%g,%g,%g,%g", west, south, east, north),
		"Opposite corners of the product as (west, south, east, north)", hdataset.Attrs{"units": "meters"})
	add("product_data_access", "https://data.meridian-eo.example/disp",
		"Location from where the product can be retrieved (URL or DOI)", nil)
}

func (a *Assembler) orbitType() string {
	return "precise orbit file"
}

func (a *Assembler) addMetadataGroup(root *hdataset.Group) {
	g := root.CreateGroup(MetadataGroupName)
	params := a.Resolved.Parameters

	add := func(name string, value interface{}, description string) {
		g.CreateScalar(name, value, hdataset.Attrs{"description": description})
	}

	add("disp_software_version", a.SoftwareVersion,
		"Version of the software used to generate the product")
	add("run_configuration", stripNonASCII(a.RunConfigText),
		"The full run configuration document used to generate the product")
	add("algorithm_parameters", stripNonASCII(a.ParametersText),
		"The full algorithm parameters document used to generate the product")
	add("product_pixel_coordinate_convention", "center",
		"x/y coordinate convention referring to pixel center or corner")
	add("product_persistent_scatterer_selection_criteria", "Amplitude Dispersion",
		"Name of persistent scatterer selection criteria")
	add("product_persistent_scatterer_selection_criteria_doi", "https://doi.org/10.1109/36.898661",
		"DOI of reference describing persistent scatterer selection criteria")
	add("phase_unwrapping_method", params.UnwrapOptions.GetUnwrapMethod(),
		"Name of phase unwrapping method")
	add("timeseries_inversion_method", params.TimeseriesOptions.GetMethod(),
		"Norm used for the unwrapped network inversion")
	add("atmospheric_phase_correction", "None",
		"Method used to correct for atmospheric phase noise")
	add("ionospheric_phase_correction", "None",
		"Method used to correct for ionospheric phase noise")
	add("ceos_noise_removal", "No",
		"Whether noise removal has been applied")
}

// inputDateRanges returns the sorted acquisition dates of all inputs and the
// sorted processing (generation) dates of the non-compressed inputs.
func inputDateRanges(files []string) (inputDates, processingDates []time.Time) {
	for _, f := range files {
		dates, err := acquisition.Dates(f)
		if err != nil {
			continue
		}
		inputDates = append(inputDates, dates[0])
		if !acquisition.IsCompressed(f) && len(dates) > 1 {
			processingDates = append(processingDates, dates[1])
		}
	}
	sort.Slice(inputDates, func(i, j int) bool { return inputDates[i].Before(inputDates[j]) })
	sort.Slice(processingDates, func(i, j int) bool { return processingDates[i].Before(processingDates[j]) })
	return inputDates, processingDates
}
