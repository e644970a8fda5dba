package product

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/meridian-eo/disp/internal/acquisition"
	"github.com/meridian-eo/disp/internal/baseline"
	"github.com/meridian-eo/disp/internal/browse"
	"github.com/meridian-eo/disp/internal/hdataset"
	"github.com/meridian-eo/disp/internal/monitoring"
	"github.com/meridian-eo/disp/internal/quality"
	"github.com/meridian-eo/disp/internal/raster"
	"github.com/meridian-eo/disp/internal/tides"
	"github.com/meridian-eo/disp/internal/translate"
)

// ErrMissingSource marks an optional diagnostic raster file that is absent.
// Assembly recovers by substituting a fill-value raster.
var ErrMissingSource = errors.New("missing source raster")

// Sources names the input raster files for one product. UnwrappedPhase is
// required; the diagnostics fall back to fill rasters when absent; WaterMask,
// LOSEast and LOSNorth are optional.
type Sources struct {
	UnwrappedPhase      string
	ConnectedComponents string
	TemporalCoherence   string
	Correlation         string
	PSMask              string
	SHPCount            string
	Similarity          string
	WaterMask           string
	LOSEast             string
	LOSNorth            string
}

// ReferencePoint is the pixel the unwrapped phase was referenced to.
type ReferencePoint struct {
	Row, Col int
	Lat, Lon float64
}

// Filter removes long-wavelength signal from the displacement, restricted to
// pixels not flagged bad. It is an external collaborator; implementations
// must not modify the input raster.
type Filter func(disp *raster.Raster, bad []bool, wavelengthCutoff, pixelSpacing float64) (*raster.Raster, error)

// FootprintFunc extracts a WKT footprint polygon from the product raster.
type FootprintFunc func(r *raster.Raster) (string, error)

// Manifest is the assembled artifact, owned by the assembler until written.
type Manifest struct {
	File       *hdataset.File
	OutputPath string
	BrowsePath string

	ReferenceTime time.Time
	SecondaryTime time.Time
}

// Corrections carries correction rasters computed upstream of assembly,
// on the product grid and in meters. Entries left nil fall back to the
// group defaults: a zero ionospheric delay, an omitted tropospheric delay.
type Corrections struct {
	Ionosphere  *raster.Raster
	Troposphere *raster.Raster
}

// Assembler holds the collaborators and fixed facts one product run needs.
// Zero-value collaborators get documented defaults.
type Assembler struct {
	Resolved *translate.ResolvedConfig

	// RunConfigText and ParametersText are the verbatim configuration
	// documents recorded in the metadata group.
	RunConfigText  string
	ParametersText string

	Filter      Filter
	Baseline    baseline.Model
	Tides       tides.Model
	Footprint   FootprintFunc
	Corrections Corrections

	ReferencePoint *ReferencePoint

	// Wavelength in meters; zero means SentinelWavelength.
	Wavelength float64

	// NearFarIncidenceAngles in degrees; zero means the (30, 45)
	// approximation.
	NearFarIncidenceAngles [2]float64

	SoftwareVersion string
}

func (a *Assembler) wavelength() float64 {
	if a.Wavelength > 0 {
		return a.Wavelength
	}
	return SentinelWavelength
}

func (a *Assembler) incidenceAngles() (float64, float64) {
	if a.NearFarIncidenceAngles == [2]float64{} {
		return 30.0, 45.0
	}
	return a.NearFarIncidenceAngles[0], a.NearFarIncidenceAngles[1]
}

// Assemble builds and writes the layered product. referenceFiles and
// secondaryFiles are the granules of the reference and secondary epochs. The
// write is single-pass and not transactional; callers needing integrity stage
// the output directory and rename on success.
func (a *Assembler) Assemble(outputPath string, sources Sources, referenceFiles, secondaryFiles []string) (*Manifest, error) {
	if len(referenceFiles) == 0 {
		return nil, fmt.Errorf("missing input reference granules")
	}
	if len(secondaryFiles) == 0 {
		return nil, fmt.Errorf("missing input secondary granules")
	}

	refStart, refEnd, err := epochWindow(referenceFiles)
	if err != nil {
		return nil, fmt.Errorf("reference epoch: %w", err)
	}
	secStart, secEnd, err := epochWindow(secondaryFiles)
	if err != nil {
		return nil, fmt.Errorf("secondary epoch: %w", err)
	}

	unw, err := raster.Load(sources.UnwrappedPhase)
	if err != nil {
		return nil, fmt.Errorf("failed to load unwrapped phase: %w", err)
	}
	grid := unw.Grid

	disp := a.phaseToDisplacement(unw, sources.UnwrappedPhase)

	// Zero phase marks pixels the unwrapper never reached.
	unset := make([]bool, len(unw.Data))
	for i, v := range unw.Data {
		unset[i] = v == 0
	}

	tempCoh := loadOrFill(sources.TemporalCoherence, grid, layerByName("temporal_coherence"))
	connComp := loadOrFill(sources.ConnectedComponents, grid, LayerInfo{Name: "connected_component_labels", FillValue: 0, Units: "unitless"})
	similarity := loadOrFill(sources.Similarity, grid, LayerInfo{Name: "phase_similarity", FillValue: 0, Units: "unitless"})

	var waterMask *raster.Raster
	if sources.WaterMask != "" {
		waterMask = loadOrFill(sources.WaterMask, grid, LayerInfo{Name: "water_mask", FillValue: 1, Units: "unitless"})
	}

	mask, err := quality.RecommendedMask(quality.Layers{
		TemporalCoherence:   tempCoh,
		ConnectedComponents: connComp,
		Similarity:          similarity,
		WaterMask:           waterMask,
	})
	if err != nil {
		return nil, err
	}
	bad := make([]bool, len(mask.Data))
	for i, good := range mask.Data {
		bad[i] = !good
	}

	filtered, err := a.applyFilter(disp, bad)
	if err != nil {
		return nil, err
	}

	// Filtering is lenient, the secondary product is strict: the filtered
	// layer nulls every bad pixel, the primary only unset ones.
	for i := range disp.Data {
		if unset[i] {
			disp.Data[i] = nan32
		}
		if bad[i] {
			filtered.Data[i] = nan32
		}
	}

	avgTempCoh := meanValid(tempCoh.Data)

	corrections := a.computeCorrections(grid, sources, refStart, secStart)
	footprint := a.computeFootprint(disp)

	file := a.buildFile(buildInputs{
		grid:           grid,
		disp:           disp,
		filtered:       filtered,
		mask:           mask,
		sources:        sources,
		corrections:    corrections,
		footprint:      footprint,
		avgTempCoh:     avgTempCoh,
		refStart:       refStart,
		refEnd:         refEnd,
		secStart:       secStart,
		secEnd:         secEnd,
		referenceFiles: referenceFiles,
	})

	if err := file.Save(outputPath); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		File:          file,
		OutputPath:    outputPath,
		ReferenceTime: refStart,
		SecondaryTime: secStart,
	}

	// Browse image is a best-effort side effect, not part of the manifest.
	browsePath := outputPath + ".short_wavelength_displacement.png"
	vmin, vmax := a.Resolved.Parameters.GetBrowseImageVminVmax()
	if err := browse.WritePNG(browsePath, filtered, browse.Options{
		VMin:  vmin,
		VMax:  vmax,
		Title: "short wavelength displacement",
	}); err != nil {
		monitoring.Warnf("failed to render browse image: %v", err)
	} else {
		manifest.BrowsePath = browsePath
	}

	return manifest, nil
}

// phaseToDisplacement converts unwrapped phase to line-of-sight displacement
// in meters. Unrecognised units are assumed to be radians with a warning;
// meters pass through unchanged.
func (a *Assembler) phaseToDisplacement(unw *raster.Raster, path string) *raster.Raster {
	phase2disp := -a.wavelength() / (4 * math.Pi)

	out := unw.Clone()
	out.Units = "meters"
	switch unw.Units {
	case "meters":
		return out
	case "radians":
	default:
		monitoring.Warnf("unknown units %q for %s: assuming radians", unw.Units, path)
	}
	for i, v := range out.Data {
		out.Data[i] = float32(float64(v) * phase2disp)
	}
	return out
}

func (a *Assembler) applyFilter(disp *raster.Raster, bad []bool) (*raster.Raster, error) {
	cutoff := a.Resolved.Parameters.GetSpatialWavelengthCutoff()
	spacing := disp.PixelSpacing()
	monitoring.Logf("creating short wavelength displacement with %.0f meter cutoff", cutoff)
	if a.Filter == nil {
		// No filter collaborator: the short-wavelength layer degenerates
		// to a masked copy.
		return disp.Clone(), nil
	}
	filtered, err := a.Filter(disp, bad, cutoff, spacing)
	if err != nil {
		return nil, fmt.Errorf("long-wavelength filter failed: %w", err)
	}
	if !disp.Grid.Same(filtered.Grid) {
		return nil, fmt.Errorf("%w: filter output %dx%d, expected %dx%d",
			raster.ErrShapeMismatch, filtered.Rows, filtered.Cols, disp.Rows, disp.Cols)
	}
	return filtered, nil
}

// computedCorrections are the correction layers going into the corrections
// group. SolidEarth stays nil when the line-of-sight inputs are absent;
// Troposphere stays nil when the caller supplied none.
type computedCorrections struct {
	Ionosphere  *raster.Raster
	Troposphere *raster.Raster
	SolidEarth  *raster.Raster
	Baseline    *raster.Raster
}

// computeCorrections runs the isolated auxiliary computations. Failures are
// logged and replaced with documented fallbacks, never propagated.
func (a *Assembler) computeCorrections(grid raster.Grid, sources Sources, refStart, secStart time.Time) computedCorrections {
	var out computedCorrections

	out.Ionosphere = a.suppliedCorrection(grid, "ionospheric delay", a.Corrections.Ionosphere, a.Resolved.IonosphereFiles)
	out.Troposphere = a.suppliedCorrection(grid, "tropospheric delay", a.Corrections.Troposphere, a.Resolved.TroposphereFiles)

	coarse, err := a.estimateBaseline(grid)
	if err != nil {
		monitoring.Warnf("failed to compute perpendicular baseline for %s/%s: %v",
			refStart.Format(acquisition.DateFormat), secStart.Format(acquisition.DateFormat), err)
		coarse = raster.New(raster.Grid{
			Rows: baseline.CoarseRows, Cols: baseline.CoarseCols,
			Geotransform: grid.Geotransform, EPSG: grid.EPSG,
		}, "meters")
	}
	upsampled, err := baseline.Upsample(coarse, grid)
	if err != nil {
		monitoring.Warnf("failed to interpolate perpendicular baseline: %v", err)
		upsampled = raster.New(grid, "meters")
	}
	out.Baseline = upsampled

	if sources.LOSEast != "" && sources.LOSNorth != "" {
		tide, err := a.computeTide(grid, sources)
		if err != nil {
			monitoring.Warnf("failed to compute solid earth tide: %v", err)
		} else {
			out.SolidEarth = tide
		}
	} else {
		monitoring.Logf("no line-of-sight inputs, omitting solid earth tide correction")
	}

	return out
}

// suppliedCorrection validates a caller-supplied correction raster against
// the product grid. A shape mismatch degrades to the group default rather
// than failing the product.
func (a *Assembler) suppliedCorrection(grid raster.Grid, name string, supplied *raster.Raster, ancillary []string) *raster.Raster {
	if supplied == nil {
		if len(ancillary) > 0 {
			monitoring.Warnf("%d %s files configured but no correction supplied, using the group default", len(ancillary), name)
		}
		return nil
	}
	if err := raster.CheckSameGrid(grid, supplied); err != nil {
		monitoring.Warnf("supplied %s correction rejected: %v, using the group default", name, err)
		return nil
	}
	// The group writer quantizes in place; keep the caller's raster intact.
	return supplied.Clone()
}

func (a *Assembler) estimateBaseline(grid raster.Grid) (*raster.Raster, error) {
	model := a.Baseline
	if model == nil {
		return nil, fmt.Errorf("no baseline model configured")
	}
	return model.Estimate(grid)
}

func (a *Assembler) computeTide(grid raster.Grid, sources Sources) (*raster.Raster, error) {
	model := a.Tides
	if model == nil {
		model = tides.ZeroModel{}
	}
	east, north, up, err := model.Displacement(grid)
	if err != nil {
		return nil, err
	}
	losEast, err := raster.Load(sources.LOSEast)
	if err != nil {
		return nil, err
	}
	losNorth, err := raster.Load(sources.LOSNorth)
	if err != nil {
		return nil, err
	}
	return tides.ProjectToLOS(east, north, up, losEast, losNorth)
}

func (a *Assembler) computeFootprint(disp *raster.Raster) string {
	if a.Footprint == nil {
		return ""
	}
	wkt, err := a.Footprint(disp)
	if err != nil {
		monitoring.Warnf("failed to extract raster footprint: %v", err)
		return ""
	}
	return wkt
}

// epochWindow derives the acquisition start/end times of one epoch from its
// granules. Burst ids are numbered in increasing order of acquisition time,
// so ordering by file name orders by time within the frame. Both endpoints
// are sensing start times; file names do not carry the last burst's sensing
// end, so the window end is the start of the latest burst.
func epochWindow(files []string) (start, end time.Time, err error) {
	sorted := append([]string(nil), files...)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})
	first, last := sorted[0], sorted[len(sorted)-1]

	start, err = acquisition.AcquisitionDate(first)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = acquisition.AcquisitionDate(last)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// loadOrFill reads a diagnostic source raster, substituting a fill raster on
// the product grid when the file is missing or unreadable.
func loadOrFill(path string, grid raster.Grid, info LayerInfo) *raster.Raster {
	if path == "" {
		monitoring.Warnf("%v: no %s source configured, substituting fill", ErrMissingSource, info.Name)
		return raster.NewFill(grid, info.FillValue, info.Units)
	}
	r, err := raster.Load(path)
	if err != nil {
		monitoring.Warnf("%v: %s (%s): %v, substituting fill", ErrMissingSource, info.Name, path, err)
		return raster.NewFill(grid, info.FillValue, info.Units)
	}
	return r
}

func layerByName(name string) LayerInfo {
	for _, info := range Layers() {
		if info.Name == name {
			return info
		}
	}
	return LayerInfo{Name: name}
}

// meanValid averages the finite values of a layer.
func meanValid(data []float32) float64 {
	vals := make([]float64, 0, len(data))
	for _, v := range data {
		f := float64(v)
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// stripNonASCII removes every byte above 0x7f, matching the provenance-text
// policy of the metadata group.
func stripNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
