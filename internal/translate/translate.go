// Package translate turns a PGE-style run configuration into the resolved
// processing configuration the workflow consumes. Translation sorts the input
// stack, applies frame-keyed parameter overrides, checks the inputs against
// the frame-to-burst registry, resolves the output reference selection and
// pins the policy knobs the product pipeline requires.
package translate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/meridian-eo/disp/internal/acquisition"
	"github.com/meridian-eo/disp/internal/config"
	"github.com/meridian-eo/disp/internal/monitoring"
	"github.com/meridian-eo/disp/internal/reference"
)

// FrameMismatchError reports input granules whose burst ids are not
// registered for the run's frame.
type FrameMismatchError struct {
	FrameID    int
	Unexpected []string
}

func (e *FrameMismatchError) Error() string {
	return fmt.Sprintf("frame %d: input burst ids not in frame-to-burst registry: %s",
		e.FrameID, strings.Join(e.Unexpected, ", "))
}

// ResolvedConfig is the translator output: everything the workflow stages
// need, with no further file loading or policy decisions required.
type ResolvedConfig struct {
	FrameID int

	// CslcFileList is the input stack sorted by acquisition date.
	CslcFileList []string

	// Parameters is the merged, re-validated algorithm parameter record
	// with the translator-injected fields populated.
	Parameters *config.AlgorithmParameters

	GeometryFiles    []string
	MaskFile         string
	DEMFile          string
	IonosphereFiles  []string
	TroposphereFiles []string

	// StaticAncillary keeps the registry and reference-date database paths
	// so a staging configuration can be reconstructed from the resolved run.
	StaticAncillary config.StaticAncillaryFileGroup

	ProductPath      string
	ScratchDirectory string
	OutputDirectory  string
	ProductVersion   string
	ProductType      string

	SaveCompressedSLC      bool
	StaticLayersDataAccess string

	MaxWorkers int
	LogFile    string
}

// Translate resolves a run configuration. The run configuration itself is not
// modified; errors leave no partial state behind.
func Translate(rc *config.RunConfig) (*ResolvedConfig, error) {
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	frameID := rc.InputFileGroup.FrameID

	files, err := acquisition.SortByDate(rc.InputFileGroup.CslcFileList)
	if err != nil {
		return nil, fmt.Errorf("failed to order input stack: %w", err)
	}

	params, err := config.LoadAlgorithmParameters(rc.DynamicAncillaryFileGroup.AlgorithmParametersFile)
	if err != nil {
		return nil, err
	}
	if params.OverridesPath != "" {
		overrides, err := config.LoadFrameOverrides(params.OverridesPath)
		if err != nil {
			return nil, err
		}
		frameParams, err := overrides.ForFrame(frameID)
		if err != nil {
			return nil, err
		}
		params = params.Merge(frameParams)
		params, err = params.Reinstantiate()
		if err != nil {
			return nil, err
		}
	}

	if path := rc.StaticAncillaryFileGroup.FrameToBurstFile; path != "" {
		registry, err := acquisition.LoadRegistry(path)
		if err != nil {
			return nil, err
		}
		if err := checkFrameBursts(registry, frameID, files); err != nil {
			return nil, err
		}
		bounds, epsg, err := registry.FrameBounds(frameID)
		if err != nil {
			return nil, err
		}
		params.OutputOptions.Bounds = []float64{bounds.West, bounds.South, bounds.East, bounds.North}
		params.OutputOptions.BoundsEPSG = epsg
	} else {
		// The registry is optional: without it the input stack is trusted
		// as-is and no frame bounds are injected.
		monitoring.Warnf("no frame-to-burst registry configured, skipping burst consistency check")
	}

	resolved, err := resolveReference(rc, files)
	if err != nil {
		return nil, err
	}
	params.PhaseLinking.OutputReferenceIdx = resolved.OutputReferenceIdx
	params.OutputOptions.ExtraReferenceDate = resolved.ExtraReferenceDate

	// Policy pins: the product layer builds its own overviews and browse
	// image, and the network inversion must use the robust estimator with
	// velocity fitting left to downstream consumers.
	off := false
	method := "L1"
	params.OutputOptions.AddOverviews = &off
	params.TimeseriesOptions.RunVelocity = &off
	params.TimeseriesOptions.Method = &method

	return &ResolvedConfig{
		FrameID:      frameID,
		CslcFileList: files,
		Parameters:   params,

		GeometryFiles:    rc.DynamicAncillaryFileGroup.GeometryFiles,
		MaskFile:         rc.DynamicAncillaryFileGroup.MaskFile,
		DEMFile:          rc.DynamicAncillaryFileGroup.DEMFile,
		IonosphereFiles:  rc.DynamicAncillaryFileGroup.IonosphereFiles,
		TroposphereFiles: rc.DynamicAncillaryFileGroup.TroposphereFiles,

		StaticAncillary: rc.StaticAncillaryFileGroup,

		ProductPath:      rc.ProductPathGroup.ProductPath,
		ScratchDirectory: rc.ProductPathGroup.GetScratchPath(),
		OutputDirectory:  rc.ProductPathGroup.GetOutputDirectory(),
		ProductVersion:   rc.ProductPathGroup.GetProductVersion(),
		ProductType:      rc.PrimaryExecutable.GetProductType(),

		SaveCompressedSLC:      rc.ProductPathGroup.SaveCompressedSLC,
		StaticLayersDataAccess: rc.ProductPathGroup.GetStaticLayersDataAccess(),

		MaxWorkers: rc.WorkerSettings.GetMaxWorkers(),
		LogFile:    rc.LogFile,
	}, nil
}

// FromResolved reconstructs the run configuration a resolved run corresponds
// to. algorithmParametersFile names the (typically merged) parameter document
// staged alongside the run; the returned configuration validates and
// re-translates to the same stack, so a run can be repeated from what it
// actually used.
func FromResolved(resolved *ResolvedConfig, algorithmParametersFile string) *config.RunConfig {
	workers := resolved.MaxWorkers
	return &config.RunConfig{
		InputFileGroup: config.InputFileGroup{
			CslcFileList: append([]string(nil), resolved.CslcFileList...),
			FrameID:      resolved.FrameID,
		},
		DynamicAncillaryFileGroup: config.DynamicAncillaryFileGroup{
			AlgorithmParametersFile: algorithmParametersFile,
			GeometryFiles:           append([]string(nil), resolved.GeometryFiles...),
			MaskFile:                resolved.MaskFile,
			DEMFile:                 resolved.DEMFile,
			IonosphereFiles:         append([]string(nil), resolved.IonosphereFiles...),
			TroposphereFiles:        append([]string(nil), resolved.TroposphereFiles...),
		},
		StaticAncillaryFileGroup: resolved.StaticAncillary,
		PrimaryExecutable: config.PrimaryExecutable{
			ProductType: resolved.ProductType,
		},
		ProductPathGroup: config.ProductPathGroup{
			ProductPath:            resolved.ProductPath,
			ScratchPath:            resolved.ScratchDirectory,
			OutputDirectory:        resolved.OutputDirectory,
			ProductVersion:         resolved.ProductVersion,
			SaveCompressedSLC:      resolved.SaveCompressedSLC,
			StaticLayersDataAccess: resolved.StaticLayersDataAccess,
		},
		WorkerSettings: config.WorkerSettings{MaxWorkers: &workers},
		LogFile:        resolved.LogFile,
	}
}

// checkFrameBursts verifies every input burst id is registered for the frame.
func checkFrameBursts(registry *acquisition.Registry, frameID int, files []string) error {
	expected, err := registry.BurstIDsForFrame(frameID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(expected))
	for _, id := range expected {
		known[id] = true
	}

	inputIDs, err := acquisition.BurstIDs(files)
	if err != nil {
		return err
	}
	var unexpected []string
	for _, id := range inputIDs {
		if !known[id] {
			unexpected = append(unexpected, id)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return &FrameMismatchError{FrameID: frameID, Unexpected: unexpected}
	}
	return nil
}

// resolveReference builds the timeline from one representative burst and
// applies the frame's requested changeover dates. All bursts share the same
// date set, so the lexicographically first burst stands in for the frame.
func resolveReference(rc *config.RunConfig, files []string) (reference.Resolved, error) {
	groups, err := acquisition.GroupByBurst(files)
	if err != nil {
		return reference.Resolved{}, err
	}
	burstIDs := make([]string, 0, len(groups))
	for id := range groups {
		burstIDs = append(burstIDs, id)
	}
	sort.Strings(burstIDs)

	timeline, err := reference.BuildTimeline(groups[burstIDs[0]])
	if err != nil {
		return reference.Resolved{}, err
	}

	var requested []time.Time
	if path := rc.StaticAncillaryFileGroup.ReferenceDateDatabase; path != "" {
		requested, err = reference.LoadRequestedDates(path, rc.InputFileGroup.FrameID)
		if err != nil {
			return reference.Resolved{}, err
		}
	} else {
		monitoring.Warnf("no reference date database configured, keeping first acquisition as reference")
	}

	resolved := reference.Resolve(timeline, requested)
	if resolved.OutputReferenceIdx > 0 {
		monitoring.Logf("frame %d: output reference moved to index %d (%s)",
			rc.InputFileGroup.FrameID, resolved.OutputReferenceIdx,
			timeline[resolved.OutputReferenceIdx].Date.Format(acquisition.DateFormat))
	}
	if resolved.ExtraReferenceDate != nil {
		monitoring.Logf("frame %d: extra reference date %s requested",
			rc.InputFileGroup.FrameID, resolved.ExtraReferenceDate.Format(acquisition.DateFormat))
	}
	return resolved, nil
}
