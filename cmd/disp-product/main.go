// Command disp-product runs one displacement product job: translate the run
// configuration, assemble the layered product from the workflow's raster
// outputs, optionally produce the compressed-acquisition products and record
// everything in the local catalog.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meridian-eo/disp/internal/acquisition"
	"github.com/meridian-eo/disp/internal/catalog"
	"github.com/meridian-eo/disp/internal/compressed"
	"github.com/meridian-eo/disp/internal/config"
	"github.com/meridian-eo/disp/internal/monitoring"
	"github.com/meridian-eo/disp/internal/product"
	"github.com/meridian-eo/disp/internal/raster"
	"github.com/meridian-eo/disp/internal/reference"
	"github.com/meridian-eo/disp/internal/translate"
)

const softwareVersion = "1.2.0"

var (
	runconfigPath  = flag.String("runconfig", "", "Path to the run configuration JSON document")
	sourcesPath    = flag.String("sources", "", "Path to a JSON document naming the workflow raster outputs; assembly is skipped when omitted")
	outputPath     = flag.String("output", "", "Product output path (default: derived from the run configuration)")
	makeCompressed = flag.Bool("compressed", false, "Produce compressed-acquisition products even when the run configuration does not ask for them")
	catalogPath    = flag.String("catalog", "", "Path to the local product catalog database")
	workers        = flag.Int("workers", 0, "Override the configured worker count")
	debug          = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	monitoring.SetDebug(*debug)
	if *runconfigPath == "" {
		fmt.Fprintln(os.Stderr, "disp-product: -runconfig is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "disp-product: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rc, err := config.LoadRunConfig(*runconfigPath)
	if err != nil {
		return err
	}
	resolved, err := translate.Translate(rc)
	if err != nil {
		return err
	}
	monitoring.Logf("translated run configuration for frame %d: %d input granules",
		resolved.FrameID, len(resolved.CslcFileList))

	maxWorkers := resolved.MaxWorkers
	if *workers > 0 {
		maxWorkers = *workers
	}

	var store *catalog.Store
	if *catalogPath != "" {
		store, err = catalog.Open(*catalogPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if *sourcesPath != "" {
		if err := assemble(rc, resolved, store); err != nil {
			return err
		}
	}

	if *makeCompressed || resolved.SaveCompressedSLC {
		if err := produceCompressed(resolved, store, maxWorkers); err != nil {
			return err
		}
	}
	return nil
}

func assemble(rc *config.RunConfig, resolved *translate.ResolvedConfig, store *catalog.Store) error {
	raw, err := os.ReadFile(*sourcesPath)
	if err != nil {
		return fmt.Errorf("failed to read sources document: %w", err)
	}
	var doc struct {
		product.Sources
		IonosphericDelay  string
		TroposphericDelay string
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse sources document %s: %w", *sourcesPath, err)
	}
	var corrections product.Corrections
	if doc.IonosphericDelay != "" {
		corrections.Ionosphere, err = raster.Load(doc.IonosphericDelay)
		if err != nil {
			return fmt.Errorf("failed to load ionospheric delay: %w", err)
		}
	}
	if doc.TroposphericDelay != "" {
		corrections.Troposphere, err = raster.Load(doc.TroposphericDelay)
		if err != nil {
			return fmt.Errorf("failed to load tropospheric delay: %w", err)
		}
	}

	referenceFiles, secondaryFiles, err := splitEpochs(resolved)
	if err != nil {
		return err
	}

	runConfigText, err := os.ReadFile(*runconfigPath)
	if err != nil {
		return err
	}
	paramsText, err := os.ReadFile(rc.DynamicAncillaryFileGroup.AlgorithmParametersFile)
	if err != nil {
		return err
	}

	out := *outputPath
	if out == "" {
		out = filepath.Join(resolved.ProductPath, productName(resolved))
	}

	a := &product.Assembler{
		Resolved:        resolved,
		RunConfigText:   string(runConfigText),
		ParametersText:  string(paramsText),
		Corrections:     corrections,
		SoftwareVersion: softwareVersion,
	}
	manifest, err := a.Assemble(out, doc.Sources, referenceFiles, secondaryFiles)
	if err != nil {
		return err
	}
	monitoring.Logf("wrote product %s", manifest.OutputPath)

	if store != nil {
		id, err := store.RecordProduct(resolved.FrameID, manifest.OutputPath,
			manifest.ReferenceTime, manifest.SecondaryTime, resolved.ProductVersion)
		if err != nil {
			return err
		}
		monitoring.Logf("catalogued product %s", id)
	}
	return nil
}

// splitEpochs partitions the input stack into the reference epoch's granules
// and the final (secondary) epoch's granules.
func splitEpochs(resolved *translate.ResolvedConfig) (referenceFiles, secondaryFiles []string, err error) {
	groups, err := acquisition.GroupByBurst(resolved.CslcFileList)
	if err != nil {
		return nil, nil, err
	}
	ids, err := acquisition.BurstIDs(resolved.CslcFileList)
	if err != nil {
		return nil, nil, err
	}
	timeline, err := reference.BuildTimeline(groups[ids[0]])
	if err != nil {
		return nil, nil, err
	}
	refIdx := resolved.Parameters.PhaseLinking.OutputReferenceIdx
	refDate := timeline[refIdx].Date
	secDate := timeline[len(timeline)-1].Date

	referenceFiles = acquisition.FilterByDate(resolved.CslcFileList, []time.Time{refDate})
	secondaryFiles = acquisition.FilterByDate(resolved.CslcFileList, []time.Time{secDate})
	return referenceFiles, secondaryFiles, nil
}

func productName(resolved *translate.ResolvedConfig) string {
	return fmt.Sprintf("disp_frame_%05d_v%s", resolved.FrameID, resolved.ProductVersion)
}

func produceCompressed(resolved *translate.ResolvedConfig, store *catalog.Store, maxWorkers int) error {
	var compressedFiles []string
	for _, f := range resolved.CslcFileList {
		if acquisition.IsCompressed(f) {
			compressedFiles = append(compressedFiles, f)
		}
	}
	if len(compressedFiles) == 0 {
		monitoring.Logf("no compressed sources in the input stack, nothing to produce")
		return nil
	}
	groups, err := acquisition.GroupByBurst(compressedFiles)
	if err != nil {
		return err
	}

	outputs, failures := compressed.ProduceAll(groups, resolved.CslcFileList, resolved.OutputDirectory, maxWorkers)
	for _, f := range failures {
		monitoring.Warnf("compressed task failed: %v", f)
	}
	if store != nil {
		for _, out := range outputs {
			burstID, err := acquisition.BurstID(out)
			if err != nil {
				continue
			}
			if _, err := store.RecordCompressed(burstID, out); err != nil {
				return err
			}
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d compressed tasks failed", len(failures), len(failures)+len(outputs))
	}
	return nil
}
