// Package compressed produces the standalone compressed-acquisition output
// products. Each task pairs one phase-linking compressed raster with the
// original granule it was derived from, compacts the complex data, derives
// the amplitude-dispersion layer and writes a self-describing output
// directory. Tasks are stateless and isolated; they run on a bounded worker
// pool.
package compressed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/meridian-eo/disp/internal/acquisition"
	"github.com/meridian-eo/disp/internal/fsutil"
	"github.com/meridian-eo/disp/internal/monitoring"
	"github.com/meridian-eo/disp/internal/raster"
)

// keepBits is the mantissa budget for both the complex data and the
// amplitude dispersion.
const keepBits = 10

// AmpDispersionSuffix names the companion amplitude-dispersion raster next to
// a compressed source file.
const AmpDispersionSuffix = ".ampdisp"

// TaskFailure records one failed task. Failures are isolated; they never
// abort sibling tasks.
type TaskFailure struct {
	BurstID string
	Source  string
	Err     error
}

func (f TaskFailure) Error() string {
	return fmt.Sprintf("burst %s: %s: %v", f.BurstID, f.Source, f.Err)
}

// task is one resolved (burst, compressed source, matched granule) triple.
type task struct {
	burstID    string
	source     string
	matched    string
	outputPath string
}

// ProduceAll creates every compressed-acquisition product. groups maps burst
// ids to their compressed source files; inventory is the full granule list
// used to resolve provenance. maxWorkers bounds the pool; values <= 1 run
// strictly sequentially with identical outputs.
func ProduceAll(groups map[string][]string, inventory []string, outputDir string, maxWorkers int) ([]string, []TaskFailure) {
	var tasks []task
	var failures []TaskFailure

	burstIDs := make([]string, 0, len(groups))
	for id := range groups {
		burstIDs = append(burstIDs, id)
	}
	sort.Strings(burstIDs)

	for _, burstID := range burstIDs {
		for _, src := range groups[burstID] {
			tk, err := resolveTask(burstID, src, inventory, outputDir)
			if err != nil {
				failures = append(failures, TaskFailure{BurstID: burstID, Source: src, Err: err})
				continue
			}
			tasks = append(tasks, tk)
		}
	}

	results := runTasks(tasks, maxWorkers)
	var outputs []string
	for i, err := range results {
		if err != nil {
			failures = append(failures, TaskFailure{BurstID: tasks[i].burstID, Source: tasks[i].source, Err: err})
			continue
		}
		outputs = append(outputs, tasks[i].outputPath)
	}
	sort.Strings(outputs)
	monitoring.Logf("finished %d compressed products, %d failures", len(outputs), len(failures))
	return outputs, failures
}

// resolveTask finds the single granule matching a compressed source: filter
// the inventory by the source's reference date, then by burst id, taking the
// last match when several qualify.
func resolveTask(burstID, src string, inventory []string, outputDir string) (task, error) {
	dates, err := acquisition.Dates(src)
	if err != nil {
		return task{}, err
	}
	byDate := acquisition.FilterByDate(inventory, dates[:1])
	matches := acquisition.FilterByBurstID(byDate, burstID)
	monitoring.Logf("found %d matching granules for %s %s", len(matches), burstID, dates[0].Format(acquisition.DateFormat))
	if len(matches) == 0 {
		return task{}, fmt.Errorf("no granule matches reference date %s", dates[0].Format(acquisition.DateFormat))
	}

	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(acquisition.DateFormat)
	}
	name := fmt.Sprintf("compressed_%s_%s", burstID, strings.Join(parts, "_"))

	return task{
		burstID:    burstID,
		source:     src,
		matched:    matches[len(matches)-1],
		outputPath: filepath.Join(outputDir, name),
	}, nil
}

// runTasks executes the tasks and returns one error slot per task, in task
// order. A single worker degenerates to a plain loop.
func runTasks(tasks []task, maxWorkers int) []error {
	results := make([]error, len(tasks))
	if maxWorkers <= 1 {
		for i, tk := range tasks {
			results[i] = produce(tk)
		}
		return results
	}

	if maxWorkers > len(tasks) {
		maxWorkers = len(tasks)
	}
	indexes := make(chan int, len(tasks))
	for i := range tasks {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = produce(tasks[i])
			}
		}()
	}
	wg.Wait()
	return results
}

// provenance is the fixed field set copied from the matched granule.
type provenance struct {
	BurstID             string `json:"burst_id"`
	SourceGranule       string `json:"source_granule"`
	Sensor              string `json:"sensor,omitempty"`
	AcquisitionDatetime string `json:"acquisition_datetime"`
	Polarization        string `json:"polarization"`
	Units               string `json:"units"`
}

// produce writes one compressed product directory: the compacted complex
// raster, the amplitude dispersion and the provenance document.
func produce(tk task) error {
	if fsutil.Exists(tk.outputPath) {
		monitoring.Logf("skipping existing %s", tk.outputPath)
		return nil
	}

	slc, err := raster.LoadComplex(tk.source)
	if err != nil {
		return fmt.Errorf("failed to load compressed source: %w", err)
	}
	raster.RoundMantissaComplex(slc.Data, keepBits)

	ampDisp, err := raster.Load(tk.source + AmpDispersionSuffix)
	if err != nil {
		return fmt.Errorf("failed to load amplitude dispersion: %w", err)
	}
	raster.RoundMantissa(ampDisp.Data, keepBits)

	g, err := acquisition.ParseGranule(tk.matched)
	if err != nil {
		return err
	}
	prov := provenance{
		BurstID:             tk.burstID,
		SourceGranule:       acquisition.Stem(tk.matched),
		Sensor:              g.Sensor,
		AcquisitionDatetime: g.Dates[0].Format(acquisition.DatetimeFormat),
		Polarization:        "VV",
		Units:               "unitless",
	}

	if err := os.MkdirAll(tk.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := slc.Write(filepath.Join(tk.outputPath, "compressed_slc")); err != nil {
		return err
	}
	if err := ampDisp.Write(filepath.Join(tk.outputPath, "amplitude_dispersion")); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(prov, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(tk.outputPath, "provenance.json"), raw, 0o644); err != nil {
		return err
	}
	monitoring.Logf("wrote %s", tk.outputPath)
	return nil
}
