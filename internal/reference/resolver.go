// Package reference resolves which acquisition in a burst stack anchors the
// output displacement time series.
//
// A frame's reference-date database requests changeovers: calendar dates
// after which the phase reference should move. A changeover landing on a
// compressed acquisition moves the phase-linking anchor itself
// (OutputReferenceIdx); one landing on a regular acquisition instead asks the
// downstream network construction to insert an extra reference epoch
// (ExtraReferenceDate).
package reference

import (
	"fmt"
	"sort"
	"time"

	"github.com/meridian-eo/disp/internal/acquisition"
)

// Entry is one acquisition epoch in the timeline.
type Entry struct {
	Date       time.Time
	Compressed bool
}

// Timeline is the ordered acquisition epochs of one representative burst,
// ascending by date. All bursts in a frame share the same date set, so any
// burst's files suffice to build it.
type Timeline []Entry

// BuildTimeline derives a timeline from one burst's granule files. The files
// need not be pre-sorted.
func BuildTimeline(files []string) (Timeline, error) {
	sorted, err := acquisition.SortByDate(files)
	if err != nil {
		return nil, fmt.Errorf("failed to sort burst files: %w", err)
	}
	tl := make(Timeline, 0, len(sorted))
	for _, f := range sorted {
		d, err := acquisition.AcquisitionDate(f)
		if err != nil {
			return nil, err
		}
		tl = append(tl, Entry{Date: truncateToDay(d), Compressed: acquisition.IsCompressed(f)})
	}
	return tl, nil
}

// Resolved is the resolver output. OutputReferenceIdx defaults to 0, the
// first acquisition; ExtraReferenceDate is nil unless a regular-acquisition
// changeover applied.
type Resolved struct {
	OutputReferenceIdx int
	ExtraReferenceDate *time.Time
}

// Resolve computes the authoritative reference selection for a timeline given
// the requested changeover dates.
//
// Requested dates are de-duplicated and processed in ascending order; for
// each, the first timeline entry at or after the date is located. A request
// past the end of the stack or landing on index 0 is skipped. When several
// requests apply, the last one processed wins for the field it sets.
func Resolve(timeline Timeline, requested []time.Time) Resolved {
	out := Resolved{OutputReferenceIdx: 0, ExtraReferenceDate: nil}

	dates := dedupeSortedDays(requested)
	for _, refDate := range dates {
		idx := firstAtOrAfter(timeline, refDate)
		if idx < 0 {
			// All acquisitions precede the request; it addresses
			// nothing in this stack.
			continue
		}
		if idx == 0 {
			// Index 0 is always the default reference; only
			// mid-stack changeovers are meaningful.
			continue
		}
		if timeline[idx].Compressed {
			// A compressed acquisition becomes the new
			// phase-linking anchor. It is not an "extra" reference
			// date: compressed products already encode the change.
			out.OutputReferenceIdx = idx
		} else {
			d := timeline[idx].Date
			out.ExtraReferenceDate = &d
		}
	}
	return out
}

// firstAtOrAfter returns the first index whose date is >= the target, or -1.
// Timelines are small; a linear scan keeps the tie-break rules obvious.
func firstAtOrAfter(timeline Timeline, target time.Time) int {
	for i, e := range timeline {
		if !e.Date.Before(target) {
			return i
		}
	}
	return -1
}

func dedupeSortedDays(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := truncateToDay(d)
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
