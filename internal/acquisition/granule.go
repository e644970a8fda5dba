// Package acquisition parses and organises CSLC granule inventories.
//
// A granule filename carries the burst identifier, the acquisition date and
// the generation date, e.g.
//
//	OPERA_L2_CSLC-S1_T042-088905-IW1_20221119T140221Z_20221121T080201Z_S1A_VV_v1.0.h5
//
// Compressed granules are recognised by a "compressed" prefix anywhere in the
// file stem, case-insensitive, and carry their reference date first:
//
//	compressed_t042_088905_iw1_20221119_20221119_20230106.h5
package acquisition

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DateFormat is the compact calendar-date form embedded in granule names.
const DateFormat = "20060102"

// DatetimeFormat is the timestamped form used by full CSLC granule names.
const DatetimeFormat = "20060102T150405Z"

var (
	// Burst IDs appear either dashed-uppercase (T042-088905-IW1) in CSLC
	// granule names or underscored-lowercase (t042_088905_iw1) in derived
	// products. Both normalise to the underscored-lowercase form.
	burstIDRe = regexp.MustCompile(`(?i)t(\d{3})[-_](\d{6})[-_](iw[1-3])`)

	datetimeRe = regexp.MustCompile(`(\d{8})T(\d{6})Z?`)
	digitRunRe = regexp.MustCompile(`\d+`)

	sensorRe = regexp.MustCompile(`_(S1[A-D])_`)
)

// Granule is the parsed identity of one acquisition file.
type Granule struct {
	Path       string
	BurstID    string
	Sensor     string
	Compressed bool
	// Dates holds every date parsed from the filename in order of
	// appearance. Dates[0] is the acquisition date (the reference date for
	// compressed granules); the following entry, when present, is the
	// generation/processing date.
	Dates []time.Time
}

// ParseGranule extracts burst id, sensor, dates and the compressed flag from
// a granule path.
func ParseGranule(path string) (Granule, error) {
	stem := Stem(path)

	burst := burstIDRe.FindStringSubmatch(stem)
	if burst == nil {
		return Granule{}, fmt.Errorf("no burst id found in granule name %q", stem)
	}
	dates, err := Dates(path)
	if err != nil {
		return Granule{}, err
	}

	g := Granule{
		Path:       path,
		BurstID:    strings.ToLower(fmt.Sprintf("t%s_%s_%s", burst[1], burst[2], burst[3])),
		Compressed: IsCompressed(path),
		Dates:      dates,
	}
	if m := sensorRe.FindStringSubmatch(stem); m != nil {
		g.Sensor = m[1]
	}
	return g, nil
}

// Stem returns the filename without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsCompressed reports whether the granule is a compressed (multi-epoch)
// product rather than a single acquisition.
func IsCompressed(path string) bool {
	return strings.Contains(strings.ToLower(Stem(path)), "compressed")
}

// BurstID returns the normalised burst id embedded in the granule name.
func BurstID(path string) (string, error) {
	m := burstIDRe.FindStringSubmatch(Stem(path))
	if m == nil {
		return "", fmt.Errorf("no burst id found in granule name %q", Stem(path))
	}
	return strings.ToLower(fmt.Sprintf("t%s_%s_%s", m[1], m[2], m[3])), nil
}

// Dates parses every date or datetime embedded in the granule name, in order
// of appearance. At least one date must be present.
func Dates(path string) ([]time.Time, error) {
	stem := Stem(path)

	type hit struct {
		pos int
		t   time.Time
	}
	var hits []hit

	for _, loc := range datetimeRe.FindAllStringSubmatchIndex(stem, -1) {
		s := stem[loc[0]:loc[1]]
		if !strings.HasSuffix(s, "Z") {
			s += "Z"
		}
		t, err := time.Parse(DatetimeFormat, s)
		if err != nil {
			continue
		}
		hits = append(hits, hit{pos: loc[0], t: t})
	}

	// Bare dates are standalone 8-digit runs, skipping spans already
	// consumed as datetimes.
	consumed := datetimeRe.FindAllStringIndex(stem, -1)
	for _, loc := range digitRunRe.FindAllStringIndex(stem, -1) {
		start, end := loc[0], loc[1]
		if end-start != 8 {
			continue
		}
		overlaps := false
		for _, c := range consumed {
			if start < c[1] && end > c[0] {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		t, err := time.Parse(DateFormat, stem[start:end])
		if err != nil {
			continue
		}
		hits = append(hits, hit{pos: start, t: t})
	}

	if len(hits) == 0 {
		return nil, fmt.Errorf("no dates found in granule name %q", stem)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]time.Time, len(hits))
	for i, h := range hits {
		out[i] = h.t
	}
	return out, nil
}

// AcquisitionDate returns the first date embedded in the granule name, which
// is the acquisition date for regular granules and the reference date for
// compressed granules.
func AcquisitionDate(path string) (time.Time, error) {
	dates, err := Dates(path)
	if err != nil {
		return time.Time{}, err
	}
	return dates[0], nil
}

// SortByDate returns the paths ordered ascending by acquisition date. Input
// order from callers is untrusted; ties keep their relative input order.
func SortByDate(paths []string) ([]string, error) {
	type keyed struct {
		path string
		date time.Time
	}
	ks := make([]keyed, 0, len(paths))
	for _, p := range paths {
		d, err := AcquisitionDate(p)
		if err != nil {
			return nil, err
		}
		ks = append(ks, keyed{path: p, date: d})
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].date.Before(ks[j].date) })
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = k.path
	}
	return out, nil
}

// GroupByBurst maps each burst id to its granules, preserving input order
// within each group.
func GroupByBurst(paths []string) (map[string][]string, error) {
	groups := make(map[string][]string)
	for _, p := range paths {
		id, err := BurstID(p)
		if err != nil {
			return nil, err
		}
		groups[id] = append(groups[id], p)
	}
	return groups, nil
}

// BurstIDs returns the sorted set of burst ids present in paths.
func BurstIDs(paths []string) ([]string, error) {
	groups, err := GroupByBurst(paths)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// FilterByDate keeps granules whose acquisition date matches any of the given
// dates (calendar-day comparison).
func FilterByDate(paths []string, dates []time.Time) []string {
	want := make(map[string]bool, len(dates))
	for _, d := range dates {
		want[d.Format(DateFormat)] = true
	}
	var out []string
	for _, p := range paths {
		d, err := AcquisitionDate(p)
		if err != nil {
			continue
		}
		if want[d.Format(DateFormat)] {
			out = append(out, p)
		}
	}
	return out
}

// FilterByBurstID keeps granules belonging to the given burst.
func FilterByBurstID(paths []string, burstID string) []string {
	var out []string
	for _, p := range paths {
		id, err := BurstID(p)
		if err != nil {
			continue
		}
		if id == burstID {
			out = append(out, p)
		}
	}
	return out
}

// Sensors returns the sorted set of satellite names parsed from the
// non-compressed granules.
func Sensors(paths []string) []string {
	seen := make(map[string]bool)
	for _, p := range paths {
		if IsCompressed(p) {
			continue
		}
		if m := sensorRe.FindStringSubmatch(Stem(p)); m != nil {
			seen[m[1]] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FormatDateRange renders the first/last date pair used in derived product
// names, e.g. "20221119_20230106".
func FormatDateRange(first, last time.Time) string {
	return first.Format(DateFormat) + "_" + last.Format(DateFormat)
}
