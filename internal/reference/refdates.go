package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LoadRequestedDates reads the reference-date database and returns the
// requested changeover dates for one frame. A frame with no entry yields an
// empty list, which resolves to the default reference.
func LoadRequestedDates(path string, frameID int) ([]time.Time, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("reference date database must have .json extension, got %q", ext)
	}
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference date database: %w", err)
	}

	var doc map[string][]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse reference date database %s: %w", cleanPath, err)
	}

	strs := doc[fmt.Sprintf("%d", frameID)]
	dates := make([]time.Time, 0, len(strs))
	for _, s := range strs {
		t, err := parseISODate(s)
		if err != nil {
			return nil, fmt.Errorf("bad reference date %q for frame %d: %w", s, frameID, err)
		}
		dates = append(dates, t)
	}
	return dates, nil
}

// parseISODate accepts both bare dates and full ISO-8601 timestamps, matching
// the entries the database has shipped with.
func parseISODate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised ISO-8601 date %q", s)
}
