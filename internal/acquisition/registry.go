package acquisition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// BoundingBox is a frame's geographic extent as (west, south, east, north)
// in the coordinates of EPSG.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// FrameEntry is one frame's record in the frame-to-burst registry.
type FrameEntry struct {
	EPSG     int         `json:"epsg"`
	Bounds   BoundingBox `json:"bbox"`
	BurstIDs []string    `json:"burst_ids"`
}

// Registry maps frame ids to their authoritative burst sets and bounding
// boxes. The registry document is versioned and distributed alongside the
// processing configuration.
type Registry struct {
	frames map[string]FrameEntry
}

// registryDocument accepts both a bare mapping and a {"data": {...}} wrapper,
// matching the two layouts the registry has shipped in.
type registryDocument struct {
	Data map[string]FrameEntry `json:"data"`
}

// LoadRegistry reads a frame-to-burst registry from a JSON document.
func LoadRegistry(path string) (*Registry, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("frame-to-burst registry must have .json extension, got %q", ext)
	}
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame-to-burst registry: %w", err)
	}

	var doc registryDocument
	if err := json.Unmarshal(raw, &doc); err == nil && len(doc.Data) > 0 {
		return &Registry{frames: doc.Data}, nil
	}

	var bare map[string]FrameEntry
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("failed to parse frame-to-burst registry %s: %w", cleanPath, err)
	}
	return &Registry{frames: bare}, nil
}

// NewRegistry builds a registry from an in-memory mapping. Used by tests and
// staging tools.
func NewRegistry(frames map[string]FrameEntry) *Registry {
	return &Registry{frames: frames}
}

// frameKey renders the lookup key for a numeric frame id.
func frameKey(frameID int) string {
	return fmt.Sprintf("%d", frameID)
}

// BurstIDsForFrame returns the sorted authoritative burst id set registered
// for the frame.
func (r *Registry) BurstIDsForFrame(frameID int) ([]string, error) {
	entry, ok := r.frames[frameKey(frameID)]
	if !ok {
		return nil, fmt.Errorf("frame %d not present in frame-to-burst registry", frameID)
	}
	ids := append([]string(nil), entry.BurstIDs...)
	sort.Strings(ids)
	return ids, nil
}

// FrameBounds returns the registered bounding box and its EPSG code for the
// frame.
func (r *Registry) FrameBounds(frameID int) (BoundingBox, int, error) {
	entry, ok := r.frames[frameKey(frameID)]
	if !ok {
		return BoundingBox{}, 0, fmt.Errorf("frame %d not present in frame-to-burst registry", frameID)
	}
	return entry.Bounds, entry.EPSG, nil
}
