// Package hdataset is the boundary to the hierarchical scientific dataset
// format the displacement product ships in.
//
// The in-memory model is a tree of groups holding attributed datasets. Save
// serialises the tree into a plain directory layout (attribute documents plus
// gzip-framed raster payloads) so the pipeline and its tests are independent
// of the production format library; the chunked/compressed storage codec of
// the shipping format is deliberately not defined here.
package hdataset

import (
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/meridian-eo/disp/internal/raster"
)

// Attrs are dataset or group attributes. Values must be JSON-encodable.
type Attrs map[string]interface{}

// Dataset is one named leaf: either a scalar (string, float, int) or a
// raster payload.
type Dataset struct {
	Name   string
	Attrs  Attrs
	Scalar interface{}    // set for scalar datasets
	Raster *raster.Raster // set for raster datasets
}

// Group is a named collection of datasets and subgroups. Insertion order is
// preserved; the product layer relies on it for its layer ordering.
type Group struct {
	Name     string
	Attrs    Attrs
	Datasets []*Dataset
	Groups   []*Group
}

// File is the root of one artifact.
type File struct {
	Attrs Attrs
	root  Group
}

// NewFile creates an empty artifact with the given root attributes.
func NewFile(attrs Attrs) *File {
	if attrs == nil {
		attrs = Attrs{}
	}
	return &File{Attrs: attrs}
}

// Root returns the root group.
func (f *File) Root() *Group { return &f.root }

// CreateGroup adds (or returns an existing) named subgroup.
func (g *Group) CreateGroup(name string) *Group {
	for _, sub := range g.Groups {
		if sub.Name == name {
			return sub
		}
	}
	sub := &Group{Name: name, Attrs: Attrs{}}
	g.Groups = append(g.Groups, sub)
	return sub
}

// Lookup returns the named subgroup, or nil.
func (g *Group) Lookup(name string) *Group {
	for _, sub := range g.Groups {
		if sub.Name == name {
			return sub
		}
	}
	return nil
}

// Dataset returns the named dataset in this group, or nil.
func (g *Group) Dataset(name string) *Dataset {
	for _, d := range g.Datasets {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// CreateScalar adds a scalar dataset, replacing any previous one of the same
// name.
func (g *Group) CreateScalar(name string, value interface{}, attrs Attrs) *Dataset {
	d := &Dataset{Name: name, Scalar: value, Attrs: cloneAttrs(attrs)}
	g.replace(d)
	return d
}

// CreateRaster adds a raster dataset, replacing any previous one of the same
// name.
func (g *Group) CreateRaster(name string, r *raster.Raster, attrs Attrs) *Dataset {
	d := &Dataset{Name: name, Raster: r, Attrs: cloneAttrs(attrs)}
	g.replace(d)
	return d
}

func (g *Group) replace(d *Dataset) {
	for i, existing := range g.Datasets {
		if existing.Name == d.Name {
			g.Datasets[i] = d
			return
		}
	}
	g.Datasets = append(g.Datasets, d)
}

func cloneAttrs(attrs Attrs) Attrs {
	out := Attrs{}
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// datasetHeader is the serialised form of a dataset's metadata.
type datasetHeader struct {
	Attrs  Attrs        `json:"attrs"`
	Scalar interface{}  `json:"scalar,omitempty"`
	Grid   *raster.Grid `json:"grid,omitempty"`
	Units  string       `json:"units,omitempty"`
}

// Save writes the artifact under dir. The write is single-pass and not
// transactional: a crash mid-write leaves a partial artifact. Callers needing
// integrity stage into a temporary location and rename (see fsutil).
func (f *File) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	if err := writeJSON(filepath.Join(dir, "attrs.json"), f.Attrs); err != nil {
		return err
	}
	return saveGroup(dir, &f.root)
}

func saveGroup(dir string, g *Group) error {
	for _, d := range g.Datasets {
		if err := saveDataset(dir, d); err != nil {
			return err
		}
	}
	for _, sub := range g.Groups {
		subdir := filepath.Join(dir, sub.Name)
		if err := os.MkdirAll(subdir, 0o755); err != nil {
			return fmt.Errorf("failed to create group directory %s: %w", subdir, err)
		}
		if len(sub.Attrs) > 0 {
			if err := writeJSON(filepath.Join(subdir, "attrs.json"), sub.Attrs); err != nil {
				return err
			}
		}
		if err := saveGroup(subdir, sub); err != nil {
			return err
		}
	}
	return nil
}

func saveDataset(dir string, d *Dataset) error {
	hdr := datasetHeader{Attrs: d.Attrs, Scalar: d.Scalar}
	if d.Raster != nil {
		grid := d.Raster.Grid
		hdr.Grid = &grid
		hdr.Units = d.Raster.Units
	}
	if err := writeJSON(filepath.Join(dir, d.Name+".json"), hdr); err != nil {
		return err
	}
	if d.Raster == nil {
		return nil
	}

	path := filepath.Join(dir, d.Name+".f32.gz")
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset payload %s: %w", path, err)
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	buf := make([]byte, 4*len(d.Raster.Data))
	for i, v := range d.Raster.Data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if _, err := zw.Write(buf); err != nil {
		return fmt.Errorf("failed to write dataset payload %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish dataset payload %s: %w", path, err)
	}
	return out.Close()
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
