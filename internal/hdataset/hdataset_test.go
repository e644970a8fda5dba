package hdataset

import (
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-eo/disp/internal/raster"
)

func TestGroupOrdering(t *testing.T) {
	t.Parallel()

	f := NewFile(nil)
	root := f.Root()
	root.CreateScalar("b", 1, nil)
	root.CreateScalar("a", 2, nil)
	root.CreateScalar("c", 3, nil)

	var names []string
	for _, d := range root.Datasets {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
}

func TestCreateGroupIdempotent(t *testing.T) {
	t.Parallel()

	f := NewFile(nil)
	g1 := f.Root().CreateGroup("corrections")
	g2 := f.Root().CreateGroup("corrections")
	assert.Same(t, g1, g2)
	assert.Len(t, f.Root().Groups, 1)
}

func TestReplaceDataset(t *testing.T) {
	t.Parallel()

	f := NewFile(nil)
	f.Root().CreateScalar("x", 1, nil)
	f.Root().CreateScalar("x", 2, nil)
	require.Len(t, f.Root().Datasets, 1)
	assert.Equal(t, 2, f.Root().Dataset("x").Scalar)
}

func TestSaveRoundtrip(t *testing.T) {
	t.Parallel()

	grid := raster.Grid{
		Rows:         2,
		Cols:         3,
		Geotransform: [6]float64{0, 30, 0, 100, 0, -30},
		EPSG:         32611,
	}
	r := raster.New(grid, "meters")
	for i := range r.Data {
		r.Data[i] = float32(i) * 0.5
	}

	f := NewFile(Attrs{"title": "displacement"})
	f.Root().CreateRaster("displacement", r, Attrs{"units": "meters"})
	sub := f.Root().CreateGroup("identification")
	sub.Attrs["note"] = "test"
	sub.CreateScalar("frame_id", 42, nil)

	dir := t.TempDir()
	require.NoError(t, f.Save(dir))

	var rootAttrs map[string]interface{}
	readJSON(t, filepath.Join(dir, "attrs.json"), &rootAttrs)
	assert.Equal(t, "displacement", rootAttrs["title"])

	var hdr struct {
		Attrs map[string]interface{} `json:"attrs"`
		Grid  *raster.Grid           `json:"grid"`
		Units string                 `json:"units"`
	}
	readJSON(t, filepath.Join(dir, "displacement.json"), &hdr)
	require.NotNil(t, hdr.Grid)
	assert.Equal(t, 2, hdr.Grid.Rows)
	assert.Equal(t, 3, hdr.Grid.Cols)
	assert.Equal(t, "meters", hdr.Units)

	in, err := os.Open(filepath.Join(dir, "displacement.f32.gz"))
	require.NoError(t, err)
	defer in.Close()
	zr, err := gzip.NewReader(in)
	require.NoError(t, err)
	payload := make([]byte, 4*len(r.Data))
	_, err = io.ReadFull(zr, payload)
	require.NoError(t, err)
	for i := range r.Data {
		got := math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		assert.Equal(t, r.Data[i], got)
	}

	var scalar struct {
		Scalar float64 `json:"scalar"`
	}
	readJSON(t, filepath.Join(dir, "identification", "frame_id.json"), &scalar)
	assert.Equal(t, float64(42), scalar.Scalar)
}

func readJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}
