package acquisition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame_to_burst.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadRegistryBare(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `{
		"831": {
			"epsg": 32611,
			"bbox": {"west": 500160.0, "south": 3647820.0, "east": 788340.0, "north": 3854880.0},
			"burst_ids": ["t042_088906_iw1", "t042_088905_iw1"]
		}
	}`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	ids, err := reg.BurstIDsForFrame(831)
	require.NoError(t, err)
	assert.Equal(t, []string{"t042_088905_iw1", "t042_088906_iw1"}, ids)

	bounds, epsg, err := reg.FrameBounds(831)
	require.NoError(t, err)
	assert.Equal(t, 32611, epsg)
	assert.Equal(t, 500160.0, bounds.West)
	assert.Equal(t, 3854880.0, bounds.North)
}

func TestLoadRegistryDataWrapper(t *testing.T) {
	t.Parallel()

	path := writeRegistry(t, `{"data": {"11114": {"epsg": 32610, "bbox": {}, "burst_ids": ["t093_197858_iw3"]}}}`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	ids, err := reg.BurstIDsForFrame(11114)
	require.NoError(t, err)
	assert.Equal(t, []string{"t093_197858_iw3"}, ids)
}

func TestRegistryUnknownFrame(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(map[string]FrameEntry{"1": {}})

	_, err := reg.BurstIDsForFrame(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 2")

	_, _, err = reg.FrameBounds(2)
	assert.Error(t, err)
}

func TestLoadRegistryRejectsNonJSON(t *testing.T) {
	t.Parallel()

	_, err := LoadRegistry("registry.yaml")
	assert.Error(t, err)
}
