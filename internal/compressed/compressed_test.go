package compressed

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-eo/disp/internal/raster"
)

var srcGrid = raster.Grid{
	Rows:         4,
	Cols:         6,
	Geotransform: [6]float64{500000, 30, 0, 4000000, 0, -30},
	EPSG:         32611,
}

// writeSource writes one compressed phase-linking source: the complex raster
// plus its amplitude-dispersion companion.
func writeSource(t *testing.T, dir, burstID, dateStr string) string {
	t.Helper()
	path := filepath.Join(dir, "compressed_"+burstID+"_"+dateStr)

	slc := &raster.ComplexRaster{Grid: srcGrid, Units: "unitless", Data: make([]complex64, srcGrid.Rows*srcGrid.Cols)}
	for i := range slc.Data {
		slc.Data[i] = complex(float32(i)*0.125, -float32(i)*0.0625)
	}
	require.NoError(t, slc.Write(path))

	amp := raster.NewFill(srcGrid, 0.3, "unitless")
	require.NoError(t, amp.Write(path+AmpDispersionSuffix))
	return path
}

func granule(burst, date string) string {
	return "OPERA_L2_CSLC-S1_" + burst + "_" + date + "T140221Z_20230101T080201Z_S1A_VV_v1.0.h5"
}

func TestProduceAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	src := writeSource(t, dir, "t042_088905_iw1", "20221119_20221119_20230106")
	inventory := []string{granule("T042-088905-IW1", "20221119")}

	outputs, failures := ProduceAll(
		map[string][]string{"t042_088905_iw1": {src}},
		inventory, outDir, 1)
	require.Empty(t, failures)
	require.Len(t, outputs, 1)
	assert.Equal(t, filepath.Join(outDir, "compressed_t042_088905_iw1_20221119_20221119_20230106"), outputs[0])

	slc, err := raster.LoadComplex(filepath.Join(outputs[0], "compressed_slc"))
	require.NoError(t, err)
	assert.Len(t, slc.Data, srcGrid.Rows*srcGrid.Cols)

	raw, err := os.ReadFile(filepath.Join(outputs[0], "provenance.json"))
	require.NoError(t, err)
	var prov map[string]string
	require.NoError(t, json.Unmarshal(raw, &prov))
	assert.Equal(t, "t042_088905_iw1", prov["burst_id"])
	assert.Equal(t, "S1A", prov["sensor"])
	assert.Contains(t, prov["source_granule"], "20221119T140221Z")
}

func TestProduceAllLastMatchWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeSource(t, dir, "t042_088905_iw1", "20221119_20221119_20230106")
	first := "OPERA_L2_CSLC-S1_T042-088905-IW1_20221119T140221Z_20221121T080201Z_S1A_VV_v1.0.h5"
	second := "OPERA_L2_CSLC-S1_T042-088905-IW1_20221119T140221Z_20230301T080201Z_S1A_VV_v1.1.h5"

	outputs, failures := ProduceAll(
		map[string][]string{"t042_088905_iw1": {src}},
		[]string{first, second}, filepath.Join(dir, "out"), 1)
	require.Empty(t, failures)
	require.Len(t, outputs, 1)

	raw, err := os.ReadFile(filepath.Join(outputs[0], "provenance.json"))
	require.NoError(t, err)
	var prov map[string]string
	require.NoError(t, json.Unmarshal(raw, &prov))
	assert.Contains(t, prov["source_granule"], "v1.1")
}

func TestProduceAllParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var groups = map[string][]string{}
	var inventory []string
	bursts := []string{"t042_088905_iw1", "t042_088906_iw1", "t042_088907_iw2"}
	for _, b := range bursts {
		groups[b] = []string{writeSource(t, dir, b, "20221119_20221119_20230106")}
		dashed := "T" + b[1:4] + "-" + b[5:11] + "-" + map[string]string{
			"t042_088905_iw1": "IW1", "t042_088906_iw1": "IW1", "t042_088907_iw2": "IW2",
		}[b]
		inventory = append(inventory, granule(dashed, "20221119"))
	}

	seqDir := filepath.Join(dir, "seq")
	parDir := filepath.Join(dir, "par")
	seqOut, seqFail := ProduceAll(groups, inventory, seqDir, 1)
	parOut, parFail := ProduceAll(groups, inventory, parDir, 4)
	require.Empty(t, seqFail)
	require.Empty(t, parFail)
	require.Len(t, seqOut, 3)
	require.Len(t, parOut, 3)

	for i := range seqOut {
		assert.Equal(t, filepath.Base(seqOut[i]), filepath.Base(parOut[i]))
		for _, name := range []string{"compressed_slc", "amplitude_dispersion", "provenance.json"} {
			seqBytes, err := os.ReadFile(filepath.Join(seqOut[i], name))
			require.NoError(t, err)
			parBytes, err := os.ReadFile(filepath.Join(parOut[i], name))
			require.NoError(t, err)
			assert.Equal(t, seqBytes, parBytes, "%s/%s", filepath.Base(seqOut[i]), name)
		}
	}
}

func TestProduceAllIsolatesFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeSource(t, dir, "t042_088905_iw1", "20221119_20221119_20230106")
	bad := writeSource(t, dir, "t042_088906_iw1", "20221119_20221119_20230106")
	require.NoError(t, os.Remove(bad+AmpDispersionSuffix))
	require.NoError(t, os.Remove(bad+AmpDispersionSuffix+".hdr.json"))

	groups := map[string][]string{
		"t042_088905_iw1": {good},
		"t042_088906_iw1": {bad},
	}
	inventory := []string{
		granule("T042-088905-IW1", "20221119"),
		granule("T042-088906-IW1", "20221119"),
	}

	outputs, failures := ProduceAll(groups, inventory, filepath.Join(dir, "out"), 2)
	require.Len(t, outputs, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, "t042_088906_iw1", failures[0].BurstID)
	assert.Error(t, failures[0].Err)
}

func TestProduceAllNoMatchingGranule(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeSource(t, dir, "t042_088905_iw1", "20221119_20221119_20230106")

	outputs, failures := ProduceAll(
		map[string][]string{"t042_088905_iw1": {src}},
		[]string{granule("T042-088905-IW1", "20230106")},
		filepath.Join(dir, "out"), 1)
	assert.Empty(t, outputs)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "no granule matches")
}
