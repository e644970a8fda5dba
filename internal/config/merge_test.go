package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestMergeOverrideWins(t *testing.T) {
	t.Parallel()

	base := &AlgorithmParameters{}
	base.PhaseLinking.HalfWindowX = intPtr(11)
	base.PhaseLinking.HalfWindowY = intPtr(5)

	ov := &AlgorithmParameters{}
	ov.PhaseLinking.HalfWindowX = intPtr(21)
	ov.SpatialWavelengthCutoff = floatPtr(40000)

	merged := base.Merge(ov)

	// Override wins for the fields it sets.
	assert.Equal(t, 21, merged.PhaseLinking.GetHalfWindowX())
	assert.Equal(t, 40000.0, merged.GetSpatialWavelengthCutoff())
	// Fields absent from the override are untouched.
	assert.Equal(t, 5, merged.PhaseLinking.GetHalfWindowY())
	// Base is not mutated.
	assert.Equal(t, 11, base.PhaseLinking.GetHalfWindowX())
}

func TestMergeIdempotent(t *testing.T) {
	t.Parallel()

	base := &AlgorithmParameters{}
	base.UnwrapOptions.UnwrapMethod = strPtr("phass")
	base.TimeseriesOptions.RunVelocity = boolPtr(true)

	ov := &AlgorithmParameters{}
	ov.UnwrapOptions.UnwrapMethod = strPtr("snaphu")
	ov.PhaseLinking.MiniStackSize = intPtr(20)

	once := base.Merge(ov)
	twice := once.Merge(ov)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("merge not idempotent (-once +twice):\n%s", diff)
	}
}

func TestMergeNilOverrideIsIdentity(t *testing.T) {
	t.Parallel()

	base := &AlgorithmParameters{}
	base.PhaseLinking.MiniStackSize = intPtr(10)

	merged := base.Merge(nil)
	if diff := cmp.Diff(base, merged); diff != "" {
		t.Errorf("nil override changed the record:\n%s", diff)
	}
}

func TestMergeDoesNotAliasOverride(t *testing.T) {
	t.Parallel()

	ov := &AlgorithmParameters{}
	ov.PhaseLinking.MiniStackSize = intPtr(20)

	merged := (&AlgorithmParameters{}).Merge(ov)
	*ov.PhaseLinking.MiniStackSize = 99

	assert.Equal(t, 20, merged.PhaseLinking.GetMiniStackSize())
}

func TestForFrameUnknownFrameIsIdentity(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, "overrides.json", `{"831": {"phase_linking": {"ministack_size": 20}}}`)
	ovs, err := LoadFrameOverrides(path)
	require.NoError(t, err)

	ov, err := ovs.ForFrame(999)
	require.NoError(t, err)

	base := &AlgorithmParameters{}
	merged := base.Merge(ov)
	assert.Equal(t, 15, merged.PhaseLinking.GetMiniStackSize())
}

func TestForFrameDataWrapper(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, "overrides.json", `{"data": {"831": {"spatial_wavelength_cutoff": 30000}}}`)
	ovs, err := LoadFrameOverrides(path)
	require.NoError(t, err)

	ov, err := ovs.ForFrame(831)
	require.NoError(t, err)
	require.NotNil(t, ov.SpatialWavelengthCutoff)
	assert.Equal(t, 30000.0, *ov.SpatialWavelengthCutoff)
}

func TestForFrameShapeConflict(t *testing.T) {
	t.Parallel()

	// spatial_wavelength_cutoff is a scalar; supplying a nested record for
	// it must be rejected, not coerced.
	path := writeDoc(t, "overrides.json", `{"831": {"spatial_wavelength_cutoff": {"value": 30000}}}`)
	ovs, err := LoadFrameOverrides(path)
	require.NoError(t, err)

	_, err = ovs.ForFrame(831)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestForFrameUnknownKeyRejected(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, "overrides.json", `{"831": {"no_such_option": 1}}`)
	ovs, err := LoadFrameOverrides(path)
	require.NoError(t, err)

	_, err = ovs.ForFrame(831)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestForFrameInjectedFieldRejected(t *testing.T) {
	t.Parallel()

	// The reference index comes out of timeline resolution; an override
	// pinning it would be silently discarded by Merge, so refuse it.
	path := writeDoc(t, "overrides.json", `{"831": {"phase_linking": {"output_reference_idx": 2}}}`)
	ovs, err := LoadFrameOverrides(path)
	require.NoError(t, err)

	_, err = ovs.ForFrame(831)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "output_reference_idx")
}

func TestReinstantiateRestoresValidation(t *testing.T) {
	t.Parallel()

	base := &AlgorithmParameters{}
	ov := &AlgorithmParameters{}
	ov.TimeseriesOptions.Method = strPtr("L3")

	merged := base.Merge(ov)
	_, err := merged.Reinstantiate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64   { return &v }
func boolPtr(v bool) *bool          { return &v }
func strPtr(v string) *string       { return &v }
