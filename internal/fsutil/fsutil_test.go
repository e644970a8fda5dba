package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "out.bin")

	require.NoError(t, WriteFileAtomic(target, []byte("first"), 0o644))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	// Overwrite must replace content, not append.
	require.NoError(t, WriteFileAtomic(target, []byte("second"), 0o644))
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStageAndCommitDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "product")

	staged, err := StageDir(target)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(staged, "layer"), []byte("x"), 0o644))

	require.NoError(t, CommitDir(staged, target))
	assert.True(t, Exists(filepath.Join(target, "layer")))
	assert.False(t, Exists(staged))
}

func TestCommitDirReplacesPrevious(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "product")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "stale"), []byte("old"), 0o644))

	staged, err := StageDir(target)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(staged, "fresh"), []byte("new"), 0o644))

	require.NoError(t, CommitDir(staged, target))
	assert.False(t, Exists(filepath.Join(target, "stale")))
	assert.True(t, Exists(filepath.Join(target, "fresh")))
}

func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.True(t, Exists(dir))
	assert.False(t, Exists(filepath.Join(dir, "missing")))
}
