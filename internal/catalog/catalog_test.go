package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQueryProducts(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ref := time.Date(2022, 11, 19, 14, 2, 21, 0, time.UTC)
	sec := time.Date(2023, 1, 6, 14, 2, 21, 0, time.UTC)

	id1, err := s.RecordProduct(11114, "/out/product-a", ref, sec, "0.3")
	require.NoError(t, err)
	id2, err := s.RecordProduct(11114, "/out/product-b", ref, sec, "0.3")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	_, err = s.RecordProduct(20000, "/out/other", ref, sec, "0.3")
	require.NoError(t, err)

	records, err := s.ProductsForFrame(11114)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, 11114, r.FrameID)
		assert.Equal(t, "0.3", r.ProductVersion)
		assert.True(t, r.ReferenceTime.Equal(ref))
		assert.True(t, r.SecondaryTime.Equal(sec))
	}

	empty, err := s.ProductsForFrame(99999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRecordCompressed(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, err := s.RecordCompressed("t042_088905_iw1", "/out/compressed_t042_088905_iw1_20221119")
	require.NoError(t, err)
	_, err = s.RecordCompressed("t042_088906_iw1", "/out/compressed_t042_088906_iw1_20221119")
	require.NoError(t, err)

	paths, err := s.CompressedForBurst("t042_088905_iw1")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], "t042_088905_iw1")
}

func TestOpenIdempotentMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.RecordCompressed("t001_000001_iw1", "/out/x")
	assert.NoError(t, err)
}
