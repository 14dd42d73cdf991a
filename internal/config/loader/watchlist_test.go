package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWatchlist(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRegistry(t *testing.T) {
	t.Run("LoadsEntries", func(t *testing.T) {
		path := writeWatchlist(t, t.TempDir(), `
products:
  - product_id: macbook-air-m3
    name: MacBook Air M3
    query: macbook air m3 13 inch price
    currency: usd
    target_price: 899
    email: buyer@example.com
  - product_id: sony-xm5
    url: https://www.bestbuy.com/site/sony-wh-1000xm5
    phone: "+15550001111"
`)
		r, err := NewRegistry(path, false)
		require.NoError(t, err)

		snap := r.Snapshot()
		assert.Equal(t, int64(1), snap.Version)
		require.Len(t, snap.Entries, 2)

		byID := map[string]Entry{}
		for _, e := range snap.Entries {
			byID[e.ProductID] = e
		}
		assert.Equal(t, "USD", byID["macbook-air-m3"].Currency)
		assert.InDelta(t, 899.0, byID["macbook-air-m3"].TargetPrice, 0.001)
		assert.Equal(t, "https://www.bestbuy.com/site/sony-wh-1000xm5", byID["sony-xm5"].URL)
	})

	t.Run("DuplicateIDsDeduped", func(t *testing.T) {
		path := writeWatchlist(t, t.TempDir(), `
products:
  - product_id: p1
    name: first
  - product_id: p1
    name: second
`)
		r, err := NewRegistry(path, false)
		require.NoError(t, err)
		snap := r.Snapshot()
		require.Len(t, snap.Entries, 1)
		assert.Equal(t, "first", snap.Entries[0].Name)
	})

	t.Run("MissingIdentityRejected", func(t *testing.T) {
		// product_id 有但 name/query/url 全缺：schema 的 anyOf 拒载
		path := writeWatchlist(t, t.TempDir(), `
products:
  - product_id: p1
    currency: USD
`)
		_, err := NewRegistry(path, false)
		assert.ErrorContains(t, err, "schema validation")
	})

	t.Run("MissingProductsKeyRejected", func(t *testing.T) {
		path := writeWatchlist(t, t.TempDir(), "items: []\n")
		_, err := NewRegistry(path, false)
		assert.ErrorContains(t, err, "schema validation")
	})

	t.Run("MissingFileRejected", func(t *testing.T) {
		_, err := NewRegistry(filepath.Join(t.TempDir(), "absent.yaml"), false)
		assert.Error(t, err)
	})

	t.Run("EmptyPathRejected", func(t *testing.T) {
		_, err := NewRegistry("  ", false)
		assert.Error(t, err)
	})
}

func TestSnapshotIsolation(t *testing.T) {
	path := writeWatchlist(t, t.TempDir(), `
products:
  - product_id: p1
    name: x
`)
	r, err := NewRegistry(path, false)
	require.NoError(t, err)

	snap := r.Snapshot()
	snap.Entries[0].Name = "mutated"
	assert.Equal(t, "x", r.Snapshot().Entries[0].Name)
}
