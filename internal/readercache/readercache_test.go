package readercache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvsdb/kvs/internal/fileid"
	"github.com/kvsdb/kvs/internal/logio"
	"github.com/kvsdb/kvs/internal/readercache"
	"github.com/kvsdb/kvs/internal/wire"
)

func writeLogFile(t *testing.T, dir string, id fileid.FileId, entries ...wire.LogEntry) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(dir, id.String()), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()
	w, err := logio.NewWriter(f)
	require.NoError(t, err)
	for _, e := range entries {
		_, err := w.Write(e)
		require.NoError(t, err)
	}
}

func TestCacheLazilyOpensAndReuses(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, fileid.Append(1), wire.SetEntry("k", "v"))

	c := readercache.NewCache(dir)
	defer c.Close()

	r1, err := c.Get(fileid.Append(1))
	require.NoError(t, err)
	r2, err := c.Get(fileid.Append(1))
	require.NoError(t, err)
	assert.Same(t, r1, r2, "second Get should reuse the cached reader")
}

func TestCacheGetMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	c := readercache.NewCache(dir)
	defer c.Close()

	_, err := c.Get(fileid.Append(99))
	assert.Error(t, err)
}

func TestPoolCheckoutReturn(t *testing.T) {
	dir := t.TempDir()
	p := readercache.NewPool(dir, 2)
	defer p.CloseAll()

	c1 := p.Checkout()
	c2 := p.Checkout()
	assert.NotNil(t, c1)
	assert.NotNil(t, c2)
	p.Return(c1)
	p.Return(c2)

	c3 := p.Checkout()
	assert.NotNil(t, c3)
	p.Return(c3)
}

func TestPoolInvalidateAllRoundTrips(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, fileid.Append(1), wire.SetEntry("k", "v"))

	p := readercache.NewPool(dir, 1)
	defer p.CloseAll()

	c := p.Checkout()
	_, err := c.Get(fileid.Append(1))
	require.NoError(t, err)
	p.Return(c)

	p.InvalidateAll()

	c2 := p.Checkout()
	defer p.Return(c2)
	_, err = c2.Get(fileid.Append(1))
	assert.NoError(t, err, "cache should lazily reopen after invalidation")
}
