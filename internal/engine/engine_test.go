package engine_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/kvserr"
)

func TestSetGetRemove(t *testing.T) {
	dir := t.TempDir()
	e, err := engine.Open(dir, 2)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("k1", "v1"))
	val, found, err := e.Get("k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", val)

	require.NoError(t, e.Remove("k1"))
	_, found, err = e.Get("k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetMissingKeyReturnsNotFoundNoError(t *testing.T) {
	dir := t.TempDir()
	e, err := engine.Open(dir, 2)
	require.NoError(t, err)
	defer e.Close()

	_, found, err := e.Get("nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveMissingKeyReturnsErrKeyNotFound(t *testing.T) {
	dir := t.TempDir()
	e, err := engine.Open(dir, 2)
	require.NoError(t, err)
	defer e.Close()

	err = e.Remove("nope")
	assert.ErrorIs(t, err, kvserr.ErrKeyNotFound)
}

func TestOverwriteThenReopenIsDurable(t *testing.T) {
	dir := t.TempDir()
	e, err := engine.Open(dir, 2)
	require.NoError(t, err)

	require.NoError(t, e.Set("k1", "v1"))
	require.NoError(t, e.Set("k1", "v2"))
	require.NoError(t, e.Set("k2", "v3"))
	require.NoError(t, e.Remove("k2"))
	require.NoError(t, e.Close())

	e2, err := engine.Open(dir, 2)
	require.NoError(t, err)
	defer e2.Close()

	val, found, err := e2.Get("k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", val)

	_, found, err = e2.Get("k2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCompactionTriggersAndPreservesStateAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	e, err := engine.Open(dir, 2)
	require.NoError(t, err)

	// Force well past DuplicateThreshold shadowed writes on one key,
	// plus a handful of keys that must survive compaction untouched.
	for i := 0; i < engine.DuplicateThreshold+10; i++ {
		require.NoError(t, e.Set("hot", fmt.Sprintf("v%d", i)))
	}
	require.NoError(t, e.Set("cold1", "stays1"))
	require.NoError(t, e.Set("cold2", "stays2"))
	require.NoError(t, e.Remove("cold2"))
	require.NoError(t, e.Close())

	e2, err := engine.Open(dir, 2)
	require.NoError(t, err)
	defer e2.Close()

	val, found, err := e2.Get("hot")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, fmt.Sprintf("v%d", engine.DuplicateThreshold+9), val)

	val, found, err = e2.Get("cold1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "stays1", val)

	_, found, err = e2.Get("cold2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentSetDistinctKeys(t *testing.T) {
	dir := t.TempDir()
	e, err := engine.Open(dir, 4)
	require.NoError(t, err)
	defer e.Close()

	var wg sync.WaitGroup
	const n = 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			assert.NoError(t, e.Set(key, fmt.Sprintf("v%d", i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		val, found, err := e.Get(fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, fmt.Sprintf("v%d", i), val)
	}
}

func TestConcurrentGetDuringWrites(t *testing.T) {
	dir := t.TempDir()
	e, err := engine.Open(dir, 4)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("shared", "v0"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := e.Get("shared")
			assert.NoError(t, err)
		}(i)
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, e.Set("shared", fmt.Sprintf("v%d", i+1)))
		}(i)
	}
	wg.Wait()

	_, found, err := e.Get("shared")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCloneRefcountKeepsEngineOpenUntilAllClosed(t *testing.T) {
	dir := t.TempDir()
	e, err := engine.Open(dir, 2)
	require.NoError(t, err)

	clone := e.Clone()
	require.NoError(t, e.Close())

	// clone shares the same handle; operations still succeed.
	require.NoError(t, clone.Set("k1", "v1"))
	val, found, err := clone.Get("k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", val)

	require.NoError(t, clone.Close())
}
