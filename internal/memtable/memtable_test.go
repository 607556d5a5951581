package memtable_test

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvsdb/kvs/internal/fileid"
	"github.com/kvsdb/kvs/internal/memtable"
)

func TestInsertGetContains(t *testing.T) {
	tbl := memtable.New()
	assert.False(t, tbl.Contains("k1"))

	existed := tbl.Insert("k1", memtable.TableEntry{FileId: fileid.Append(1), Offset: 0})
	assert.False(t, existed)
	assert.True(t, tbl.Contains("k1"))

	te, ok := tbl.Get("k1")
	require.True(t, ok)
	assert.Equal(t, fileid.Append(1), te.FileId)
	assert.Equal(t, int64(0), te.Offset)

	existed = tbl.Insert("k1", memtable.TableEntry{FileId: fileid.Append(2), Offset: 10})
	assert.True(t, existed)
	te, ok = tbl.Get("k1")
	require.True(t, ok)
	assert.Equal(t, fileid.Append(2), te.FileId)
}

func TestRemove(t *testing.T) {
	tbl := memtable.New()
	existed := tbl.Remove("missing")
	assert.False(t, existed)

	tbl.Insert("k1", memtable.TableEntry{FileId: fileid.Append(1), Offset: 0})
	existed = tbl.Remove("k1")
	assert.True(t, existed)
	assert.False(t, tbl.Contains("k1"))
}

func TestLen(t *testing.T) {
	tbl := memtable.New()
	assert.Equal(t, 0, tbl.Len())
	tbl.Insert("k1", memtable.TableEntry{FileId: fileid.Append(1), Offset: 0})
	tbl.Insert("k2", memtable.TableEntry{FileId: fileid.Append(1), Offset: 10})
	assert.Equal(t, 2, tbl.Len())
	tbl.Remove("k1")
	assert.Equal(t, 1, tbl.Len())
}

func TestSnapshotIsSortedByKey(t *testing.T) {
	tbl := memtable.New()
	keys := []string{"zeta", "alpha", "mu", "beta", "omega"}
	for i, k := range keys {
		tbl.Insert(k, memtable.TableEntry{FileId: fileid.Append(1), Offset: int64(i)})
	}

	snap := tbl.Snapshot()
	require.Len(t, snap, len(keys))
	assert.True(t, sort.SliceIsSorted(snap, func(i, j int) bool { return snap[i].Key < snap[j].Key }))
}

func TestConcurrentDistinctKeysDontRace(t *testing.T) {
	tbl := memtable.New()
	var wg sync.WaitGroup
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			tbl.Insert(key, memtable.TableEntry{FileId: fileid.Append(1), Offset: int64(i)})
			_, ok := tbl.Get(key)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, tbl.Len())
}
