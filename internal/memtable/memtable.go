// Package memtable implements the concurrent ordered key index: a map
// from key to TableEntry, split into shards so that point operations
// on keys in different shards proceed in parallel.
//
// Rather than a single mutex-guarded map, the table is striped across
// a fixed number of independently-locked, individually-ordered
// google/btree trees keyed by a stable hash of the key. Each shard is
// guarded by a sync.RWMutex: readers of a shard do not block each
// other, but a reader and a writer of the same shard wait for one
// another, so access is not lock-free. Two point operations on keys
// that land in different shards never contend;
// ordered iteration (needed only for compaction, which is already
// serialized behind the engine's writer lock) merges the shards by
// sorting a point-in-time snapshot.
package memtable

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/kvsdb/kvs/internal/fileid"
)

// TableEntry locates the most recent live frame for a key.
type TableEntry struct {
	FileId fileid.FileId
	Offset int64
}

// Entry pairs a key with its TableEntry, used for ordered snapshots.
type Entry struct {
	Key   string
	Value TableEntry
}

const shardCount = 32

type item struct {
	key   string
	value TableEntry
}

func (a item) Less(b btree.Item) bool { return a.key < b.(item).key }

type shard struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// Table is the concurrent ordered key -> TableEntry index.
type Table struct {
	shards [shardCount]*shard
}

// New constructs an empty Table.
func New() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i] = &shard{tree: btree.New(32)}
	}
	return t
}

func (t *Table) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return t.shards[h.Sum32()%shardCount]
}

// Get returns the TableEntry for key, if present.
func (t *Table) Get(key string) (TableEntry, bool) {
	s := t.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := s.tree.Get(item{key: key})
	if found == nil {
		return TableEntry{}, false
	}
	return found.(item).value, true
}

// Contains reports whether key is present.
func (t *Table) Contains(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Insert sets key -> value, returning whether key was already present
// (the caller uses this to drive the duplicate-record counter).
func (t *Table) Insert(key string, value TableEntry) bool {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.tree.ReplaceOrInsert(item{key: key, value: value})
	return prev != nil
}

// Remove deletes key, returning whether it was present.
func (t *Table) Remove(key string) bool {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.tree.Delete(item{key: key})
	return prev != nil
}

// Len returns the number of live keys.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += s.tree.Len()
		s.mu.RUnlock()
	}
	return n
}

// Snapshot returns every (key, TableEntry) pair in ascending key
// order. It is a point-in-time copy; concurrent mutations after the
// call do not affect the returned slice. Used only by compaction,
// which already holds the engine's writer lock.
func (t *Table) Snapshot() []Entry {
	out := make([]Entry, 0, t.Len())
	for _, s := range t.shards {
		s.mu.RLock()
		s.tree.Ascend(func(i btree.Item) bool {
			it := i.(item)
			out = append(out, Entry{Key: it.key, Value: it.value})
			return true
		})
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
