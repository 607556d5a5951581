// Package btreeengine implements the alternate storage backend
// selected by the server's "--engine {kvs|sled}" flag: an in-memory
// ordered index over the same length-prefixed BSON log framing as the
// Bitcask engine (internal/engine), but indexed by
// github.com/google/btree instead of a sharded memtable, and with no
// compaction.
package btreeengine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/btree"

	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/logio"
	"github.com/kvsdb/kvs/internal/wire"
)

const logFileName = "log"
const filePerm = 0o644

type item struct {
	key string
	val string
}

func (a item) Less(b btree.Item) bool { return a.key < b.(item).key }

// Engine is the B-tree-backed KV store.
type Engine struct {
	mu   sync.RWMutex
	tree *btree.BTree

	writer     *logio.Writer
	writerFile *os.File
}

var _ engine.KV = (*Engine)(nil)

// Open replays dir's single log file into an in-memory B-tree and
// opens it for further appends.
func Open(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &kvserr.DirError{Path: dir, Err: err}
	}
	logPath := filepath.Join(dir, logFileName)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDONLY, filePerm)
	if err != nil {
		return nil, &kvserr.IoError{Err: err}
	}
	tree := btree.New(32)
	r := logio.NewReader(f)
	for {
		frame, err := r.ReadNext()
		if err != nil {
			f.Close()
			return nil, err
		}
		if frame == nil {
			break
		}
		switch {
		case frame.Entry.IsSet():
			tree.ReplaceOrInsert(item{key: frame.Entry.Key, val: frame.Entry.Val})
		case frame.Entry.IsRemove():
			tree.Delete(item{key: frame.Entry.Key})
		}
	}
	f.Close()

	wf, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, filePerm)
	if err != nil {
		return nil, &kvserr.IoError{Err: err}
	}
	w, err := logio.NewWriter(wf)
	if err != nil {
		wf.Close()
		return nil, err
	}

	return &Engine{tree: tree, writer: w, writerFile: wf}, nil
}

// Get returns the value for key, if present.
func (e *Engine) Get(key string) (string, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	found := e.tree.Get(item{key: key})
	if found == nil {
		return "", false, nil
	}
	return found.(item).val, true, nil
}

// Set durably appends key=value and updates the index.
func (e *Engine) Set(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.writer.Write(wire.SetEntry(key, value)); err != nil {
		return err
	}
	e.tree.ReplaceOrInsert(item{key: key, val: value})
	return nil
}

// Remove appends a tombstone and deletes key from the index.
func (e *Engine) Remove(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.writer.Write(wire.RemoveEntry(key)); err != nil {
		return err
	}
	prev := e.tree.Delete(item{key: key})
	if prev == nil {
		return kvserr.ErrKeyNotFound
	}
	return nil
}

// Close releases the underlying file handle.
func (e *Engine) Close() error {
	return e.writerFile.Close()
}
