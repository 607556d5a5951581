// Package engine implements the Bitcask-style storage engine core:
// open/replay, get/set/remove semantics, the single-writer discipline,
// the per-worker reader-handle cache, and the seven-step compaction
// algorithm.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/kvsdb/kvs/internal/dirscan"
	"github.com/kvsdb/kvs/internal/fileid"
	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/logio"
	"github.com/kvsdb/kvs/internal/memtable"
	"github.com/kvsdb/kvs/internal/readercache"
	"github.com/kvsdb/kvs/internal/wire"
)

// DuplicateThreshold is the number of shadowing writes that triggers
// compaction.
const DuplicateThreshold = 1000

const filePerm = 0o644

// KV is the capability every engine backend (the Bitcask engine here,
// and internal/btreeengine's B-tree backend) exposes to the server.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Engine is the Bitcask-style log-structured key-value store.
type Engine struct {
	dir     string
	table   *memtable.Table
	readers *readercache.Pool

	writerMu   sync.Mutex
	writer     *logio.Writer
	writerFile *os.File
	currentID  fileid.FileId
	dupCount   int64

	refs int32
}

var _ KV = (*Engine)(nil)

func path(dir string, id fileid.FileId) string {
	return filepath.Join(dir, id.String())
}

// Open scans dir, replays the last compact file (if any) followed by
// the last append file into a fresh memtable, opens the last append
// file for continued writing, and constructs workerCount independent
// reader-handle caches.
func Open(dir string, workerCount int) (*Engine, error) {
	if workerCount < 1 {
		workerCount = 1
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &kvserr.DirError{Path: dir, Err: err}
	}

	ex, err := dirscan.Scan(dir)
	if err != nil {
		return nil, err
	}

	table := memtable.New()

	if len(ex.CompactFiles) > 0 {
		last := ex.CompactFiles[len(ex.CompactFiles)-1]
		if err := replayFile(dir, last, table); err != nil {
			return nil, err
		}
	}

	currentID := ex.AppendFiles[len(ex.AppendFiles)-1]
	if err := replayFile(dir, currentID, table); err != nil {
		return nil, err
	}

	wf, err := os.OpenFile(path(dir, currentID), os.O_CREATE|os.O_RDWR|os.O_APPEND, filePerm)
	if err != nil {
		return nil, &kvserr.IoError{Err: err}
	}
	w, err := logio.NewWriter(wf)
	if err != nil {
		wf.Close()
		return nil, err
	}

	e := &Engine{
		dir:        dir,
		table:      table,
		readers:    readercache.NewPool(dir, workerCount),
		writer:     w,
		writerFile: wf,
		currentID:  currentID,
		refs:       1,
	}
	return e, nil
}

// replayFile opens id read-only and folds its Set/Remove frames into
// table in on-disk order.
func replayFile(dir string, id fileid.FileId, table *memtable.Table) error {
	f, err := os.OpenFile(path(dir, id), os.O_CREATE|os.O_RDONLY, filePerm)
	if err != nil {
		return &kvserr.IoError{Err: err}
	}
	defer f.Close()

	r := logio.NewReader(f)
	for {
		frame, err := r.ReadNext()
		if err != nil {
			return err
		}
		if frame == nil {
			return nil
		}
		switch {
		case frame.Entry.IsSet():
			table.Insert(frame.Entry.Key, memtable.TableEntry{FileId: id, Offset: frame.Offset})
		case frame.Entry.IsRemove():
			table.Remove(frame.Entry.Key)
		default:
			return &kvserr.DeserializeEntryError{Pos: frame.Offset, Err: fmt.Errorf("unknown entry cmd %q", frame.Entry.Cmd)}
		}
	}
}

// Get looks up key in the memtable and, if present, reads its record
// from disk. A Remove record at the stored location (only possible
// during a transient memtable/log mismatch window) is treated as
// absent.
func (e *Engine) Get(key string) (string, bool, error) {
	te, ok := e.table.Get(key)
	if !ok {
		return "", false, nil
	}

	cache := e.readers.Checkout()
	defer e.readers.Return(cache)

	reader, err := cache.Get(te.FileId)
	if err != nil {
		return "", false, err
	}
	entry, err := reader.ReadAt(te.Offset)
	if err != nil {
		return "", false, err
	}
	if !entry.IsSet() {
		return "", false, nil
	}
	return entry.Val, true, nil
}

// Set appends a Set record, updates the memtable, and triggers
// compaction once the duplicate-record counter reaches
// DuplicateThreshold.
func (e *Engine) Set(key, value string) error {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	offset, err := e.writer.Write(wire.SetEntry(key, value))
	if err != nil {
		return err
	}
	existed := e.table.Insert(key, memtable.TableEntry{FileId: e.currentID, Offset: offset})
	if existed {
		e.dupCount++
	}
	if e.dupCount >= DuplicateThreshold {
		if err := e.compactLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Remove appends a tombstone and deletes key from the memtable. If
// key was absent, kvserr.ErrKeyNotFound is returned after the
// tombstone has been durably written.
func (e *Engine) Remove(key string) error {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	if _, err := e.writer.Write(wire.RemoveEntry(key)); err != nil {
		return err
	}
	e.dupCount++
	existed := e.table.Remove(key)

	if e.dupCount >= DuplicateThreshold {
		if err := e.compactLocked(); err != nil {
			return err
		}
	}
	if !existed {
		return kvserr.ErrKeyNotFound
	}
	return nil
}

// Clone takes another reference on this Engine and returns it; the
// returned value is the same *Engine, so it shares the memtable,
// reader-handle pool, and writer. Close
// must be called once per Clone (and once for the value Open
// returned); the underlying files close only when the last handle is
// closed.
func (e *Engine) Clone() *Engine {
	atomic.AddInt32(&e.refs, 1)
	return e
}

// Close flushes and releases this handle. The underlying writer,
// reader caches, and file handles are only released once every clone
// has been closed.
func (e *Engine) Close() error {
	if atomic.AddInt32(&e.refs, -1) > 0 {
		return nil
	}
	e.readers.CloseAll()
	return e.writerFile.Close()
}

// compactLocked rewrites every live key into a fresh compact file,
// swaps it in, and rotates to a new append file. Callers must hold
// writerMu.
func (e *Engine) compactLocked() error {
	newCompact := fileid.Compact(e.currentID.Version)
	klog.V(1).Infof("engine: compaction starting, new compact file %s", newCompact)

	cf, err := os.OpenFile(path(e.dir, newCompact), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return &kvserr.IoError{Err: err}
	}
	cw, err := logio.NewWriter(cf)
	if err != nil {
		cf.Close()
		os.Remove(path(e.dir, newCompact))
		return err
	}

	snapshot := e.table.Snapshot()
	type rewritten struct {
		key    string
		offset int64
	}
	newLocations := make([]rewritten, 0, len(snapshot))

	cache := e.readers.Checkout()
	for _, ent := range snapshot {
		reader, err := cache.Get(ent.Value.FileId)
		if err != nil {
			e.readers.Return(cache)
			cf.Close()
			os.Remove(path(e.dir, newCompact))
			return err
		}
		live, err := reader.ReadAt(ent.Value.Offset)
		if err != nil {
			e.readers.Return(cache)
			cf.Close()
			os.Remove(path(e.dir, newCompact))
			return err
		}
		if !live.IsSet() {
			// Defensive: a pointer-to-tombstone should not occur, skip it.
			continue
		}
		off, err := cw.Write(wire.SetEntry(ent.Key, live.Val))
		if err != nil {
			e.readers.Return(cache)
			cf.Close()
			os.Remove(path(e.dir, newCompact))
			return err
		}
		newLocations = append(newLocations, rewritten{key: ent.Key, offset: off})
	}
	e.readers.Return(cache)

	if err := cf.Close(); err != nil {
		os.Remove(path(e.dir, newCompact))
		return &kvserr.IoError{Err: err}
	}

	for _, nl := range newLocations {
		e.table.Insert(nl.key, memtable.TableEntry{FileId: newCompact, Offset: nl.offset})
	}

	e.readers.InvalidateAll()

	ex, err := dirscan.Scan(e.dir)
	if err != nil {
		klog.Errorf("engine: post-compaction directory scan failed, garbage may remain: %v", err)
	} else {
		for _, id := range append(append([]fileid.FileId{}, ex.CompactFiles...), ex.AppendFiles...) {
			if id == newCompact {
				continue
			}
			if err := os.Remove(path(e.dir, id)); err != nil {
				klog.Errorf("engine: compaction cleanup: removing %s: %v", id, err)
			}
		}
	}

	newAppend := fileid.Append(newCompact.Version + 1)
	nf, err := os.OpenFile(path(e.dir, newAppend), os.O_CREATE|os.O_RDWR|os.O_APPEND, filePerm)
	if err != nil {
		return &kvserr.IoError{Err: err}
	}
	nw, err := logio.NewWriter(nf)
	if err != nil {
		nf.Close()
		return err
	}

	e.writerFile.Close()
	e.writerFile = nf
	e.writer = nw
	e.currentID = newAppend
	e.dupCount = 0

	klog.V(1).Infof("engine: compaction complete, writing to %s", newAppend)
	return nil
}
