// Package readercache implements the per-worker reader-handle cache
// and the bounded checkout/return pool of such caches: file handles
// cannot be shared by concurrent seekers, so each worker slot owns its
// own lazily-populated cache of open logio.Readers, and a bounded
// concurrent queue hands a free cache to whichever goroutine is
// currently performing a read.
package readercache

import (
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kvsdb/kvs/internal/fileid"
	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/logio"
)

// Cache is one worker's lazy map of FileId -> open Reader, bounded so
// a long-lived engine does not accumulate unbounded file descriptors
// across many compactions.
type Cache struct {
	dir string
	mu  sync.Mutex
	lru *lru.Cache[fileid.FileId, *openReader]
}

type openReader struct {
	f *os.File
	r *logio.Reader
}

const defaultCacheSize = 64

// NewCache constructs a Cache rooted at dir.
func NewCache(dir string) *Cache {
	c := &Cache{dir: dir}
	evictFn := func(_ fileid.FileId, v *openReader) { _ = v.f.Close() }
	l, err := lru.NewWithEvict[fileid.FileId, *openReader](defaultCacheSize, evictFn)
	if err != nil {
		// defaultCacheSize is a positive constant; lru.NewWithEvict only
		// fails for size <= 0.
		panic(err)
	}
	c.lru = l
	return c
}

// Get returns the Reader for id, opening and caching it on first use.
func (c *Cache) Get(id fileid.FileId) (*logio.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if or, ok := c.lru.Get(id); ok {
		return or.r, nil
	}
	f, err := os.Open(c.dir + string(os.PathSeparator) + id.String())
	if err != nil {
		return nil, &kvserr.IoError{Err: err}
	}
	r := logio.NewReader(f)
	c.lru.Add(id, &openReader{f: f, r: r})
	return r, nil
}

// Invalidate closes and forgets every cached reader. Called after a
// compaction swap so no worker can keep reading from a file that is
// about to be deleted.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Close releases all cached file handles.
func (c *Cache) Close() { c.Invalidate() }

// Pool is the bounded checkout/return queue of per-worker Caches.
type Pool struct {
	ch chan *Cache
}

// NewPool constructs a Pool with n independent Caches rooted at dir.
func NewPool(dir string, n int) *Pool {
	p := &Pool{ch: make(chan *Cache, n)}
	for i := 0; i < n; i++ {
		p.ch <- NewCache(dir)
	}
	return p
}

// Checkout blocks until a Cache is available and returns it. The
// caller must Return it when done.
func (p *Pool) Checkout() *Cache { return <-p.ch }

// Return gives c back to the pool.
func (p *Pool) Return(c *Cache) { p.ch <- c }

// InvalidateAll drains every Cache, invalidates it, and returns it to
// the pool. Used once per completed compaction.
func (p *Pool) InvalidateAll() {
	n := cap(p.ch)
	caches := make([]*Cache, 0, n)
	for i := 0; i < n; i++ {
		c := p.Checkout()
		c.Invalidate()
		caches = append(caches, c)
	}
	for _, c := range caches {
		p.Return(c)
	}
}

// CloseAll drains the pool and closes every Cache's file handles.
func (p *Pool) CloseAll() {
	n := cap(p.ch)
	for i := 0; i < n; i++ {
		c := p.Checkout()
		c.Close()
	}
}
