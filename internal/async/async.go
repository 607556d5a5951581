// Package async wraps the engine's blocking Get/Set/Remove operations
// as futures resolved from a pool worker. It adds no ordering
// guarantees beyond what the engine itself provides.
package async

import (
	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/pool"
)

// Result is the outcome of an asynchronous Get: a value (if found)
// and whether it was found, or an error.
type Result struct {
	Value string
	Found bool
	Err   error
}

// Future resolves to a Result once the submitted job completes.
// Dropping a Future without calling Wait does not abort the
// underlying job.
type Future struct {
	ch chan Result
}

// Wait blocks until the future resolves and returns its Result.
func (f *Future) Wait() Result { return <-f.ch }

// Facade schedules KV operations onto a Pool and exposes them as
// Futures. It works with either storage backend (engine.Engine or
// btreeengine.Engine) since both satisfy engine.KV.
type Facade struct {
	eng  engine.KV
	pool pool.Pool
}

// NewFacade builds a Facade dispatching eng's operations onto pool.
func NewFacade(eng engine.KV, p pool.Pool) *Facade {
	return &Facade{eng: eng, pool: p}
}

// GetAsync submits a Get(key) job and returns its Future.
func (f *Facade) GetAsync(key string) *Future {
	fut := &Future{ch: make(chan Result, 1)}
	f.pool.Spawn(func() {
		val, found, err := f.eng.Get(key)
		fut.ch <- Result{Value: val, Found: found, Err: err}
	})
	return fut
}

// SetAsync submits a Set(key, value) job and returns its Future.
func (f *Facade) SetAsync(key, value string) *Future {
	fut := &Future{ch: make(chan Result, 1)}
	f.pool.Spawn(func() {
		err := f.eng.Set(key, value)
		fut.ch <- Result{Err: err}
	})
	return fut
}

// RemoveAsync submits a Remove(key) job and returns its Future.
func (f *Facade) RemoveAsync(key string) *Future {
	fut := &Future{ch: make(chan Result, 1)}
	f.pool.Spawn(func() {
		err := f.eng.Remove(key)
		fut.ch <- Result{Err: err}
	})
	return fut
}
