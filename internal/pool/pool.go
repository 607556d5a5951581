// Package pool implements a uniform "spawn a job" thread-pool
// abstraction with three interchangeable backends: a naive
// one-goroutine-per-job pool, a fixed-size shared-queue pool, and a
// work-stealing pool that delegates scheduling to the Go runtime
// itself.
package pool

import (
	"context"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"

	"github.com/kvsdb/kvs/internal/kvserr"
)

var backgroundCtx = context.Background()

// Job is a one-shot unit of work submitted to a Pool. It carries no
// result channel; callers wanting a result supply their own (see
// internal/async).
type Job func()

// Pool accepts jobs and runs them on some number of workers.
type Pool interface {
	// Spawn schedules job to run. Naive returns immediately; Queue and
	// Stealing block until a worker or permit is free.
	Spawn(job Job)
	// Shutdown waits for every previously spawned job to finish. It does
	// not make later Spawn calls fail: Naive and Stealing still run
	// them, and Queue panics on them.
	Shutdown()
}

func runRecovered(job Job) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("pool: recovered panic in job: %v\n%s", r, debug.Stack())
		}
	}()
	job()
}

// Naive spawns a fresh goroutine per job. Intended for baseline
// measurement and tests.
type Naive struct {
	wg sync.WaitGroup
}

// NewNaive constructs a Naive pool. n is accepted for interface
// symmetry with the other backends but does not bound concurrency.
func NewNaive(n int) (*Naive, error) {
	if n < 1 {
		return nil, &kvserr.PoolBuildError{Msg: "worker count must be >= 1"}
	}
	return &Naive{}, nil
}

// Spawn runs job on a new goroutine.
func (p *Naive) Spawn(job Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		runRecovered(job)
	}()
}

// Shutdown waits for every spawned job to finish.
func (p *Naive) Shutdown() { p.wg.Wait() }

// Stealing bounds concurrency to n permits drawn from a
// golang.org/x/sync/semaphore.Weighted, then leans on the Go
// runtime's own M:N work-stealing scheduler to balance jobs across OS
// threads, so the pool's only job is to cap how many jobs run
// concurrently.
type Stealing struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewStealing constructs a Stealing pool with n concurrent permits.
func NewStealing(n int) (*Stealing, error) {
	if n < 1 {
		return nil, &kvserr.PoolBuildError{Msg: "worker count must be >= 1"}
	}
	return &Stealing{sem: semaphore.NewWeighted(int64(n))}, nil
}

// Spawn blocks until a permit is free, then runs job on a goroutine.
func (p *Stealing) Spawn(job Job) {
	_ = p.sem.Acquire(backgroundCtx, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		runRecovered(job)
	}()
}

// Shutdown waits for every spawned job to finish.
func (p *Stealing) Shutdown() { p.wg.Wait() }
