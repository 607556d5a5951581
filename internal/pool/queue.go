package pool

import (
	"sync"

	"github.com/kvsdb/kvs/internal/kvserr"
)

// Queue is a fixed pool of n worker goroutines draining an unbuffered
// channel of jobs. The queue is not unbounded: Spawn blocks until a
// worker is free to receive the job. A worker that panics while running a job recovers
// and keeps draining subsequent jobs; a panicked job never poisons the
// pool.
type Queue struct {
	jobs chan Job
	wg   sync.WaitGroup
}

// NewQueue constructs a Queue pool with n worker goroutines, each
// blocked on receive until the first job arrives.
func NewQueue(n int) (*Queue, error) {
	if n < 1 {
		return nil, &kvserr.PoolBuildError{Msg: "worker count must be >= 1"}
	}
	q := &Queue{jobs: make(chan Job)}
	q.wg.Add(n)
	for i := 0; i < n; i++ {
		go q.worker()
	}
	return q, nil
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		runRecovered(job)
	}
}

// Spawn hands job to the next free worker, blocking until one receives
// it.
func (q *Queue) Spawn(job Job) {
	q.jobs <- job
}

// Shutdown closes the job channel, the equivalent of sending each
// worker a stop sentinel, and waits for every worker to exit.
func (q *Queue) Shutdown() {
	close(q.jobs)
	q.wg.Wait()
}
