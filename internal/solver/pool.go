package solver

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultWorkers returns the hardware concurrency, at least 1.
func DefaultWorkers() int {
	return max(runtime.NumCPU(), 1)
}

// Pool is a fixed set of persistent worker goroutines. It is created once
// and shared by any number of steppers; Close stops the workers.
type Pool struct {
	workers int
	log     *logrus.Logger

	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type PoolOption func(*Pool)

func WithPoolLogger(log *logrus.Logger) PoolOption {
	return func(p *Pool) { p.log = log }
}

// NewPool starts workers goroutines.
func NewPool(workers int, opts ...PoolOption) (*Pool, error) {
	if workers < 1 {
		return nil, &ConfigError{Field: "workers", Value: workers, Reason: "must be at least 1"}
	}
	p := &Pool{
		workers: workers,
		log:     logrus.StandardLogger(),
		tasks:   make(chan func(), workers),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	p.log.Debugf("solver pool started with %d workers", workers)
	return p, nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
	p.log.Tracef("solver worker %d stopped", id)
}

func (p *Pool) Workers() int { return p.workers }

// Submit queues task for execution. It blocks while every worker is busy
// and the queue is full.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.tasks <- task
	return nil
}

// Close stops accepting work, lets queued tasks finish and waits for the
// workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debug("solver pool stopped")
}
