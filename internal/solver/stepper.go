package solver

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/fvsim/internal/particle"
)

// Stepper runs one kernel over one particle collection, one parallel pass
// per Step. The collection is referenced, not owned: the host may mutate it
// between steps or rebind the stepper with SetParticles.
//
// A Stepper must not be reconfigured while Step is running.
type Stepper struct {
	pool      *Pool
	kernel    Kernel
	particles []*particle.Particle
	workers   int
	check     bool
	log       *logrus.Logger
	steps     atomic.Uint64

	mu    sync.Mutex
	tasks []func()
	wg    sync.WaitGroup
	errs  []error
}

type Option func(*Stepper) error

// WithWorkers overrides the number of partitions, which defaults to the
// pool size. A single partition makes stepping deterministic.
func WithWorkers(n int) Option {
	return func(s *Stepper) error {
		if n < 1 {
			return &ConfigError{Field: "workers", Value: n, Reason: "must be at least 1"}
		}
		s.workers = n
		return nil
	}
}

func WithLogger(log *logrus.Logger) Option {
	return func(s *Stepper) error {
		s.log = log
		return nil
	}
}

// WithPartitionCheck verifies before every step that the partitions are
// disjoint and cover the collection.
func WithPartitionCheck() Option {
	return func(s *Stepper) error {
		s.check = true
		return nil
	}
}

func New(pool *Pool, kernel Kernel, ps []*particle.Particle, opts ...Option) (*Stepper, error) {
	if pool == nil {
		return nil, &ConfigError{Field: "pool", Value: nil, Reason: "is required"}
	}
	if kernel == nil {
		return nil, &ConfigError{Field: "kernel", Value: nil, Reason: "is required"}
	}
	s := &Stepper{
		pool:      pool,
		kernel:    kernel,
		particles: ps,
		workers:   pool.Workers(),
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.buildTasks()
	return s, nil
}

// buildTasks caches one task per partition so that Step does not allocate.
func (s *Stepper) buildTasks() {
	s.tasks = make([]func(), s.workers)
	s.errs = make([]error, s.workers)
	for i := range s.tasks {
		s.tasks[i] = s.partition(i)
	}
}

func (s *Stepper) partition(offset int) func() {
	return func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.errs[offset] = PanicError{Value: r}
			}
		}()
		s.errs[offset] = s.kernel.ApplySlice(s.particles, s.workers, offset)
	}
}

// Step runs the kernel once over every partition and blocks until all of
// them returned. When any partition failed, Step returns a *StepFailure
// and skips the finalize hook.
func (s *Stepper) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.check {
		if err := CheckPartition(len(s.particles), s.workers); err != nil {
			return err
		}
	}
	if p, ok := s.kernel.(Preparer); ok {
		if err := p.Prepare(s.particles, s.workers); err != nil {
			return err
		}
	}

	clear(s.errs)
	var submitErr error
	for i, task := range s.tasks {
		s.wg.Add(1)
		if err := s.pool.Submit(task); err != nil {
			s.wg.Done()
			s.errs[i] = err
			submitErr = err
		}
	}
	s.wg.Wait()

	if submitErr != nil {
		return submitErr
	}
	if err := s.failure(); err != nil {
		return err
	}

	if f, ok := s.kernel.(Finalizer); ok {
		if err := f.Finalize(s.particles); err != nil {
			return err
		}
	}
	s.steps.Add(1)
	return nil
}

func (s *Stepper) failure() error {
	var failures []*PartitionError
	for i, err := range s.errs {
		if err == nil {
			continue
		}
		failures = append(failures, &PartitionError{Offset: i, Stride: s.workers, Err: err})
	}
	if len(failures) == 0 {
		return nil
	}

	name := kernelName(s.kernel)
	for _, f := range failures {
		s.log.WithFields(logrus.Fields{
			"kernel": name,
			"offset": f.Offset,
			"stride": f.Stride,
		}).Warnf("partition failed: %v", f.Err)
	}
	return &StepFailure{Kernel: name, Failures: failures}
}

// SetParticles rebinds the stepper to another collection.
func (s *Stepper) SetParticles(ps []*particle.Particle) *Stepper {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.particles = ps
	return s
}

// SetWorkers changes the partition count.
func (s *Stepper) SetWorkers(n int) error {
	if n < 1 {
		return &ConfigError{Field: "workers", Value: n, Reason: "must be at least 1"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = n
	s.buildTasks()
	return nil
}

func (s *Stepper) Particles() []*particle.Particle { return s.particles }
func (s *Stepper) Kernel() Kernel                  { return s.kernel }
func (s *Stepper) Workers() int                    { return s.workers }

// PartitionCheck reports whether steps verify their partitioning first.
func (s *Stepper) PartitionCheck() bool { return s.check }

// Steps returns the number of steps that completed successfully. It is safe
// to call while Step runs on another goroutine.
func (s *Stepper) Steps() uint64 { return s.steps.Load() }
