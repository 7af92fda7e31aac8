package solver_test

import (
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/solver"
)

type call struct {
	stride, offset int
}

// recorder marks every particle it visits and records its invocations.
type recorder struct {
	mu        sync.Mutex
	calls     []call
	visits    []atomic.Int32
	failAt    int
	panicAt   int
	prepared  int
	finalized int
}

func newRecorder(n int) *recorder {
	return &recorder{visits: make([]atomic.Int32, n), failAt: -1, panicAt: -1}
}

func (r *recorder) ApplySlice(ps []*particle.Particle, stride, offset int) error {
	r.mu.Lock()
	r.calls = append(r.calls, call{stride, offset})
	r.mu.Unlock()

	for i := range solver.Indices(len(ps), stride, offset) {
		r.visits[i].Add(1)
	}
	if offset == r.panicAt {
		panic("kernel blew up")
	}
	if offset == r.failAt {
		return errors.New("partition failed")
	}
	return nil
}

func (r *recorder) Prepare(ps []*particle.Particle, stride int) error {
	r.prepared++
	return nil
}

func (r *recorder) Finalize(ps []*particle.Particle) error {
	r.finalized++
	return nil
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) offsets() []int {
	out := make([]int, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.offset
	}
	sort.Ints(out)
	return out
}

var _ = Describe("Stepper", func() {
	var (
		pool   *solver.Pool
		ps     []*particle.Particle
		rec    *recorder
		logger *logrus.Logger
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)

		var err error
		pool, err = solver.NewPool(3, solver.WithPoolLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		ps = particle.Line(23, r3.Vec{}, 1)
		rec = newRecorder(len(ps))
	})

	It("defaults the partition count to the pool size", func() {
		s, err := solver.New(pool, rec, ps)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Workers()).To(Equal(3))
	})

	It("runs exactly one task per partition with the partition count as stride", func() {
		s, err := solver.New(pool, rec, ps, solver.WithWorkers(5), solver.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Step()).To(Succeed())

		Expect(rec.calls).To(HaveLen(5))
		for _, c := range rec.calls {
			Expect(c.stride).To(Equal(5))
		}
		Expect(rec.offsets()).To(Equal([]int{0, 1, 2, 3, 4}))
	})

	It("visits every particle exactly once per step", func() {
		s, err := solver.New(pool, rec, ps, solver.WithWorkers(4), solver.WithPartitionCheck())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.PartitionCheck()).To(BeTrue())

		Expect(s.Step()).To(Succeed())
		Expect(s.Step()).To(Succeed())

		for i := range rec.visits {
			Expect(rec.visits[i].Load()).To(BeEquivalentTo(2), "particle %d", i)
		}
		Expect(s.Steps()).To(BeEquivalentTo(2))
	})

	It("counts steps safely while another goroutine polls", func() {
		s, err := solver.New(pool, rec, ps, solver.WithWorkers(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.PartitionCheck()).To(BeFalse())

		done := make(chan struct{})
		var seen atomic.Uint64
		go func() {
			defer close(done)
			for seen.Load() < 10 {
				seen.Store(s.Steps())
			}
		}()
		for i := 0; i < 10; i++ {
			Expect(s.Step()).To(Succeed())
		}
		Eventually(done).Should(BeClosed())
		Expect(s.Steps()).To(BeEquivalentTo(10))
	})

	It("prepares before and finalizes after every successful step", func() {
		s, err := solver.New(pool, rec, ps)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			Expect(s.Step()).To(Succeed())
		}
		Expect(rec.prepared).To(Equal(3))
		Expect(rec.finalized).To(Equal(3))
	})

	It("reports a step failure after letting siblings finish and skips finalize", func() {
		rec.failAt = 1
		s, err := solver.New(pool, rec, ps, solver.WithWorkers(4), solver.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		err = s.Step()
		Expect(err).To(MatchError(solver.ErrStepFailed))

		var failure *solver.StepFailure
		Expect(errors.As(err, &failure)).To(BeTrue())
		Expect(failure.Kernel).To(Equal("recorder"))
		Expect(failure.Failures).To(HaveLen(1))
		Expect(failure.Failures[0].Offset).To(Equal(1))

		Expect(rec.calls).To(HaveLen(4))
		Expect(rec.finalized).To(BeZero())
		Expect(s.Steps()).To(BeZero())
	})

	It("recovers a panicking partition into a step failure", func() {
		rec.panicAt = 2
		s, err := solver.New(pool, rec, ps, solver.WithWorkers(3), solver.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		err = s.Step()
		Expect(err).To(MatchError(solver.ErrStepFailed))

		var pe solver.PanicError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.Value).To(Equal("kernel blew up"))
		Expect(rec.finalized).To(BeZero())
	})

	It("rebinds to another collection", func() {
		other := particle.Line(7, r3.Vec{}, 1)
		var seen atomic.Int32
		k := solver.KernelFunc(func(ps []*particle.Particle, stride, offset int) error {
			for range solver.Indices(len(ps), stride, offset) {
				seen.Add(1)
			}
			return nil
		})

		s, err := solver.New(pool, k, ps)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.SetParticles(other)).To(BeIdenticalTo(s))
		Expect(s.Step()).To(Succeed())
		Expect(seen.Load()).To(BeEquivalentTo(7))
		Expect(s.Particles()).To(HaveLen(7))
	})

	It("changes the partition count between steps", func() {
		s, err := solver.New(pool, rec, ps)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.SetWorkers(1)).To(Succeed())
		Expect(s.Step()).To(Succeed())
		Expect(rec.calls).To(Equal([]call{{1, 0}}))
	})

	It("runs more partitions than pool workers", func() {
		s, err := solver.New(pool, rec, ps, solver.WithWorkers(16))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Step()).To(Succeed())
		Expect(rec.calls).To(HaveLen(16))
	})

	Context("configuration", func() {
		It("rejects zero workers at configuration time", func() {
			_, err := solver.New(pool, rec, ps, solver.WithWorkers(0))
			Expect(err).To(MatchError(solver.ErrConfiguration))

			s, err := solver.New(pool, rec, ps)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.SetWorkers(-2)).To(MatchError(solver.ErrConfiguration))
			Expect(s.Workers()).To(Equal(3))
		})

		It("requires a pool and a kernel", func() {
			_, err := solver.New(nil, rec, ps)
			Expect(err).To(MatchError(solver.ErrConfiguration))
			_, err = solver.New(pool, nil, ps)
			Expect(err).To(MatchError(solver.ErrConfiguration))
		})
	})

	It("fails once the pool is closed", func() {
		s, err := solver.New(pool, rec, ps)
		Expect(err).NotTo(HaveOccurred())

		pool.Close()
		Expect(s.Step()).To(MatchError(solver.ErrPoolClosed))
		Expect(rec.finalized).To(BeZero())
	})
})
