package solver

import (
	"fmt"
	"iter"

	"github.com/san-kum/fvsim/internal/particle"
)

// Kernel processes the particles at indices offset, offset+stride, ...
// of ps. It may read any particle's position but must only write state it
// owns: its own slice, or buffers it merges in Finalize.
type Kernel interface {
	ApplySlice(ps []*particle.Particle, stride, offset int) error
}

// Preparer is implemented by kernels that need single-threaded setup
// before the partitions of a step are scattered.
type Preparer interface {
	Prepare(ps []*particle.Particle, stride int) error
}

// Finalizer is implemented by kernels with whole-collection bookkeeping.
// Finalize runs once on the stepping goroutine after every partition
// succeeded.
type Finalizer interface {
	Finalize(ps []*particle.Particle) error
}

// Named lets a kernel choose the name used in logs and errors.
type Named interface {
	Name() string
}

// KernelFunc adapts a plain function to the Kernel interface.
type KernelFunc func(ps []*particle.Particle, stride, offset int) error

func (f KernelFunc) ApplySlice(ps []*particle.Particle, stride, offset int) error {
	return f(ps, stride, offset)
}

func kernelName(k Kernel) string {
	if n, ok := k.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", k)
}

// Indices yields the indices below n owned by partition offset of stride.
func Indices(n, stride, offset int) iter.Seq[int] {
	return func(yield func(int) bool) {
		if stride < 1 || offset < 0 {
			return
		}
		for i := offset; i < n; i += stride {
			if !yield(i) {
				return
			}
		}
	}
}

// CheckPartition verifies that stride partitions of n indices cover every
// index exactly once.
func CheckPartition(n, stride int) error {
	if stride < 1 {
		return &ConfigError{Field: "stride", Value: stride, Reason: "must be at least 1"}
	}
	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
	}
	for off := 0; off < stride; off++ {
		for i := range Indices(n, stride, off) {
			if owner[i] != -1 {
				return fmt.Errorf("solver: index %d owned by partitions %d and %d", i, owner[i], off)
			}
			owner[i] = off
		}
	}
	for i, o := range owner {
		if o == -1 {
			return fmt.Errorf("solver: index %d not owned by any partition", i)
		}
	}
	return nil
}
