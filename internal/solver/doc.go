// Package solver provides the parallel stepping framework for particle kernels.
//
// A [Kernel] is a unit of per-step work that processes a strided slice of a
// particle collection. A [Stepper] binds one kernel to one collection and,
// on every [Stepper.Step], fans out one task per partition onto a shared
// [Pool], waits for all of them and then runs the optional finalize hook:
//
//	pool, _ := solver.NewPool(solver.DefaultWorkers())
//	defer pool.Close()
//
//	forces, _ := solver.New(pool, behavior.NewCameraOverlap(eye), ps)
//	integ, _ := solver.New(pool, behavior.NewVerlet(), ps)
//
//	for range ticks {
//	    forces.Step()
//	    integ.Step()
//	}
//
// # Partitioning
//
// With w partitions, partition i owns indices i, i+w, i+2w, ...
// [CheckPartition] verifies that the partitions cover every index exactly once.
//
// # Ordering
//
// The stepper does not order kernels. Callers must step every force-producing
// stepper of a tick before the integrator stepper; otherwise the integrator
// reads a partially accumulated force and motion is silently wrong.
package solver
