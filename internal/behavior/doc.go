// Package behavior provides the particle kernels run by [solver.Stepper]:
//
//   - [Verlet]: position-based integrator with friction and per-axis pinning
//   - [CameraOverlap]: repulsion between particles that overlap as seen
//     from a viewpoint
//
// Force kernels add into [particle.Particle.Force]; Verlet consumes and
// clears it, so it is stepped last in every tick.
package behavior
