package behavior

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/solver"
)

// DefaultFriction keeps 99% of the carried displacement each step.
const DefaultFriction = 0.99

// Verlet is the position-based integrator. It is the only kernel that
// writes positions and the designated consumer of the force accumulator,
// so it must run after every force kernel of a tick.
type Verlet struct {
	friction float64
}

func NewVerlet() *Verlet {
	return &Verlet{friction: DefaultFriction}
}

// SetFriction sets the fraction of displacement carried into the next
// step: 0 stops the particle every step, 1 applies no damping.
func (v *Verlet) SetFriction(f float64) error {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return &solver.ConfigError{Field: "friction", Value: f, Reason: "must be within [0, 1]"}
	}
	v.friction = f
	return nil
}

func (v *Verlet) Friction() float64 { return v.friction }

func (v *Verlet) Name() string { return "verlet" }

func (v *Verlet) ApplySlice(ps []*particle.Particle, stride, offset int) error {
	f := v.friction
	for i := offset; i < len(ps); i += stride {
		p := ps[i]
		temp := p.Position

		delta := r3.Add(r3.Scale(f, r3.Sub(temp, p.Previous)), p.Force)
		if p.Pinned {
			u := p.Constraint
			delta = r3.Vec{X: delta.X * u.X, Y: delta.Y * u.Y, Z: delta.Z * u.Z}
		}

		p.Position = r3.Add(temp, delta)
		p.Previous = temp
		p.Force = r3.Vec{}
	}
	return nil
}
