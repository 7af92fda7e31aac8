package particle

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is a point mass advanced by position-based Verlet integration.
// Velocity is implicit: it is the difference between Position and Previous.
//
// Force is an accumulator. Force kernels add into it during a tick and the
// integrator consumes and clears it.
type Particle struct {
	Position r3.Vec
	Previous r3.Vec
	Force    r3.Vec

	// Constraint scales the motion delta per axis while Pinned is set.
	// (0,0,0) locks the particle, (1,1,1) behaves as unpinned.
	Constraint r3.Vec
	Pinned     bool
}

// Free is the constraint multiplier that leaves every axis unconstrained.
var Free = r3.Vec{X: 1, Y: 1, Z: 1}

// New returns a particle at rest at pos.
func New(pos r3.Vec) *Particle {
	return &Particle{
		Position:   pos,
		Previous:   pos,
		Constraint: Free,
	}
}

// Pin constrains the particle with the given per-axis multiplier.
func (p *Particle) Pin(mult r3.Vec) *Particle {
	p.Pinned = true
	p.Constraint = mult
	return p
}

func (p *Particle) Unpin() *Particle {
	p.Pinned = false
	p.Constraint = Free
	return p
}

func (p *Particle) AddForce(f r3.Vec) {
	p.Force = r3.Add(p.Force, f)
}

// Velocity returns the displacement carried over from the last step.
func (p *Particle) Velocity() r3.Vec {
	return r3.Sub(p.Position, p.Previous)
}

// Teleport moves the particle without giving it any velocity.
func (p *Particle) Teleport(pos r3.Vec) {
	p.Position = pos
	p.Previous = pos
}

// Valid reports whether position and force are finite.
func (p *Particle) Valid() bool {
	return finite(p.Position) && finite(p.Force)
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Line places n particles along the x axis starting at origin.
func Line(n int, origin r3.Vec, spacing float64) []*Particle {
	ps := make([]*Particle, n)
	for i := range ps {
		ps[i] = New(r3.Add(origin, r3.Vec{X: float64(i) * spacing}))
	}
	return ps
}

// Grid places cols*rows particles on the z=0 plane.
func Grid(cols, rows int, origin r3.Vec, spacing float64) []*Particle {
	ps := make([]*Particle, 0, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			off := r3.Vec{X: float64(x) * spacing, Y: float64(y) * spacing}
			ps = append(ps, New(r3.Add(origin, off)))
		}
	}
	return ps
}

// Cloud scatters n particles uniformly inside a sphere around center.
// The same seed always produces the same cloud.
func Cloud(n int, center r3.Vec, radius float64, seed int64) []*Particle {
	rng := rand.New(rand.NewSource(seed))
	ps := make([]*Particle, n)
	for i := range ps {
		var v r3.Vec
		for {
			v = r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
			if r3.Norm2(v) <= 1 {
				break
			}
		}
		ps[i] = New(r3.Add(center, r3.Scale(radius, v)))
	}
	return ps
}

// Clone deep-copies a particle collection.
func Clone(ps []*Particle) []*Particle {
	out := make([]*Particle, len(ps))
	for i, p := range ps {
		c := *p
		out[i] = &c
	}
	return out
}

// Centroid returns the mean position of the finite particles in ps.
func Centroid(ps []*Particle) r3.Vec {
	var sum r3.Vec
	n := 0
	for _, p := range ps {
		if finite(p.Position) {
			sum = r3.Add(sum, p.Position)
			n++
		}
	}
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/float64(n), sum)
}
