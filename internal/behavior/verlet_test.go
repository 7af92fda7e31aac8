package behavior

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/solver"
)

func newStepper(t testing.TB, k solver.Kernel, ps []*particle.Particle, workers int) *solver.Stepper {
	t.Helper()
	pool, err := solver.NewPool(workers)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := solver.New(pool, k, ps, solver.WithWorkers(workers), solver.WithPartitionCheck())
	if err != nil {
		t.Fatalf("stepper: %v", err)
	}
	return s
}

func mustStep(t testing.TB, s *solver.Stepper, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestVerletFixedPoint(t *testing.T) {
	pos := r3.Vec{X: 3, Y: -2, Z: 7}
	ps := []*particle.Particle{particle.New(pos)}

	mustStep(t, newStepper(t, NewVerlet(), ps, 1), 1)

	if ps[0].Position != pos || ps[0].Previous != pos {
		t.Errorf("particle at rest moved: %+v", ps[0])
	}
}

func TestVerletFriction(t *testing.T) {
	tests := []struct {
		name     string
		friction float64
		steps    int
		want     float64
	}{
		{"no damping", 1, 5, 1},
		{"full damping", 0, 1, 0},
		{"default", DefaultFriction, 10, math.Pow(DefaultFriction, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := particle.New(r3.Vec{X: 1})
			p.Previous = r3.Vec{}

			v := NewVerlet()
			if err := v.SetFriction(tt.friction); err != nil {
				t.Fatalf("SetFriction: %v", err)
			}
			mustStep(t, newStepper(t, v, []*particle.Particle{p}, 1), tt.steps)

			if got := p.Velocity().X; math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("displacement after %d steps = %v, want %v", tt.steps, got, tt.want)
			}
		})
	}
}

func TestVerletConsumesForce(t *testing.T) {
	p := particle.New(r3.Vec{})
	p.AddForce(r3.Vec{X: 0.5, Z: -1})

	mustStep(t, newStepper(t, NewVerlet(), []*particle.Particle{p}, 1), 1)

	if p.Position != (r3.Vec{X: 0.5, Z: -1}) {
		t.Errorf("expected force applied as displacement, got %v", p.Position)
	}
	if p.Previous != (r3.Vec{}) {
		t.Errorf("expected previous to hold old position, got %v", p.Previous)
	}
	if p.Force != (r3.Vec{}) {
		t.Errorf("expected force cleared, got %v", p.Force)
	}
}

func TestVerletPinAxisLock(t *testing.T) {
	p := particle.New(r3.Vec{X: 4, Y: 1, Z: 1}).Pin(r3.Vec{X: 0, Y: 1, Z: 1})
	s := newStepper(t, NewVerlet(), []*particle.Particle{p}, 1)

	for i := 0; i < 20; i++ {
		p.AddForce(r3.Vec{X: 5, Y: 5, Z: 5})
		mustStep(t, s, 1)
		if p.Position.X != 4 {
			t.Fatalf("step %d: pinned x moved to %v", i, p.Position.X)
		}
	}
	if p.Position.Y <= 1 || p.Position.Z <= 1 {
		t.Errorf("free axes should move, got %v", p.Position)
	}
}

func TestVerletPartialPin(t *testing.T) {
	p := particle.New(r3.Vec{}).Pin(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5})
	p.AddForce(r3.Vec{X: 2})

	mustStep(t, newStepper(t, NewVerlet(), []*particle.Particle{p}, 1), 1)

	if p.Position.X != 1 {
		t.Errorf("expected half the delta, got %v", p.Position.X)
	}
}

func TestVerletWorkerCountsAgree(t *testing.T) {
	base := particle.Cloud(97, r3.Vec{}, 10, 7)
	for i, p := range base {
		p.Previous = r3.Add(p.Position, r3.Vec{X: float64(i%5) * 0.1})
		p.AddForce(r3.Vec{Y: float64(i) * 0.01})
	}
	a, b := particle.Clone(base), particle.Clone(base)

	mustStep(t, newStepper(t, NewVerlet(), a, 1), 3)
	mustStep(t, newStepper(t, NewVerlet(), b, 4), 3)

	for i := range a {
		if a[i].Position != b[i].Position {
			t.Fatalf("particle %d: %v vs %v", i, a[i].Position, b[i].Position)
		}
	}
}

func TestVerletSetFrictionRejectsOutOfRange(t *testing.T) {
	v := NewVerlet()
	for _, f := range []float64{-0.1, 1.01, math.NaN()} {
		err := v.SetFriction(f)
		if !errors.Is(err, solver.ErrConfiguration) {
			t.Errorf("SetFriction(%v) = %v, want configuration error", f, err)
		}
	}
	if v.Friction() != DefaultFriction {
		t.Errorf("rejected value changed friction to %v", v.Friction())
	}
}
