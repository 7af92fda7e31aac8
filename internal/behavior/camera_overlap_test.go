package behavior

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/solver"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(b))
}

func TestCameraOverlapDefaults(t *testing.T) {
	c := NewCameraOverlap(r3.Vec{Z: -10})
	if c.Range() != DefaultRange || c.Magnitude() != DefaultMagnitude {
		t.Errorf("unexpected defaults: range %v magnitude %v", c.Range(), c.Magnitude())
	}
	if c.SetMagnitude(0.3).SetViewpoint(r3.Vec{X: 1}) != c {
		t.Error("setters should return the kernel")
	}
	if c.Viewpoint() != (r3.Vec{X: 1}) || c.Magnitude() != 0.3 {
		t.Errorf("setters not applied: %v %v", c.Viewpoint(), c.Magnitude())
	}
}

func TestCameraOverlapAlignmentThreshold(t *testing.T) {
	tests := []struct {
		name   string
		p2     r3.Vec
		pushed bool
	}{
		{"dot equals threshold", r3.Vec{X: 20, Y: 10}, false},
		{"dot above threshold", r3.Vec{X: 21, Y: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := []*particle.Particle{particle.New(r3.Vec{X: 1}), particle.New(tt.p2)}

			c := NewCameraOverlap(r3.Vec{})
			// projected separation is 10, so dist2 = 100 sits just inside range²
			if err := c.SetRange(10.01); err != nil {
				t.Fatal(err)
			}
			mustStep(t, newStepper(t, c, ps, 1), 1)

			if !tt.pushed {
				if ps[0].Force != (r3.Vec{}) || ps[1].Force != (r3.Vec{}) {
					t.Errorf("expected no force, got %v and %v", ps[0].Force, ps[1].Force)
				}
				return
			}

			want := r3.Vec{Y: 0.01}
			if !near(ps[1].Force.Y, want.Y, 1e-12) || ps[1].Force.X != 0 || ps[1].Force.Z != 0 {
				t.Errorf("p2 force = %v, want %v", ps[1].Force, want)
			}
			sum := r3.Add(ps[0].Force, ps[1].Force)
			if r3.Norm(sum) > 1e-15 {
				t.Errorf("forces not equal and opposite: %v + %v", ps[0].Force, ps[1].Force)
			}
		})
	}
}

func TestCameraOverlapOutOfRange(t *testing.T) {
	ps := []*particle.Particle{particle.New(r3.Vec{X: 1}), particle.New(r3.Vec{X: 21, Y: 10})}

	c := NewCameraOverlap(r3.Vec{})
	if err := c.SetRange(10); err != nil {
		t.Fatal(err)
	}
	mustStep(t, newStepper(t, c, ps, 1), 1)

	if ps[0].Force != (r3.Vec{}) {
		t.Errorf("dist2 == range² should not push, got %v", ps[0].Force)
	}
}

func TestCameraOverlapScenario(t *testing.T) {
	eye := r3.Vec{Z: -100}

	t.Run("far particle beyond range", func(t *testing.T) {
		ps := []*particle.Particle{
			particle.New(r3.Vec{}),
			particle.New(r3.Vec{X: 5}),
			particle.New(r3.Vec{X: 5000}),
		}
		mustStep(t, newStepper(t, NewCameraOverlap(eye), ps, 2), 1)

		// pair (0,1): d' = (5,0,0), dist2 = 25/100, s = 0.1/0.25
		if !near(ps[0].Force.X, -2, 1e-12) || !near(ps[1].Force.X, 2, 1e-12) {
			t.Errorf("unexpected close-pair forces %v %v", ps[0].Force, ps[1].Force)
		}
		if ps[2].Force != (r3.Vec{}) {
			t.Errorf("far particle received force %v", ps[2].Force)
		}

		mustStep(t, newStepper(t, NewVerlet(), ps, 2), 1)

		if !near(ps[0].Position.X, -2, 1e-12) || !near(ps[1].Position.X, 7, 1e-12) {
			t.Errorf("close pair not pushed apart: %v %v", ps[0].Position, ps[1].Position)
		}
		if ps[2].Position != (r3.Vec{X: 5000}) {
			t.Errorf("far particle moved to %v", ps[2].Position)
		}
	})

	t.Run("distance falloff engages at 1000", func(t *testing.T) {
		ps := []*particle.Particle{
			particle.New(r3.Vec{}),
			particle.New(r3.Vec{X: 5}),
			particle.New(r3.Vec{X: 1000}),
		}
		mustStep(t, newStepper(t, NewCameraOverlap(eye), ps, 3), 1)

		// dist2 for (0,2) is 1e6/100, inside range² = 4e4, adding 0.01.
		if !near(ps[0].Force.X, -2.01, 1e-12) {
			t.Errorf("p0 force = %v, want x = -2.01", ps[0].Force)
		}
		if n := r3.Norm(ps[2].Force); n == 0 || n > 0.05 {
			t.Errorf("p2 force magnitude %v, want small but nonzero", n)
		}
		total := r3.Add(r3.Add(ps[0].Force, ps[1].Force), ps[2].Force)
		if r3.Norm(total) > 1e-12 {
			t.Errorf("net force %v, want zero", total)
		}
	})
}

func TestCameraOverlapWorkerCountsAgree(t *testing.T) {
	base := particle.Cloud(200, r3.Vec{}, 100, 11)
	a, b := particle.Clone(base), particle.Clone(base)
	eye := r3.Vec{Z: -500}

	mustStep(t, newStepper(t, NewCameraOverlap(eye), a, 1), 1)
	mustStep(t, newStepper(t, NewCameraOverlap(eye), b, 4), 1)

	pushed := 0
	for i := range a {
		fa, fb := a[i].Force, b[i].Force
		if !near(fb.X, fa.X, 1e-9) || !near(fb.Y, fa.Y, 1e-9) || !near(fb.Z, fa.Z, 1e-9) {
			t.Fatalf("particle %d: %v with 1 worker, %v with 4", i, fa, fb)
		}
		if fa != (r3.Vec{}) {
			pushed++
		}
	}
	if pushed == 0 {
		t.Error("expected the cloud to produce some repulsion")
	}
}

func TestCameraOverlapAccumulatesIntoExistingForce(t *testing.T) {
	ps := []*particle.Particle{particle.New(r3.Vec{}), particle.New(r3.Vec{X: 5})}
	ps[0].AddForce(r3.Vec{Y: 1})

	mustStep(t, newStepper(t, NewCameraOverlap(r3.Vec{Z: -100}), ps, 2), 1)

	if !near(ps[0].Force.X, -2, 1e-12) || ps[0].Force.Y != 1 {
		t.Errorf("existing force not preserved: %v", ps[0].Force)
	}
}

func TestCameraOverlapCoincidentSingularity(t *testing.T) {
	ps := []*particle.Particle{particle.New(r3.Vec{X: 1}), particle.New(r3.Vec{X: 1})}

	mustStep(t, newStepper(t, NewCameraOverlap(r3.Vec{Z: -100}), ps, 1), 1)

	if ps[0].Valid() || ps[1].Valid() {
		t.Errorf("coincident particles should carry a non-finite force, got %v %v", ps[0].Force, ps[1].Force)
	}
}

func TestCameraOverlapRequiresPrepare(t *testing.T) {
	ps := particle.Line(3, r3.Vec{}, 1)
	err := NewCameraOverlap(r3.Vec{Z: -10}).ApplySlice(ps, 1, 0)
	if !errors.Is(err, errNotPrepared) {
		t.Errorf("expected errNotPrepared, got %v", err)
	}
}

func TestCameraOverlapSetRangeRejectsInvalid(t *testing.T) {
	c := NewCameraOverlap(r3.Vec{})
	for _, r := range []float64{-1, math.NaN(), math.Inf(1)} {
		if err := c.SetRange(r); !errors.Is(err, solver.ErrConfiguration) {
			t.Errorf("SetRange(%v) = %v, want configuration error", r, err)
		}
	}
	if c.Range() != DefaultRange {
		t.Errorf("rejected value changed range to %v", c.Range())
	}
}

func BenchmarkCameraOverlap(b *testing.B) {
	ps := particle.Cloud(1000, r3.Vec{}, 200, 1)
	s := newStepper(b, NewCameraOverlap(r3.Vec{Z: -800}), ps, solver.DefaultWorkers())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Step(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkVerlet(b *testing.B) {
	ps := particle.Cloud(10000, r3.Vec{}, 200, 1)
	s := newStepper(b, NewVerlet(), ps, solver.DefaultWorkers())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
