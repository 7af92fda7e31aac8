package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
)

func TestKineticEnergy(t *testing.T) {
	ps := particle.Line(2, r3.Vec{}, 1)
	ps[0].Previous = r3.Vec{X: -1}
	ps[1].Previous = r3.Vec{X: 1, Y: -2}

	m := NewKineticEnergy()
	m.Observe(ps, 0)

	// ½(1 + 4)
	if math.Abs(m.Value()-2.5) > 1e-12 {
		t.Errorf("expected 2.5, got %v", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Errorf("expected zero after reset, got %v", m.Value())
	}
}

func TestSpread(t *testing.T) {
	ps := []*particle.Particle{
		particle.New(r3.Vec{X: -3}),
		particle.New(r3.Vec{X: 3}),
	}

	m := NewSpread()
	m.Observe(ps, 0)
	if math.Abs(m.Value()-3) > 1e-12 {
		t.Errorf("expected 3, got %v", m.Value())
	}

	m.Observe(nil, 1)
	if m.Value() != 0 {
		t.Errorf("expected 0 for empty collection, got %v", m.Value())
	}
}

func TestMinSeparation(t *testing.T) {
	ps := []*particle.Particle{
		particle.New(r3.Vec{}),
		particle.New(r3.Vec{X: 10}),
		particle.New(r3.Vec{X: 10, Y: 4}),
	}

	m := NewMinSeparation()
	m.Observe(ps, 0)
	if m.Value() != 4 {
		t.Errorf("expected 4, got %v", m.Value())
	}

	m.Reset()
	if !math.IsInf(m.Value(), 1) {
		t.Errorf("expected +Inf after reset, got %v", m.Value())
	}
}

func TestNames(t *testing.T) {
	names := map[string]bool{}
	for _, n := range []string{NewKineticEnergy().Name(), NewSpread().Name(), NewMinSeparation().Name()} {
		if names[n] {
			t.Errorf("duplicate metric name %s", n)
		}
		names[n] = true
	}
}
