package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/fvsim/internal/particle"
)

// KineticEnergy is ½Σ|v|² with v the per-step displacement and unit mass.
// Value reports the most recent observation.
type KineticEnergy struct {
	buf   []float64
	value float64
}

func NewKineticEnergy() *KineticEnergy { return &KineticEnergy{} }

func (k *KineticEnergy) Name() string { return "kinetic_energy" }

func (k *KineticEnergy) Observe(ps []*particle.Particle, tick int) {
	k.buf = k.buf[:0]
	for _, p := range ps {
		k.buf = append(k.buf, r3.Norm2(p.Velocity()))
	}
	k.value = 0.5 * floats.Sum(k.buf)
}

func (k *KineticEnergy) Value() float64 { return k.value }
func (k *KineticEnergy) Reset()         { k.value = 0 }

// Spread is the RMS distance of particles from their centroid.
type Spread struct {
	xs, ys, zs []float64
	value      float64
}

func NewSpread() *Spread { return &Spread{} }

func (s *Spread) Name() string { return "spread" }

func (s *Spread) Observe(ps []*particle.Particle, tick int) {
	if len(ps) == 0 {
		s.value = 0
		return
	}
	s.xs, s.ys, s.zs = s.xs[:0], s.ys[:0], s.zs[:0]
	for _, p := range ps {
		s.xs = append(s.xs, p.Position.X)
		s.ys = append(s.ys, p.Position.Y)
		s.zs = append(s.zs, p.Position.Z)
	}
	c := r3.Vec{X: stat.Mean(s.xs, nil), Y: stat.Mean(s.ys, nil), Z: stat.Mean(s.zs, nil)}

	sum := 0.0
	for _, p := range ps {
		sum += r3.Norm2(r3.Sub(p.Position, c))
	}
	s.value = math.Sqrt(sum / float64(len(ps)))
}

func (s *Spread) Value() float64 { return s.value }
func (s *Spread) Reset()         { s.value = 0 }

// MinSeparation is the smallest world-space distance between any two
// particles. It is O(n²) and meant for small scenes.
type MinSeparation struct {
	value float64
}

func NewMinSeparation() *MinSeparation { return &MinSeparation{value: math.Inf(1)} }

func (m *MinSeparation) Name() string { return "min_separation" }

func (m *MinSeparation) Observe(ps []*particle.Particle, tick int) {
	best := math.Inf(1)
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			best = math.Min(best, r3.Norm(r3.Sub(ps[j].Position, ps[i].Position)))
		}
	}
	m.value = best
}

func (m *MinSeparation) Value() float64 { return m.value }
func (m *MinSeparation) Reset()         { m.value = math.Inf(1) }
