package scene

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
)

var (
	// ErrInvalidState indicates a particle position or force went non-finite.
	ErrInvalidState = errors.New("scene: invalid particle state (NaN or Inf detected)")

	// ErrNoIntegrator indicates a scene built without an integrator stepper.
	ErrNoIntegrator = errors.New("scene: integrator stepper is required")
)

type Metric interface {
	Name() string
	Observe(ps []*particle.Particle, tick int)
	Value() float64
	Reset()
}

type Observer interface {
	OnTick(ps []*particle.Particle, tick int)
}

type RunConfig struct {
	Ticks int
	// RecordEvery stores a frame of positions every n ticks; 0 disables it.
	RecordEvery int
}

type Frame struct {
	Tick      int
	Positions []r3.Vec
}

type Result struct {
	Frames     []Frame
	Metrics    map[string][]float64
	TicksTaken int
}

// TickError wraps a failure with the tick and stepper it happened in.
type TickError struct {
	Tick  int
	Stage string
	Err   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d (%s): %v", e.Tick, e.Stage, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

func snapshot(ps []*particle.Particle, tick int) Frame {
	f := Frame{Tick: tick, Positions: make([]r3.Vec, len(ps))}
	for i, p := range ps {
		f.Positions[i] = p.Position
	}
	return f
}
