package scene

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/solver"
)

// Scene is the host loop around a particle collection: every tick it steps
// the force steppers in order and then the integrator, which is the
// ordering the solver package leaves to its caller.
type Scene struct {
	particles  []*particle.Particle
	forces     []*solver.Stepper
	integrator *solver.Stepper
	metrics    []Metric
	observers  []Observer
	validate   bool
	tick       int
	log        *logrus.Logger
}

func New(ps []*particle.Particle, integrator *solver.Stepper, forces ...*solver.Stepper) (*Scene, error) {
	if integrator == nil {
		return nil, ErrNoIntegrator
	}
	return &Scene{
		particles:  ps,
		forces:     forces,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		log:        logrus.StandardLogger(),
	}, nil
}

func (s *Scene) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Scene) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// SetValidate makes Tick fail with ErrInvalidState once any particle
// becomes non-finite.
func (s *Scene) SetValidate(v bool) *Scene {
	s.validate = v
	return s
}

func (s *Scene) SetLogger(log *logrus.Logger) *Scene {
	s.log = log
	return s
}

func (s *Scene) Particles() []*particle.Particle { return s.particles }
func (s *Scene) Forces() []*solver.Stepper       { return s.forces }
func (s *Scene) Integrator() *solver.Stepper     { return s.integrator }
func (s *Scene) TickCount() int                  { return s.tick }
func (s *Scene) Metrics() []Metric               { return s.metrics }

// Tick advances the scene by one step.
func (s *Scene) Tick() error {
	for _, f := range s.forces {
		if err := f.Step(); err != nil {
			return &TickError{Tick: s.tick, Stage: stageName(f), Err: err}
		}
	}
	if err := s.integrator.Step(); err != nil {
		return &TickError{Tick: s.tick, Stage: stageName(s.integrator), Err: err}
	}

	if s.validate {
		for _, p := range s.particles {
			if !p.Valid() {
				return &TickError{Tick: s.tick, Stage: "validate", Err: ErrInvalidState}
			}
		}
	}

	s.tick++
	for _, m := range s.metrics {
		m.Observe(s.particles, s.tick)
	}
	for _, o := range s.observers {
		o.OnTick(s.particles, s.tick)
	}
	return nil
}

// Run ticks the scene cfg.Ticks times. Cancellation is checked between
// ticks; a tick in progress always completes. On error the partial result
// is returned alongside it.
func (s *Scene) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	result := &Result{
		Frames:  make([]Frame, 0),
		Metrics: make(map[string][]float64, len(s.metrics)),
	}
	for _, m := range s.metrics {
		m.Reset()
		result.Metrics[m.Name()] = make([]float64, 0, cfg.Ticks)
	}
	if cfg.RecordEvery > 0 {
		result.Frames = append(result.Frames, snapshot(s.particles, s.tick))
	}

	for i := 0; i < cfg.Ticks; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.Tick(); err != nil {
			s.log.WithError(err).Errorf("scene stopped after %d ticks", result.TicksTaken)
			return result, err
		}
		result.TicksTaken++

		for _, m := range s.metrics {
			result.Metrics[m.Name()] = append(result.Metrics[m.Name()], m.Value())
		}
		if cfg.RecordEvery > 0 && s.tick%cfg.RecordEvery == 0 {
			result.Frames = append(result.Frames, snapshot(s.particles, s.tick))
		}
	}

	s.log.WithFields(logrus.Fields{
		"ticks":     result.TicksTaken,
		"particles": len(s.particles),
	}).Debug("scene run complete")
	return result, nil
}

func stageName(s *solver.Stepper) string {
	if n, ok := s.Kernel().(solver.Named); ok {
		return n.Name()
	}
	return "kernel"
}
