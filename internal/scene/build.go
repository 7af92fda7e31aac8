package scene

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/behavior"
	"github.com/san-kum/fvsim/internal/config"
	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/solver"
)

func vec(v config.Vec) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// BuildParticles creates the collection described by cfg: generated
// particles first, then the explicit list.
func BuildParticles(cfg *config.Config) ([]*particle.Particle, error) {
	var ps []*particle.Particle

	if g := cfg.Generator; g != nil {
		origin := vec(g.Origin)
		spacing := g.Spacing
		if spacing == 0 {
			spacing = config.DefaultSpacing
		}
		switch g.Kind {
		case "line":
			ps = particle.Line(g.Count, origin, spacing)
		case "grid":
			cols := g.Columns
			if cols <= 0 {
				cols = 1
			}
			ps = particle.Grid(cols, (g.Count+cols-1)/cols, origin, spacing)[:g.Count]
		case "cloud":
			radius := g.Radius
			if radius == 0 {
				radius = config.DefaultRadius
			}
			ps = particle.Cloud(g.Count, origin, radius, g.Seed)
		default:
			return nil, fmt.Errorf("scene: unknown generator kind %q", g.Kind)
		}
	}

	for _, pc := range cfg.Particles {
		p := particle.New(vec(pc.Position))
		p.Previous = r3.Sub(p.Position, vec(pc.Velocity))
		if pc.Pinned {
			mult := r3.Vec{}
			if pc.Constraint != nil {
				mult = vec(*pc.Constraint)
			}
			p.Pin(mult)
		}
		ps = append(ps, p)
	}
	return ps, nil
}

// Build assembles a scene from cfg on a shared pool.
func Build(cfg *config.Config, pool *solver.Pool, log *logrus.Logger) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ps, err := BuildParticles(cfg)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = pool.Workers()
	}
	opts := []solver.Option{solver.WithWorkers(workers), solver.WithLogger(log)}
	if cfg.CheckPartitions {
		opts = append(opts, solver.WithPartitionCheck())
	}

	var forces []*solver.Stepper
	if cc := cfg.CameraOverlap; cc.Enabled {
		k := behavior.NewCameraOverlap(vec(cc.Viewpoint)).SetMagnitude(cc.Magnitude)
		if err := k.SetRange(cc.Range); err != nil {
			return nil, err
		}
		st, err := solver.New(pool, k, ps, opts...)
		if err != nil {
			return nil, err
		}
		forces = append(forces, st)
	}

	v := behavior.NewVerlet()
	if err := v.SetFriction(cfg.Friction); err != nil {
		return nil, err
	}
	integ, err := solver.New(pool, v, ps, opts...)
	if err != nil {
		return nil, err
	}

	s, err := New(ps, integ, forces...)
	if err != nil {
		return nil, err
	}
	s.SetValidate(cfg.ValidateState).SetLogger(log)

	log.WithFields(logrus.Fields{
		"particles": len(ps),
		"workers":   workers,
		"forces":    len(forces),
		"checked":   cfg.CheckPartitions,
	}).Info("scene built")
	return s, nil
}

// Viewpoint returns the camera position of the first camera-overlap kernel.
func (s *Scene) Viewpoint() (r3.Vec, bool) {
	for _, f := range s.forces {
		if c, ok := f.Kernel().(*behavior.CameraOverlap); ok {
			return c.Viewpoint(), true
		}
	}
	return r3.Vec{}, false
}
