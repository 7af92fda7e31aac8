package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/fvsim/internal/config"
	"github.com/san-kum/fvsim/internal/metrics"
	"github.com/san-kum/fvsim/internal/scene"
	"github.com/san-kum/fvsim/internal/solver"
)

// Scenario is a scripted sequence of scene runs.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`

	dir string
}

// Step selects a scene by preset or config file and overrides parts of it.
// Config paths are relative to the scenario file.
type Step struct {
	Preset    string      `yaml:"preset,omitempty"`
	Config    string      `yaml:"config,omitempty"`
	Ticks     int         `yaml:"ticks,omitempty"`
	Workers   int         `yaml:"workers,omitempty"`
	Friction  *float64    `yaml:"friction,omitempty"`
	Viewpoint *config.Vec `yaml:"viewpoint,omitempty"`
	Range     *float64    `yaml:"range,omitempty"`
	Magnitude *float64    `yaml:"magnitude,omitempty"`
	SaveAs    string      `yaml:"save_as,omitempty"`
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Name   string
	Config *config.Config
	Result *scene.Result
	Scene  *scene.Scene
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("automation: parse %s: %w", path, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("automation: scenario %s has no steps", path)
	}
	sc.dir = filepath.Dir(path)
	return &sc, nil
}

// Resolve returns the config a step runs with.
func (sc *Scenario) Resolve(i int) (*config.Config, error) {
	st := sc.Steps[i]
	var cfg *config.Config
	switch {
	case st.Config != "":
		path := st.Config
		if !filepath.IsAbs(path) && sc.dir != "" {
			path = filepath.Join(sc.dir, path)
		}
		c, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	case st.Preset != "":
		if cfg = config.GetPreset(st.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q", st.Preset)
		}
	default:
		cfg = config.DefaultConfig()
	}

	if st.Ticks > 0 {
		cfg.Ticks = st.Ticks
	}
	if st.Workers > 0 {
		cfg.Workers = st.Workers
	}
	if st.Friction != nil {
		cfg.Friction = *st.Friction
	}
	if st.Viewpoint != nil {
		cfg.CameraOverlap.Enabled = true
		cfg.CameraOverlap.Viewpoint = *st.Viewpoint
	}
	if st.Range != nil {
		cfg.CameraOverlap.Range = *st.Range
	}
	if st.Magnitude != nil {
		cfg.CameraOverlap.Magnitude = *st.Magnitude
	}

	switch {
	case st.SaveAs != "":
		cfg.Name = st.SaveAs
	case cfg.Name == "":
		cfg.Name = fmt.Sprintf("%s-%d", sc.Name, i+1)
	}
	return cfg, cfg.Validate()
}

// RunScenario runs every step in order on pool. The first failing step
// stops the scenario; results of the steps before it are returned.
func RunScenario(ctx context.Context, sc *Scenario, pool *solver.Pool, log *logrus.Logger, recordEvery int) ([]StepResult, error) {
	results := make([]StepResult, 0, len(sc.Steps))
	for i := range sc.Steps {
		cfg, err := sc.Resolve(i)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		log.WithFields(logrus.Fields{"step": i + 1, "of": len(sc.Steps), "scene": cfg.Name}).Info("running scenario step")

		s, err := scene.Build(cfg, pool, log)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		s.AddMetric(metrics.NewKineticEnergy())
		s.AddMetric(metrics.NewSpread())

		result, err := s.Run(ctx, scene.RunConfig{Ticks: cfg.Ticks, RecordEvery: recordEvery})
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, StepResult{Name: cfg.Name, Config: cfg, Result: result, Scene: s})
	}
	return results, nil
}

// Sweep runs Base once per evenly spaced value of Param in [Min, Max].
type Sweep struct {
	Base  *config.Config
	Param string
	Min   float64
	Max   float64
	Steps int
	Ticks int
}

type SweepResult struct {
	Value         float64
	KineticEnergy float64
	Spread        float64
	Stable        bool
}

// SweepParams lists the parameters a Sweep can vary.
var SweepParams = []string{"friction", "range", "magnitude", "workers"}

func apply(cfg *config.Config, param string, v float64) error {
	switch param {
	case "friction":
		cfg.Friction = v
	case "range":
		cfg.CameraOverlap.Range = v
	case "magnitude":
		cfg.CameraOverlap.Magnitude = v
	case "workers":
		cfg.Workers = int(v)
	default:
		return fmt.Errorf("automation: cannot sweep %q (one of %v)", param, SweepParams)
	}
	return nil
}

func RunSweep(ctx context.Context, sw *Sweep, pool *solver.Pool, log *logrus.Logger) ([]SweepResult, error) {
	if sw.Steps < 1 {
		return nil, fmt.Errorf("automation: sweep needs at least one step")
	}
	step := 0.0
	if sw.Steps > 1 {
		step = (sw.Max - sw.Min) / float64(sw.Steps-1)
	}

	results := make([]SweepResult, 0, sw.Steps)
	for i := 0; i < sw.Steps; i++ {
		v := sw.Min + float64(i)*step
		cfg := *sw.Base
		if err := apply(&cfg, sw.Param, v); err != nil {
			return nil, err
		}
		if sw.Ticks > 0 {
			cfg.Ticks = sw.Ticks
		}
		cfg.ValidateState = false

		s, err := scene.Build(&cfg, pool, log)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sw.Param, v, err)
		}
		ke, spread := metrics.NewKineticEnergy(), metrics.NewSpread()
		s.AddMetric(ke)
		s.AddMetric(spread)
		if _, err := s.Run(ctx, scene.RunConfig{Ticks: cfg.Ticks}); err != nil {
			return results, fmt.Errorf("%s=%g: %w", sw.Param, v, err)
		}

		stable := true
		for _, p := range s.Particles() {
			if !p.Valid() {
				stable = false
				break
			}
		}
		results = append(results, SweepResult{
			Value:         v,
			KineticEnergy: ke.Value(),
			Spread:        spread.Value(),
			Stable:        stable,
		})
		log.WithFields(logrus.Fields{"param": sw.Param, "value": v, "stable": stable}).Debug("sweep point done")
	}
	return results, nil
}
