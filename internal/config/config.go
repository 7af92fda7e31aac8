package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTicks     = 200
	DefaultFriction  = 0.99
	DefaultRange     = 200.0
	DefaultMagnitude = 0.1
	DefaultCount     = 64
	DefaultSpacing   = 10.0
	DefaultRadius    = 100.0
)

// Vec is a yaml-friendly [x, y, z] triple.
type Vec [3]float64

type Config struct {
	Name            string           `yaml:"name,omitempty"`
	Workers         int              `yaml:"workers"`
	Ticks           int              `yaml:"ticks"`
	Friction        float64          `yaml:"friction"`
	ValidateState   bool             `yaml:"validate_state"`
	CheckPartitions bool             `yaml:"check_partitions,omitempty"`
	CameraOverlap   CameraConfig     `yaml:"camera_overlap"`
	Generator       *GeneratorConfig `yaml:"generator,omitempty"`
	Particles       []ParticleConfig `yaml:"particles,omitempty"`
}

type CameraConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Viewpoint Vec     `yaml:"viewpoint"`
	Range     float64 `yaml:"range"`
	Magnitude float64 `yaml:"magnitude"`
}

// GeneratorConfig describes a generated particle collection. Kind is one of
// "line", "grid" or "cloud".
type GeneratorConfig struct {
	Kind    string  `yaml:"kind"`
	Count   int     `yaml:"count"`
	Columns int     `yaml:"columns,omitempty"`
	Origin  Vec     `yaml:"origin"`
	Spacing float64 `yaml:"spacing,omitempty"`
	Radius  float64 `yaml:"radius,omitempty"`
	Seed    int64   `yaml:"seed,omitempty"`
}

type ParticleConfig struct {
	Position   Vec  `yaml:"position"`
	Velocity   Vec  `yaml:"velocity,omitempty"`
	Pinned     bool `yaml:"pinned,omitempty"`
	Constraint *Vec `yaml:"constraint,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Ticks:         DefaultTicks,
		Friction:      DefaultFriction,
		ValidateState: true,
		CameraOverlap: CameraConfig{
			Enabled:   true,
			Viewpoint: Vec{0, 0, -500},
			Range:     DefaultRange,
			Magnitude: DefaultMagnitude,
		},
		Generator: &GeneratorConfig{
			Kind:   "cloud",
			Count:  DefaultCount,
			Radius: DefaultRadius,
			Seed:   1,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(cfg.Particles) > 0 && !hasGenerator(data) {
		cfg.Generator = nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// hasGenerator reports whether the document sets a generator explicitly, so
// that an explicit particle list replaces the default generator.
func hasGenerator(data []byte) bool {
	var probe struct {
		Generator yaml.Node `yaml:"generator"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Generator.Kind != 0
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be non-negative, got %d", c.Workers)
	}
	if c.Ticks < 0 {
		return fmt.Errorf("config: ticks must be non-negative, got %d", c.Ticks)
	}
	if math.IsNaN(c.Friction) || c.Friction < 0 || c.Friction > 1 {
		return fmt.Errorf("config: friction must be within [0, 1], got %v", c.Friction)
	}
	if c.CameraOverlap.Enabled && (math.IsNaN(c.CameraOverlap.Range) || c.CameraOverlap.Range < 0) {
		return fmt.Errorf("config: camera_overlap.range must be non-negative, got %v", c.CameraOverlap.Range)
	}
	if c.Generator == nil && len(c.Particles) == 0 {
		return fmt.Errorf("config: either generator or particles is required")
	}
	if g := c.Generator; g != nil {
		switch g.Kind {
		case "line", "grid", "cloud":
		default:
			return fmt.Errorf("config: unknown generator kind %q", g.Kind)
		}
		if g.Count < 0 {
			return fmt.Errorf("config: generator.count must be non-negative, got %d", g.Count)
		}
	}
	return nil
}
