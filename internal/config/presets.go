package config

import "sort"

var Presets = map[string]*Config{
	// Two overlapping points and one far away, seen from in front.
	"triad": {
		Ticks: 100, Friction: DefaultFriction, ValidateState: true,
		CameraOverlap: CameraConfig{Enabled: true, Viewpoint: Vec{0, 0, -100}, Range: DefaultRange, Magnitude: DefaultMagnitude},
		Particles: []ParticleConfig{
			{Position: Vec{0, 0, 0}},
			{Position: Vec{5, 0, 0}},
			{Position: Vec{5000, 0, 0}},
		},
	},
	"line": {
		Ticks: 300, Friction: DefaultFriction, ValidateState: true,
		CameraOverlap: CameraConfig{Enabled: true, Viewpoint: Vec{0, 0, -400}, Range: DefaultRange, Magnitude: DefaultMagnitude},
		Generator:     &GeneratorConfig{Kind: "line", Count: 32, Origin: Vec{-40, 0, 0}, Spacing: 2.5},
	},
	"cloud": {
		Ticks: 300, Friction: 0.95, ValidateState: true,
		CameraOverlap: CameraConfig{Enabled: true, Viewpoint: Vec{0, 0, -600}, Range: DefaultRange, Magnitude: DefaultMagnitude},
		Generator:     &GeneratorConfig{Kind: "cloud", Count: 256, Radius: 120, Seed: 7},
	},
	"pinned-grid": {
		Ticks: 200, Friction: DefaultFriction, ValidateState: true,
		CameraOverlap: CameraConfig{Enabled: true, Viewpoint: Vec{20, 20, -300}, Range: 120, Magnitude: 0.05},
		Generator:     &GeneratorConfig{Kind: "grid", Count: 64, Columns: 8, Spacing: 6},
		Particles: []ParticleConfig{
			{Position: Vec{-30, -30, 0}, Pinned: true, Constraint: &Vec{0, 0, 0}},
			{Position: Vec{-30, 60, 0}, Pinned: true, Constraint: &Vec{0, 1, 0}},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *p
	c.Name = name
	if p.Generator != nil {
		g := *p.Generator
		c.Generator = &g
	}
	c.Particles = append([]ParticleConfig(nil), p.Particles...)
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
