package viz

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
)

func TestProjectorCentre(t *testing.T) {
	p := NewProjector(r3.Vec{Z: -100}, r3.Vec{}, 40, 40)
	x, y, ok := p.Project(r3.Vec{})
	if !ok {
		t.Fatal("target not visible")
	}
	if absInt(x-20) > 1 || absInt(y-20) > 1 {
		t.Errorf("target projected to (%d, %d), expected the centre", x, y)
	}
}

func TestProjectorBehindCamera(t *testing.T) {
	p := NewProjector(r3.Vec{Z: -100}, r3.Vec{}, 40, 40)
	if _, _, ok := p.Project(r3.Vec{Z: -200}); ok {
		t.Error("point behind the camera reported visible")
	}
	if _, _, ok := p.Project(r3.Vec{X: math.NaN()}); ok {
		t.Error("NaN point reported visible")
	}
}

func TestProjectorOrientation(t *testing.T) {
	p := NewProjector(r3.Vec{Z: -100}, r3.Vec{}, 40, 40)
	_, yUp, ok1 := p.Project(r3.Vec{Y: 10})
	_, yDown, ok2 := p.Project(r3.Vec{Y: -10})
	if !ok1 || !ok2 {
		t.Fatal("points not visible")
	}
	if yUp >= yDown {
		t.Errorf("world up should be raster up: %d vs %d", yUp, yDown)
	}
}

func TestProjectorFit(t *testing.T) {
	ps := []*particle.Particle{
		particle.New(r3.Vec{X: -500}),
		particle.New(r3.Vec{X: 500}),
		particle.New(r3.Vec{Y: 300}),
	}
	p := NewProjector(r3.Vec{Z: -100}, r3.Vec{}, 60, 30)
	for _, pt := range ps {
		if _, _, ok := p.Project(pt.Position); ok {
			t.Fatalf("%v visible before fit", pt.Position)
		}
	}

	p.Fit(ps)
	for _, pt := range ps {
		if _, _, ok := p.Project(pt.Position); !ok {
			t.Errorf("%v not visible after fit (fov %.1f)", pt.Position, p.Fov())
		}
	}

	c := NewCanvas(30, 8)
	if n := p.Render(c, ps); n != 3 || c.Lit() != 3 {
		t.Errorf("expected 3 particles drawn, got %d visible and %d dots", n, c.Lit())
	}
}

func TestProjectorDegenerateTarget(t *testing.T) {
	p := NewProjector(r3.Vec{}, r3.Vec{}, 10, 10)
	if _, _, ok := p.Project(r3.Vec{Z: 10}); !ok {
		t.Error("expected the camera to look down +Z")
	}
}

func TestPlotMetrics(t *testing.T) {
	out := PlotMetrics(map[string][]float64{
		"spread":         {1, 2, 3, 4},
		"kinetic_energy": {math.NaN()},
	}, 20, 4)
	if !strings.Contains(out, "spread") || !strings.Contains(out, "kinetic_energy: no data") {
		t.Errorf("unexpected plot output:\n%s", out)
	}
	if strings.Index(out, "kinetic_energy") > strings.Index(out, "spread") {
		t.Error("expected metrics in name order")
	}
}
