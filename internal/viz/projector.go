package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
)

const (
	defaultFov = 60.0
	minFov     = 1.0
	maxFov     = 170.0
	nearPlane  = 0.1
	farPlane   = 1e7
)

// Projector maps world positions onto a w x h dot raster as seen from a
// pinhole camera at eye looking at target.
type Projector struct {
	eye, target mgl64.Vec3
	fov         float64
	w, h        int
	view, proj  mgl64.Mat4
}

func toMgl(v r3.Vec) mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func NewProjector(eye, target r3.Vec, w, h int) *Projector {
	p := &Projector{fov: defaultFov, w: max(w, 1), h: max(h, 1)}
	p.LookAt(eye, target)
	return p
}

// LookAt moves the camera. A target equal to eye looks down +Z.
func (p *Projector) LookAt(eye, target r3.Vec) {
	p.eye, p.target = toMgl(eye), toMgl(target)
	if p.eye.ApproxEqual(p.target) {
		p.target = p.eye.Add(mgl64.Vec3{0, 0, 1})
	}
	up := mgl64.Vec3{0, 1, 0}
	fwd := p.target.Sub(p.eye).Normalize()
	if math.Abs(fwd.Dot(up)) > 0.999 {
		up = mgl64.Vec3{0, 0, 1}
	}
	p.view = mgl64.LookAtV(p.eye, p.target, up)
	p.update()
}

func (p *Projector) update() {
	p.proj = mgl64.Perspective(mgl64.DegToRad(p.fov), float64(p.w)/float64(p.h), nearPlane, farPlane)
}

// Fov returns the vertical field of view in degrees.
func (p *Projector) Fov() float64 { return p.fov }

func (p *Projector) SetFov(deg float64) {
	p.fov = math.Max(minFov, math.Min(maxFov, deg))
	p.update()
}

// Zoom narrows the field of view by factor; factors below one widen it.
func (p *Projector) Zoom(factor float64) {
	if factor > 0 {
		p.SetFov(p.fov / factor)
	}
}

// Fit widens or narrows the field of view so every particle in front of
// the camera lands inside the raster, with a small margin.
func (p *Projector) Fit(ps []*particle.Particle) {
	aspect := float64(p.w) / float64(p.h)
	widest := 0.0
	for _, pt := range ps {
		e := p.view.Mul4x1(toMgl(pt.Position).Vec4(1))
		depth := -e.Z()
		if depth <= nearPlane || math.IsNaN(depth) {
			continue
		}
		t := math.Max(math.Abs(e.Y()), math.Abs(e.X())/aspect) / depth
		widest = math.Max(widest, t)
	}
	if widest == 0 {
		p.SetFov(defaultFov)
		return
	}
	p.SetFov(mgl64.RadToDeg(2 * math.Atan(widest*1.1)))
}

// Project returns the raster dot of v. ok is false when v is behind the
// camera, not finite, or falls outside the raster.
func (p *Projector) Project(v r3.Vec) (x, y int, ok bool) {
	obj := toMgl(v)
	if p.view.Mul4x1(obj.Vec4(1)).Z() > -nearPlane {
		return 0, 0, false
	}
	win := mgl64.Project(obj, p.view, p.proj, 0, 0, p.w, p.h)
	if math.IsNaN(win.X()) || math.IsNaN(win.Y()) {
		return 0, 0, false
	}
	x = int(math.Floor(win.X()))
	y = p.h - 1 - int(math.Floor(win.Y()))
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return 0, 0, false
	}
	return x, y, true
}

// Render clears c and plots every visible particle. Pinned particles are
// drawn as crosses. It returns how many particles were visible.
func (p *Projector) Render(c *Canvas, ps []*particle.Particle) int {
	c.Clear()
	visible := 0
	for _, pt := range ps {
		x, y, ok := p.Project(pt.Position)
		if !ok {
			continue
		}
		visible++
		if pt.Pinned {
			c.DrawCross(x, y)
		} else {
			c.Set(x, y)
		}
	}
	return visible
}
