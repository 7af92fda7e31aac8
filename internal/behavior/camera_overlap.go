package behavior

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/solver"
)

const (
	DefaultRange     = 200.0
	DefaultMagnitude = 0.1

	// MinAlignment is the camera-vector dot product a pair must exceed.
	// Pairs straddling the viewpoint or at a near-perpendicular bearing
	// from it are left alone.
	MinAlignment = 20.0
)

var errNotPrepared = errors.New("behavior: camera overlap buffers not prepared for this partition")

// CameraOverlap pushes apart particles that appear to overlap when seen
// from a viewpoint. The push lies in the plane perpendicular to the ray
// from the viewpoint to the first particle of each pair.
//
// Every pair (i, j) with i < j is visited by the partition owning i, so a
// step costs n(n-1)/2 pair tests whatever the worker count, and low
// partitions do more of them. Because the partition owning i also pushes j,
// contributions are gathered in per-partition buffers and added to the
// particles' force accumulators in Finalize.
//
// Two particles that coincide in the projected plane give a zero projected
// distance. The division is not guarded: the contribution becomes Inf or
// NaN and surfaces as invalid motion on the next integration.
type CameraOverlap struct {
	viewpoint r3.Vec
	rng       float64
	rng2      float64
	magnitude float64

	scratch [][]r3.Vec
}

func NewCameraOverlap(viewpoint r3.Vec) *CameraOverlap {
	return &CameraOverlap{
		viewpoint: viewpoint,
		rng:       DefaultRange,
		rng2:      DefaultRange * DefaultRange,
		magnitude: DefaultMagnitude,
	}
}

func (c *CameraOverlap) SetViewpoint(v r3.Vec) *CameraOverlap {
	c.viewpoint = v
	return c
}

// SetMagnitude scales the repulsive force. Negative values attract.
func (c *CameraOverlap) SetMagnitude(m float64) *CameraOverlap {
	c.magnitude = m
	return c
}

// SetRange sets the projected separation below which force is applied.
func (c *CameraOverlap) SetRange(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return &solver.ConfigError{Field: "range", Value: r, Reason: "must be a finite non-negative distance"}
	}
	c.rng = r
	c.rng2 = r * r
	return nil
}

func (c *CameraOverlap) Viewpoint() r3.Vec  { return c.viewpoint }
func (c *CameraOverlap) Range() float64     { return c.rng }
func (c *CameraOverlap) Magnitude() float64 { return c.magnitude }
func (c *CameraOverlap) Name() string       { return "camera-overlap" }

// Prepare sizes and clears one force buffer per partition.
func (c *CameraOverlap) Prepare(ps []*particle.Particle, stride int) error {
	if len(c.scratch) != stride {
		c.scratch = make([][]r3.Vec, stride)
	}
	for i := range c.scratch {
		if len(c.scratch[i]) != len(ps) {
			c.scratch[i] = make([]r3.Vec, len(ps))
			continue
		}
		clear(c.scratch[i])
	}
	return nil
}

func (c *CameraOverlap) ApplySlice(ps []*particle.Particle, stride, offset int) error {
	if offset >= len(c.scratch) || len(c.scratch[offset]) != len(ps) {
		return errNotPrepared
	}
	acc := c.scratch[offset]
	eye := c.viewpoint
	r2 := c.rng2
	m := c.magnitude

	n := len(ps)
	for i := offset; i < n; i += stride {
		x1 := ps[i].Position
		c1 := r3.Sub(x1, eye)
		c1len2 := r3.Dot(c1, c1)
		c1len := math.Sqrt(c1len2)

		for k := i + 1; k < n; k++ {
			x2 := ps[k].Position
			if r3.Dot(c1, r3.Sub(x2, eye)) <= MinAlignment {
				continue
			}

			d := r3.Sub(x2, x1)
			u := r3.Dot(d, c1) / c1len2
			d = r3.Sub(d, r3.Scale(u, c1))

			// Squared length over unsquared camera distance: the overlap
			// radius shrinks with distance from the viewpoint.
			dist2 := r3.Dot(d, d) / c1len
			if dist2 < r2 {
				l := r3.Scale(m/dist2, d)
				acc[i] = r3.Sub(acc[i], l)
				acc[k] = r3.Add(acc[k], l)
			}
		}
	}
	return nil
}

// Finalize adds the gathered contributions into the force accumulators.
func (c *CameraOverlap) Finalize(ps []*particle.Particle) error {
	for _, acc := range c.scratch {
		if len(acc) != len(ps) {
			return errNotPrepared
		}
		for i, f := range acc {
			ps[i].Force = r3.Add(ps[i].Force, f)
		}
	}
	return nil
}
