package export

import (
	"bufio"
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/scene"
	"github.com/san-kum/fvsim/internal/viz"
)

const (
	background = "#0a0a0a"
	dotColor   = "#00ff88"
	pathColor  = "#00ccff"
)

func header(w io.Writer, width, height float64) {
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}

// CanvasSVG draws every lit dot of canvas as a circle, scale pixels apart.
func CanvasSVG(w io.Writer, canvas *viz.Canvas, scale float64) error {
	bw := bufio.NewWriter(w)
	dw, dh := canvas.Dots()
	header(bw, float64(dw)*scale, float64(dh)*scale)
	fmt.Fprintf(bw, "<g fill=\"%s\">\n", dotColor)
	r := scale * 0.4
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(bw, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}
	bw.WriteString("</g>\n</svg>\n")
	return bw.Flush()
}

func toParticles(positions []r3.Vec) []*particle.Particle {
	ps := make([]*particle.Particle, len(positions))
	for i, p := range positions {
		ps[i] = particle.New(p)
	}
	return ps
}

// FrameSVG renders one recorded frame as seen through proj onto a cols x rows
// braille canvas.
func FrameSVG(w io.Writer, frame scene.Frame, proj *viz.Projector, cols, rows int, scale float64) error {
	c := viz.NewCanvas(cols, rows)
	proj.Render(c, toParticles(frame.Positions))
	return CanvasSVG(w, c, scale)
}

// TrajectorySVG draws the projected path of every particle across frames
// on a width x height image. A path breaks wherever the particle leaves
// the view.
func TrajectorySVG(w io.Writer, frames []scene.Frame, proj *viz.Projector, width, height int) error {
	if len(frames) == 0 {
		return fmt.Errorf("export: no frames to draw")
	}
	bw := bufio.NewWriter(w)
	header(bw, float64(width), float64(height))
	fmt.Fprintf(bw, "<g fill=\"none\" stroke=\"%s\" stroke-width=\"1\">\n", pathColor)

	for i := range frames[0].Positions {
		open := false
		for _, f := range frames {
			if i >= len(f.Positions) {
				break
			}
			x, y, ok := proj.Project(f.Positions[i])
			switch {
			case !ok:
				if open {
					bw.WriteString("\"/>\n")
					open = false
				}
			case !open:
				fmt.Fprintf(bw, "<path d=\"M%d,%d", x, y)
				open = true
			default:
				fmt.Fprintf(bw, " L%d,%d", x, y)
			}
		}
		if open {
			bw.WriteString("\"/>\n")
		}
	}

	fmt.Fprintf(bw, "</g>\n<g fill=\"%s\">\n", dotColor)
	for _, p := range frames[len(frames)-1].Positions {
		if x, y, ok := proj.Project(p); ok {
			fmt.Fprintf(bw, "<circle cx=\"%d\" cy=\"%d\" r=\"1.5\"/>\n", x, y)
		}
	}
	bw.WriteString("</g>\n</svg>\n")
	return bw.Flush()
}

// FitProjector aims a width x height projector at the centroid of the last
// frame from eye and fits it to every recorded position.
func FitProjector(frames []scene.Frame, eye r3.Vec, width, height int) *viz.Projector {
	var all []r3.Vec
	for _, f := range frames {
		all = append(all, f.Positions...)
	}
	ps := toParticles(all)
	target := r3.Vec{}
	if len(frames) > 0 {
		target = particle.Centroid(toParticles(frames[len(frames)-1].Positions))
	}
	proj := viz.NewProjector(eye, target, width, height)
	proj.Fit(ps)
	return proj
}
