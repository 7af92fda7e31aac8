// Package viz draws particle scenes in the terminal.
//
// A [Projector] maps world positions through a perspective camera onto a
// braille [Canvas], where every character cell holds 2x4 dots. [Model] is a
// Bubble Tea program that ticks a scene and redraws it from the scene's
// camera viewpoint; [PlotMetrics] renders recorded metric histories as
// line charts for batch runs.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	S     - Single tick while paused
//	+/-   - Zoom in/out
//	F     - Refit the camera to the particles
//	Q     - Quit
package viz
