package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/particle"
	"github.com/san-kum/fvsim/internal/scene"
)

const (
	defaultCols     = 60
	defaultRows     = 20
	statsWidth      = 38
	historyCapacity = 600
	zoomStep        = 1.25
)

type TickMsg time.Time

// Model is the live view of a running scene. Every TickMsg advances the
// scene by one tick while running and redraws the particles as seen from
// the scene's camera.
type Model struct {
	scene   *scene.Scene
	name    string
	fps     int
	canvas  *Canvas
	proj    *Projector
	eye     r3.Vec
	hasEye  bool
	running bool
	visible int
	history map[string][]float64
	err     error
	elapsed time.Duration
}

// NewModel prepares a live view of s. fps below one defaults to 30.
func NewModel(s *scene.Scene, name string, fps int) Model {
	if fps < 1 {
		fps = 30
	}
	m := Model{
		scene:   s,
		name:    name,
		fps:     fps,
		canvas:  NewCanvas(defaultCols, defaultRows),
		running: true,
		history: make(map[string][]float64),
	}
	m.eye, m.hasEye = s.Viewpoint()
	w, h := m.canvas.Dots()
	m.proj = NewProjector(m.eye, m.eye, w, h)
	m.aim()
	m.proj.Fit(s.Particles())
	return m
}

// aim points the camera at the centroid of the scene. Scenes without a
// viewpoint are viewed from a distance proportional to their size.
func (m *Model) aim() {
	ps := m.scene.Particles()
	c := particle.Centroid(ps)
	eye := m.eye
	if !m.hasEye {
		reach := 1.0
		for _, p := range ps {
			if d := r3.Norm(r3.Sub(p.Position, c)); d > reach && d < 1e12 {
				reach = d
			}
		}
		eye = r3.Add(c, r3.Vec{Z: -3 * reach})
	}
	m.proj.LookAt(eye, c)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running && m.err == nil
		case "s", "n":
			if !m.running {
				m.step()
			}
		case "+", "=":
			m.proj.Zoom(zoomStep)
		case "-", "_":
			m.proj.Zoom(1 / zoomStep)
		case "f":
			m.aim()
			m.proj.Fit(m.scene.Particles())
		}
	case tea.WindowSizeMsg:
		cols := max(msg.Width-statsWidth-6, 10)
		rows := max(msg.Height-4, 5)
		m.canvas = NewCanvas(cols, rows)
		w, h := m.canvas.Dots()
		fov := m.proj.Fov()
		m.proj = NewProjector(m.eye, m.eye, w, h)
		m.aim()
		m.proj.SetFov(fov)
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, m.tick()
	}
	return m, nil
}

// step advances the scene once and records every metric value.
func (m *Model) step() {
	start := time.Now()
	if err := m.scene.Tick(); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.elapsed = time.Since(start)
	for _, mt := range m.scene.Metrics() {
		h := append(m.history[mt.Name()], mt.Value())
		if len(h) > historyCapacity {
			h = h[len(h)-historyCapacity:]
		}
		m.history[mt.Name()] = h
	}
}

func (m Model) View() string {
	m.visible = m.proj.Render(m.canvas, m.scene.Particles())
	canvasView := panelStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(titleStyle.Render(strings.ToUpper(m.name)) + "\n")
	switch {
	case m.err != nil:
		s.WriteString(statusFailed.Render("FAILED") + "\n")
	case m.running:
		s.WriteString(statusRunning.Render("RUNNING") + "\n")
	default:
		s.WriteString(statusPaused.Render("PAUSED") + "\n")
	}
	s.WriteString("\n")

	ps := m.scene.Particles()
	s.WriteString(labelStyle.Render("Tick") + valueStyle.Render(fmt.Sprintf("%d", m.scene.TickCount())) + "\n")
	s.WriteString(labelStyle.Render("Particles") + valueStyle.Render(fmt.Sprintf("%d (%d shown)", len(ps), m.visible)) + "\n")
	if len(ps) > 0 {
		s.WriteString(labelStyle.Render("In view") + ProgressBar(float64(m.visible)/float64(len(ps)), statsWidth-16) + "\n")
	}
	s.WriteString(labelStyle.Render("Workers") + valueStyle.Render(fmt.Sprintf("%d", m.scene.Integrator().Workers())) + "\n")
	s.WriteString(labelStyle.Render("Step") + valueStyle.Render(m.elapsed.String()) + "\n")
	s.WriteString(labelStyle.Render("FOV") + valueStyle.Render(fmt.Sprintf("%.1f°", m.proj.Fov())) + "\n")
	if m.hasEye {
		s.WriteString(labelStyle.Render("Camera") + valueStyle.Render(fmt.Sprintf("(%.0f, %.0f, %.0f)", m.eye.X, m.eye.Y, m.eye.Z)) + "\n")
	}

	for _, mt := range m.scene.Metrics() {
		h := m.history[mt.Name()]
		s.WriteString("\n" + labelStyle.Render(mt.Name()) + valueStyle.Render(fmt.Sprintf("%.4g", mt.Value())) + "\n")
		s.WriteString(Sparkline(h, statsWidth-4) + "\n")
	}

	if m.err != nil {
		s.WriteString("\n" + statusFailed.Width(statsWidth-4).Render(m.err.Error()) + "\n")
	}
	s.WriteString(hintStyle.Render("\nspace:pause s:step +/-:zoom f:fit q:quit"))

	stats := panelStyle.Width(statsWidth).Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, stats)
}

// Run shows s in the terminal until the user quits.
func Run(s *scene.Scene, name string, fps int) error {
	_, err := tea.NewProgram(NewModel(s, name, fps), tea.WithAltScreen()).Run()
	return err
}
