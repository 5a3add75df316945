package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/clothsim/internal/collision"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/logger"
	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/particle"
	"github.com/san-kum/clothsim/internal/scenario"
	"github.com/san-kum/clothsim/internal/sim"
	"github.com/san-kum/clothsim/internal/team"
	"go.uber.org/zap"
)

const (
	historyCapacity = 600
	panelWidth      = 48
	defaultCols     = 60
	defaultRows     = 22
)

var windForce = mgl32.Vec3{4, 0, 1.5}

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// frame is one recorded step kept for replay.
type frame struct {
	pos    sim.Snapshot
	shapes []Sphere
	time   float64
	energy float64
}

// Model is the live view of one scenario.
type Model struct {
	cfg      *config.Config
	registry *scenario.Registry
	name     string
	scene    *scenario.Scene
	dt       float32
	err      error

	canvas   *Canvas
	wire     Wireframe
	viewport Viewport
	camera   *Camera
	view3D   bool

	stretch     *metrics.Stretch
	penetration *metrics.Penetration

	running   bool
	wind      bool
	collision bool
	energy    []float64
	history   []frame
	playHead  int
	recorder  *Recorder
	gifPath   string
	showHelp  bool
}

// NewModel builds the named scenario. The view starts running.
func NewModel(cfg *config.Config, registry *scenario.Registry, name string) (Model, error) {
	if registry == nil {
		registry = scenario.NewRegistry()
	}
	m := Model{
		cfg:       cfg,
		registry:  registry,
		name:      name,
		dt:        cfg.Solver.Dt,
		canvas:    NewCanvas(defaultCols, defaultRows),
		running:   true,
		collision: true,
		playHead:  -1,
		gifPath:   "clothsim.gif",
	}
	if err := m.build(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func (m *Model) build() error {
	sc, err := m.registry.Build(m.name, m.cfg)
	if err != nil {
		return err
	}
	if m.scene != nil {
		m.scene.World.Close()
	}
	m.scene = sc
	m.stretch = metrics.NewStretch(sc.Edges)
	m.penetration = metrics.NewPenetration(sc.World.Colliders)
	m.err = nil
	m.energy = m.energy[:0]
	m.history = m.history[:0]
	m.playHead = -1

	var cloth []mgl32.Vec3
	s := sc.World.Particles
	flags := s.Flags()
	for i := 0; i < s.Len(); i++ {
		if flags[i].Has(particle.FlagEnable) && !flags[i].Has(particle.FlagCollider) {
			cloth = append(cloth, s.Pos[i])
		}
	}
	m.viewport = FitViewport(cloth, 0.6)
	center := m.viewport.Min.Add(m.viewport.Max).Mul(0.5)
	m.camera = NewCamera(mgl32.Vec3{center.X(), center.Y(), 0})
	m.record()
	return nil
}

// Close releases the scene.
func (m Model) Close() {
	if m.scene != nil {
		m.scene.World.Close()
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		if m.running {
			if m.playHead == -1 {
				m.step()
			} else {
				m.scrub(1)
			}
		}
		m.draw()
		if m.recorder != nil {
			m.recorder.Capture(m.canvas)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) resize(w, h int) {
	cols := max(20, w-panelWidth-4)
	rows := max(10, h-4)
	m.canvas = NewCanvas(cols, rows)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.stopRecording()
		return m, tea.Quit
	case " ":
		m.running = !m.running
	case "r":
		if err := m.build(); err != nil {
			m.err = err
		}
	case "[":
		m.scrub(-1)
	case "]":
		m.scrub(1)
	case "v":
		m.view3D = !m.view3D
	case "x":
		m.camera.Orbit(0, 0.1)
	case "X":
		m.camera.Orbit(0, -0.1)
	case "y":
		m.camera.Orbit(0.1, 0)
	case "Y":
		m.camera.Orbit(-0.1, 0)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "w":
		m.wind = !m.wind
	case "c":
		m.toggleCollision()
	case "g":
		if m.recorder != nil {
			m.stopRecording()
		} else {
			m.recorder = &Recorder{}
		}
	case "t":
		NextTheme()
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) stopRecording() {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Save(m.gifPath); err != nil {
		logger.Warn("gif not saved", zap.String("path", m.gifPath), zap.Error(err))
	} else {
		logger.Info("gif saved", zap.String("path", m.gifPath), zap.Int("frames", m.recorder.Len()))
	}
	m.recorder = nil
}

func (m *Model) toggleCollision() {
	m.collision = !m.collision
	for _, c := range m.scene.Cloths {
		if err := c.SetCollision(m.collision); err != nil {
			logger.Debug("collision toggle skipped", zap.String("cloth", c.Name()), zap.Error(err))
		}
	}
}

func (m *Model) step() {
	w := m.scene.World
	if m.wind {
		for _, c := range m.scene.Cloths {
			_ = c.AddForce(windForce, team.ForceAcceleration)
		}
	}
	if err := w.Step(m.dt); err != nil {
		m.err = err
	}
	if m.scene.Animate != nil {
		m.scene.Animate(w.Frame(), w.Time())
	}
	m.stretch.Reset()
	m.stretch.Observe(w.Particles, w.Teams, w.Time())
	m.penetration.Reset()
	m.penetration.Observe(w.Particles, w.Teams, w.Time())
	m.record()
}

func (m *Model) record() {
	w := m.scene.World
	e := w.KineticEnergy()
	m.energy = append(m.energy, e)
	if len(m.energy) > historyCapacity {
		m.energy = m.energy[1:]
	}
	f := frame{pos: w.Snapshot(nil), shapes: colliderShapes(w.Particles), time: w.Time(), energy: e}
	m.history = append(m.history, f)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

// colliderShapes returns the enabled sphere and capsule colliders as circles.
// A capsule contributes its two end caps.
func colliderShapes(s *particle.Store) []Sphere {
	var out []Sphere
	flags := s.Flags()
	for i := 0; i < s.Len(); i++ {
		if !flags[i].Has(particle.FlagCollider) || !flags[i].Has(particle.FlagEnable) {
			continue
		}
		switch s.Shape[i] {
		case particle.ShapeSphere:
			a, _, ra, _ := collision.Segment(s, i)
			out = append(out, Sphere{a, ra})
		case particle.ShapeCapsule:
			a, b, ra, rb := collision.Segment(s, i)
			out = append(out, Sphere{a, ra}, Sphere{b, rb})
		}
	}
	return out
}

func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead = max(0, m.playHead+dir)
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

func (m *Model) current() frame {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return m.history[m.playHead]
	}
	return m.history[len(m.history)-1]
}

func (m *Model) draw() {
	f := m.current()
	m.canvas.Clear()
	m.wire.Build(f.pos, m.scene.Edges)
	for _, s := range f.shapes {
		m.wire.AddSphere(s.Center, s.Radius)
	}
	if m.view3D {
		Render3D(m.canvas, &m.wire, m.camera)
	} else {
		RenderSide(m.canvas, &m.wire, m.viewport)
	}
}

func (m Model) View() string {
	st := themed()
	m.draw()
	f := m.current()

	var b strings.Builder
	b.WriteString(st.header.Render(strings.ToUpper(m.name)) + "\n")
	b.WriteString(m.status(st) + "\n\n")
	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(5), asciigraph.Width(32), asciigraph.Caption("kinetic energy"))
		b.WriteString(st.graph.Render(chart) + "\n\n")
	}
	b.WriteString(st.row("Frame", fmt.Sprintf("%d", m.scene.World.Frame())))
	b.WriteString(st.row("Time", fmt.Sprintf("%.2fs", f.time)))
	b.WriteString(st.row("Energy", fmt.Sprintf("%.4f", f.energy)))
	b.WriteString(st.row("Stretch", fmt.Sprintf("%.2f%%", m.stretch.Value()*100)))
	b.WriteString(st.row("Penetrate", fmt.Sprintf("%.4f", m.penetration.Value())))
	b.WriteString(st.row("Particles", fmt.Sprintf("%d", len(f.pos))))
	b.WriteString(st.row("Preset", m.cfg.Preset))
	b.WriteString(st.row("Wind", onOff(m.wind)))
	b.WriteString(st.row("Collision", onOff(m.collision)))
	if m.err != nil {
		b.WriteString("\n" + st.recording.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + st.hints("spc", "pause", "r", "reset", "?", "help", "q", "quit"))

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.canvas.String(), st.panel.Render(b.String()))
	if m.showHelp {
		return m.help(st) + "\n\n" + body
	}
	return body
}

func (m Model) status(st styles) string {
	var s string
	switch {
	case m.playHead != -1:
		last := m.history[len(m.history)-1].time
		s = st.paused.Render(fmt.Sprintf("REPLAY %+.2fs", m.history[m.playHead].time-last))
	case m.running:
		s = st.running.Render("RUNNING")
	default:
		s = st.paused.Render("PAUSED")
	}
	if m.recorder != nil {
		s += "  " + st.recording.Render(fmt.Sprintf("REC %d", m.recorder.Len()))
	}
	return s
}

func (m Model) help(st styles) string {
	lines := [][2]string{
		{"space", "pause or resume"},
		{"r", "rebuild the scenario"},
		{"[ ]", "step through history"},
		{"v", "toggle side and orbit view"},
		{"x y", "orbit camera (shift reverses)"},
		{"+ -", "zoom"},
		{"w", "toggle wind"},
		{"c", "toggle collision"},
		{"g", "start or stop gif recording"},
		{"t", "cycle theme"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(st.header.Render("KEYS") + "\n")
	for _, l := range lines {
		b.WriteString(st.key.Render(fmt.Sprintf("  %-6s", l[0])) + st.muted.Render(l[1]) + "\n")
	}
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// RunLive opens the live view of one scenario.
func RunLive(cfg *config.Config, name string) error {
	m, err := NewModel(cfg, nil, name)
	if err != nil {
		return err
	}
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(Model); ok {
		fm.Close()
	} else {
		m.Close()
	}
	return err
}
