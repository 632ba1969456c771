package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/broomsim/internal/control"
	"github.com/san-kum/broomsim/internal/sim"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	frameInterval   = time.Second / 60

	// Terminals report key presses, not releases, so a movement key holds
	// its input for this many frames.
	moveHoldFrames = 6
	lookStep       = 20.0
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model drives a simulator from the bubbletea tick and draws it. Every
// frame runs on the bubbletea goroutine, so the simulator needs no locking.
type Model struct {
	sim      *sim.Simulator
	clock    sim.Clock
	manual   *control.Manual
	canvas   *Canvas
	views    []View
	view     int
	theme    Theme
	styles   styles
	title    string
	running  bool
	showHelp bool

	input    control.Input
	holdLeft int

	last          sim.FrameReport
	lastErr       error
	errorCount    int
	population    []float64
	energyHistory []float64
}

// NewModel wraps s. Keyboard movement only works when the simulator's
// camera is a *control.Manual.
func NewModel(s *sim.Simulator, title string) Model {
	manual, _ := s.Camera().(*control.Manual)
	theme := Themes[0]
	return Model{
		sim:           s,
		clock:         sim.NewRealClock(),
		manual:        manual,
		canvas:        NewCanvas(width, height),
		views:         []View{DefaultPerspective(), TopDown{HalfSize: 110}},
		theme:         theme,
		styles:        newStyles(theme),
		title:         title,
		running:       true,
		population:    make([]float64, 0, historyCapacity),
		energyHistory: make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		w := max(20, msg.Width-50)
		h := max(8, msg.Height-4)
		m.canvas = NewCanvas(w, h)
	case TickMsg:
		dt := m.clock.Tick()
		if m.running {
			m.step(dt)
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
	case "?":
		m.showHelp = !m.showHelp
	case "v", "tab":
		m.view = (m.view + 1) % len(m.views)
	case "t":
		m.theme = NextTheme(m.theme)
		m.styles = newStyles(m.theme)
	}
	if m.manual == nil {
		return m, nil
	}

	switch msg.String() {
	case "w":
		m.hold(control.Input{Forward: 1})
	case "s":
		m.hold(control.Input{Forward: -1})
	case "a":
		m.hold(control.Input{Right: -1})
	case "d":
		m.hold(control.Input{Right: 1})
	case "left", "h":
		m.manual.Look(-lookStep, 0)
	case "right", "l":
		m.manual.Look(lookStep, 0)
	case "up", "k":
		m.manual.Look(0, lookStep)
	case "down", "j":
		m.manual.Look(0, -lookStep)
	case "r":
		m.manual.Reset()
		m.hold(control.Input{})
	}
	return m, nil
}

func (m *Model) hold(in control.Input) {
	m.input = in
	m.holdLeft = moveHoldFrames
	m.manual.SetInput(in)
}

// step runs one frame and records its sample.
func (m *Model) step(dt float64) {
	if m.manual != nil {
		if m.holdLeft > 0 {
			m.holdLeft--
		} else if m.input != (control.Input{}) {
			m.input = control.Input{}
			m.manual.SetInput(m.input)
		}
	}

	rep, err := m.sim.Frame(dt)
	m.last = rep
	if err != nil {
		m.lastErr = err
		m.errorCount++
	}
	m.population = appendCapped(m.population, float64(rep.Stats.InScene))
	m.energyHistory = appendCapped(m.energyHistory, rep.KineticEnergy)
}

func appendCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

func (m *Model) draw() {
	m.canvas.Clear()
	m.views[m.view].Draw(m.canvas, m.sim.Proxies().Snapshot(), m.sim.Camera().Pose())
}

func (m Model) View() string {
	m.draw()
	st := m.styles
	canvasView := lipgloss.NewStyle().Padding(0, 1).Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")
	switch {
	case !m.running:
		s.WriteString(st.warn.Render("PAUSED"))
	default:
		s.WriteString(st.ok.Render("RUNNING"))
	}
	s.WriteString("  " + st.label.Render(m.views[m.view].Name()) + "\n\n")

	stats := m.last.Stats
	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Objects in scene", fmt.Sprint(stats.InScene))
	row("Objects spawned", fmt.Sprint(stats.TotalSpawned))
	row("Objects removed", fmt.Sprint(stats.TotalDestroyed))
	row("Frame", fmt.Sprint(m.last.Frame))
	row("Sim time", fmt.Sprintf("%.2fs", m.last.Time))
	row("Sub-steps", fmt.Sprint(m.last.SubSteps))
	row("Contacts", fmt.Sprint(m.last.Contacts))
	row("Kinetic energy", fmt.Sprintf("%.0f", m.last.KineticEnergy))

	if limit := m.sim.Config().Spawn.MaxLiveBodies; limit > 0 {
		s.WriteString(st.label.Render("Body cap") + st.ProgressBar(float64(stats.InScene)/float64(limit), 20) + "\n")
	}
	if m.errorCount > 0 {
		s.WriteString(st.bad.Render(fmt.Sprintf("%d frame errors", m.errorCount)) + "\n")
		s.WriteString(st.label.Render(truncate(m.lastErr.Error(), 40)) + "\n")
	}

	if len(m.population) > 1 {
		chart := asciigraph.Plot(m.population, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Objects in scene"))
		s.WriteString("\n" + st.graph.Render(chart) + "\n")
	}
	if len(m.energyHistory) > 1 {
		s.WriteString("\n" + st.label.Render("Energy") + st.graph.Render(Sparkline(m.energyHistory, 24)) + "\n")
	}

	s.WriteString(st.help.Render("WASD:Move ←→↑↓:Look R:Reset V:View\nSP:Pause T:Theme ?:Help Q:Quit"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.panel.Render(s.String()))

	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  W/S      - Move forward/back        ║
║  A/D      - Strafe left/right        ║
║  Arrows   - Look around              ║
║  R        - Reset camera             ║
║  V/Tab    - Camera or map view       ║
║  Space    - Pause/Resume             ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run starts the live view on the terminal's alternate screen.
func Run(s *sim.Simulator, title string) error {
	_, err := tea.NewProgram(NewModel(s, title), tea.WithAltScreen()).Run()
	return err
}
