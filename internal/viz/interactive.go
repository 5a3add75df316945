package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/scenario"
)

const (
	stateMenu = iota
	statePreset
	stateSim
)

// app walks scenario selection, preset selection and then hands over to
// the live view.
type app struct {
	cfg       *config.Config
	registry  *scenario.Registry
	state     int
	scenarios []string
	presets   []string
	cursor    int
	pcursor   int
	width     int
	height    int
	err       error
	live      Model
	started   bool
}

func NewInteractiveApp(cfg *config.Config) *app {
	reg := scenario.NewRegistry()
	a := &app{
		cfg:       cfg,
		registry:  reg,
		scenarios: reg.List(),
		presets:   config.ListPresets(),
	}
	for i, p := range a.presets {
		if p == cfg.Preset {
			a.pcursor = i
		}
	}
	return a
}

func (a app) Init() tea.Cmd { return nil }

func (a app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		if a.started {
			return a.forward(msg)
		}
	case tea.KeyMsg:
		switch a.state {
		case stateMenu:
			return a.menuKey(msg)
		case statePreset:
			return a.presetKey(msg)
		case stateSim:
			return a.simKey(msg)
		}
	default:
		if a.state == stateSim {
			return a.forward(msg)
		}
	}
	return a, nil
}

func (a app) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := a.live.Update(msg)
	a.live = next.(Model)
	return a, cmd
}

func (a app) menuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.scenarios)-1 {
			a.cursor++
		}
	case "enter", " ":
		a.state = statePreset
	}
	return a, nil
}

func (a app) presetKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "q", "esc":
		a.state = stateMenu
	case "up", "k":
		if a.pcursor > 0 {
			a.pcursor--
		}
	case "down", "j":
		if a.pcursor < len(a.presets)-1 {
			a.pcursor++
		}
	case "enter", " ", "s":
		return a.start()
	}
	return a, nil
}

// simKey lets esc return to the menu; everything else goes to the live view.
func (a app) simKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.live.stopRecording()
		a.live.Close()
		a.started = false
		a.state = stateMenu
		return a, nil
	case "q", "ctrl+c":
		a.live.stopRecording()
		a.live.Close()
		return a, tea.Quit
	}
	return a.forward(msg)
}

func (a app) start() (tea.Model, tea.Cmd) {
	cfg := *a.cfg
	cfg.Preset = a.presets[a.pcursor]
	live, err := NewModel(&cfg, a.registry, a.scenarios[a.cursor])
	if err != nil {
		a.err = err
		return a, nil
	}
	if a.width > 0 {
		live.resize(a.width, a.height)
	}
	a.err = nil
	a.live = live
	a.started = true
	a.state = stateSim
	return a, live.Init()
}

func (a app) View() string {
	switch a.state {
	case statePreset:
		return a.viewPresets()
	case stateSim:
		return a.live.View()
	}
	return a.viewMenu()
}

func (a app) viewMenu() string {
	st := themed()
	var b strings.Builder
	b.WriteString("\n\n    " + st.header.Render("CLOTHSIM") + "\n    " + st.muted.Render("cloth and spring simulation") + "\n    " + Separator(27) + "\n\n")
	for i, name := range a.scenarios {
		desc := a.registry.Description(name)
		if i == a.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", st.key.Render("▸"), st.value.Bold(true).Render(fmt.Sprintf("%-10s", name)), st.selected.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", st.muted.Render(fmt.Sprintf("%-10s", name)), st.muted.Render(desc)))
		}
	}
	b.WriteString("\n    " + st.hints("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (a app) viewPresets() string {
	st := themed()
	var b strings.Builder
	name := a.scenarios[a.cursor]
	b.WriteString("\n\n    " + st.header.Render(strings.ToUpper(name)) + "\n    " + st.muted.Render(a.registry.Description(name)) + "\n    " + Separator(27) + "\n\n")
	for i, p := range a.presets {
		desc := ""
		if pr := config.GetPreset(p); pr != nil {
			desc = pr.Description
		}
		if i == a.pcursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", st.key.Render("▸"), st.value.Bold(true).Render(fmt.Sprintf("%-10s", p)), st.selected.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", st.muted.Render(fmt.Sprintf("%-10s", p)), st.muted.Render(desc)))
		}
	}
	if a.err != nil {
		b.WriteString("\n    " + st.recording.Render(a.err.Error()) + "\n")
	}
	b.WriteString("\n    " + st.hints("j/k", "navigate", "enter", "start", "esc", "back") + "\n")
	return b.String()
}

// RunInteractive opens the scenario picker.
func RunInteractive(cfg *config.Config) error {
	final, err := tea.NewProgram(NewInteractiveApp(cfg), tea.WithAltScreen()).Run()
	if a, ok := final.(app); ok && a.started {
		a.live.Close()
	}
	return err
}
