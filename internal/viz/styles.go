package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles are rebuilt from CurrentTheme on every frame so theme switches apply
// immediately.
type styles struct {
	header, label, value, muted, key lipgloss.Style
	running, paused, recording      lipgloss.Style
	selected, graph, panel          lipgloss.Style
}

func themed() styles {
	t := CurrentTheme
	return styles{
		header:    lipgloss.NewStyle().Foreground(t.Primary).Bold(true).MarginBottom(1),
		label:     lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:     lipgloss.NewStyle().Foreground(t.Text),
		muted:     lipgloss.NewStyle().Foreground(t.Muted),
		key:       lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
		running:   lipgloss.NewStyle().Foreground(t.Success).Bold(true),
		paused:    lipgloss.NewStyle().Foreground(t.Warning).Bold(true),
		recording: lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		selected:  lipgloss.NewStyle().Foreground(t.Secondary).Bold(true),
		graph:     lipgloss.NewStyle().Foreground(t.Accent).Padding(1, 0),
		panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(44),
	}
}

func (s styles) row(label, value string) string {
	return s.label.Render(label) + s.value.Render(value) + "\n"
}

// hints renders "key action" pairs on one line.
func (s styles) hints(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(s.key.Render(pairs[i]) + s.muted.Render(" "+pairs[i+1]))
	}
	return b.String()
}

// ProgressBar renders a fixed width bar for percent in [0,1].
func ProgressBar(percent float64, width int) string {
	percent = max(0, min(1, percent))
	filled := int(percent * float64(width))
	s := themed()
	return s.running.Render(strings.Repeat("█", filled)) +
		s.muted.Render(strings.Repeat("░", width-filled)) +
		s.value.Render(fmt.Sprintf(" %3.0f%%", percent*100))
}

// Separator returns a horizontal rule.
func Separator(width int) string {
	return themed().muted.Render(strings.Repeat("─", width))
}
