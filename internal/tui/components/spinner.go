package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Cloudsky01/rivet-deploy/internal/tui/theme"
)

// Spinner shows activity while a fetch is in flight.
type Spinner struct {
	spinner spinner.Model
	active  bool
	label   string
	theme   *theme.Theme
}

func NewSpinner(t *theme.Theme) Spinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().
		Foreground(t.Colors.Primary).
		Bold(true)

	return Spinner{
		spinner: s,
		theme:   t,
	}
}

// Start activates the spinner. It returns a tick only when the spinner
// was idle, so repeated starts do not multiply tick loops.
func (s *Spinner) Start(label string) tea.Cmd {
	s.label = label
	if s.active {
		return nil
	}
	s.active = true
	return s.spinner.Tick
}

func (s *Spinner) Stop() {
	s.active = false
	s.label = ""
}

func (s *Spinner) IsActive() bool {
	return s.active
}

func (s *Spinner) Update(msg tea.Msg) tea.Cmd {
	if !s.active {
		return nil
	}

	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return cmd
}

func (s *Spinner) View() string {
	if !s.active {
		return ""
	}
	return s.spinner.View() + " " + s.theme.TextDim.Render(s.label)
}
