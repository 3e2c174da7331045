package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Cloudsky01/rivet-deploy/internal/tui/theme"
)

// StatusBar displays the watched run and the viewer state
type StatusBar struct {
	width        int
	repository   string
	run          string
	state        string
	pollInterval time.Duration
	loading      bool
	flash        string
	flashIsError bool
	theme        *theme.Theme
}

func NewStatusBar(t *theme.Theme) StatusBar {
	return StatusBar{
		theme: t,
	}
}

func (s *StatusBar) SetSize(width int) {
	s.width = width
}

func (s *StatusBar) SetRepository(repo string) {
	s.repository = repo
}

// SetRun sets the run label, e.g. "Deploy #12".
func (s *StatusBar) SetRun(run string) {
	s.run = run
}

func (s *StatusBar) SetState(state string) {
	s.state = state
}

// SetPollInterval shows the refresh interval; zero hides it.
func (s *StatusBar) SetPollInterval(interval time.Duration) {
	s.pollInterval = interval
}

func (s *StatusBar) SetLoading(loading bool) {
	s.loading = loading
}

// Flash shows a one-line notice until the next call.
func (s *StatusBar) Flash(message string, isError bool) {
	s.flash = message
	s.flashIsError = isError
}

func (s *StatusBar) View() string {
	parts := []string{}
	if s.repository != "" {
		parts = append(parts, s.theme.Icons.Repository+" "+s.repository)
	}
	if s.run != "" {
		parts = append(parts, s.run)
	}
	breadcrumb := strings.Join(parts, " > ")

	var statusParts []string
	if s.flash != "" {
		style := s.theme.StatusSuccess
		if s.flashIsError {
			style = s.theme.StatusError
		}
		statusParts = append(statusParts, style.Render(s.flash))
	}
	if s.loading {
		statusParts = append(statusParts,
			s.theme.StatusInProgress.Render(s.theme.Icons.InProgress+" Loading"))
	} else if s.state != "" {
		statusParts = append(statusParts, s.state)
	}
	if s.pollInterval > 0 {
		statusParts = append(statusParts,
			s.theme.TextDim.Render(fmt.Sprintf("%s every %s", s.theme.Icons.Refresh, s.pollInterval)))
	}
	status := strings.Join(statusParts, " | ")

	leftWidth := lipgloss.Width(breadcrumb)
	rightWidth := lipgloss.Width(status)
	spacerWidth := s.width - leftWidth - rightWidth - 4

	var content string
	if spacerWidth > 0 {
		content = s.theme.Breadcrumb.Render(breadcrumb) +
			strings.Repeat(" ", spacerWidth) +
			status
	} else {
		content = s.theme.Breadcrumb.Render(breadcrumb) + " " + status
	}

	return s.theme.StatusBar.
		Width(s.width).
		Render(content)
}

// HelpBar displays the keybindings
type HelpBar struct {
	width int
	hints []string
	theme *theme.Theme
}

func NewHelpBar(t *theme.Theme) HelpBar {
	return HelpBar{
		theme: t,
	}
}

func (h *HelpBar) SetSize(width int) {
	h.width = width
}

func (h *HelpBar) SetHints(hints []string) {
	h.hints = hints
}

func (h *HelpBar) View() string {
	return h.theme.HelpBar.
		Width(h.width).
		Render(strings.Join(h.hints, " "))
}

// WatchHints returns the viewer's keybinding hints
func WatchHints(canRetry bool) []string {
	hints := []string{"[q]uit", "[r]efresh", "[l]ogs"}
	if canRetry {
		hints[1] = "[r]etry"
	}
	return hints
}
