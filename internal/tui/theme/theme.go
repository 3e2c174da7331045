// Package theme provides centralized styling for the live run viewer.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

// Colors defines the color palette for the application
type Colors struct {
	Primary lipgloss.Color // Main accent color (titles, progress)
	Accent  lipgloss.Color // Highlights

	Text      lipgloss.Color
	TextDim   lipgloss.Color
	TextMuted lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color // In progress
	Error   lipgloss.Color

	BgSecondary lipgloss.Color // Status and help bars
	Border      lipgloss.Color
}

// Theme contains all styling for the viewer
type Theme struct {
	Colors Colors

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Text       lipgloss.Style
	TextDim    lipgloss.Style
	TextMuted  lipgloss.Style
	StatusBar  lipgloss.Style
	HelpBar    lipgloss.Style
	Breadcrumb lipgloss.Style
	Panel      lipgloss.Style

	StatusSuccess    lipgloss.Style
	StatusWarning    lipgloss.Style
	StatusError      lipgloss.Style
	StatusInProgress lipgloss.Style

	Icons IconSet
}

// IconSet defines the icons used throughout the viewer
type IconSet struct {
	Success    string
	Error      string
	Skipped    string
	InProgress string
	Pending    string
	Refresh    string
	Repository string
	Branch     string
}

// DefaultColors returns the default color palette (dark theme)
func DefaultColors() Colors {
	return Colors{
		Primary: lipgloss.Color("39"),  // Bright blue
		Accent:  lipgloss.Color("141"), // Purple

		Text:      lipgloss.Color("252"),
		TextDim:   lipgloss.Color("245"),
		TextMuted: lipgloss.Color("240"),

		Success: lipgloss.Color("42"),
		Warning: lipgloss.Color("214"),
		Error:   lipgloss.Color("196"),

		BgSecondary: lipgloss.Color("236"),
		Border:      lipgloss.Color("240"),
	}
}

func DefaultIcons() IconSet {
	return IconSet{
		Success:    "✓",
		Error:      "✗",
		Skipped:    "⊘",
		InProgress: "⟳",
		Pending:    "○",
		Refresh:    "↻",
		Repository: "📦",
		Branch:     "⎇",
	}
}

// Default returns the default theme
func Default() *Theme {
	colors := DefaultColors()

	return &Theme{
		Colors: colors,
		Icons:  DefaultIcons(),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Primary),

		Subtitle: lipgloss.NewStyle().
			Foreground(colors.TextDim),

		Text:      lipgloss.NewStyle().Foreground(colors.Text),
		TextDim:   lipgloss.NewStyle().Foreground(colors.TextDim),
		TextMuted: lipgloss.NewStyle().Foreground(colors.TextMuted),

		StatusBar: lipgloss.NewStyle().
			Background(colors.BgSecondary).
			Foreground(colors.TextDim).
			Padding(0, 1),

		HelpBar: lipgloss.NewStyle().
			Background(colors.BgSecondary).
			Foreground(colors.TextMuted).
			Padding(0, 1),

		Breadcrumb: lipgloss.NewStyle().
			Background(colors.BgSecondary).
			Foreground(colors.Accent),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Border).
			Padding(0, 1),

		StatusSuccess:    lipgloss.NewStyle().Foreground(colors.Success),
		StatusWarning:    lipgloss.NewStyle().Foreground(colors.Warning),
		StatusError:      lipgloss.NewStyle().Foreground(colors.Error),
		StatusInProgress: lipgloss.NewStyle().Foreground(colors.Warning),
	}
}

// StatusIcon returns the icon and style for a run, job or step.
func (t *Theme) StatusIcon(status models.Status, conclusion models.Conclusion) (string, lipgloss.Style) {
	switch status {
	case models.StatusCompleted:
		switch conclusion {
		case models.ConclusionSuccess:
			return t.Icons.Success, t.StatusSuccess
		case models.ConclusionSkipped:
			return t.Icons.Skipped, t.TextDim
		case models.ConclusionActionRequired:
			return t.Icons.Pending, t.StatusWarning
		default:
			return t.Icons.Error, t.StatusError
		}
	case models.StatusInProgress:
		return t.Icons.InProgress, t.StatusInProgress
	default:
		return t.Icons.Pending, t.TextDim
	}
}

// StatusLabel is the human-readable status, e.g. "completed (success)".
func StatusLabel(status models.Status, conclusion models.Conclusion) string {
	label := strings.ReplaceAll(string(status), "_", " ")
	if label == "" {
		label = "unknown"
	}
	if status.IsTerminal() && conclusion != models.ConclusionNone {
		label += " (" + strings.ReplaceAll(string(conclusion), "_", " ") + ")"
	}
	return label
}

// Divider returns a horizontal divider line
func (t *Theme) Divider(width int) string {
	if width <= 0 {
		return ""
	}
	return t.TextMuted.Render(strings.Repeat("─", width))
}
