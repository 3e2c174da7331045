package wizard

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

// IsTTY reports whether stdin and stdout are both terminals, i.e. whether
// interactive prompts and the live viewer can run.
func IsTTY() bool {
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func GetWarnStyle() lipgloss.Style { return warnStyle }
