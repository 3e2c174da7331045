package wizard

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type spinnerModel struct {
	spinner spinner.Model
	message string
	done    bool
	err     error
	cancel  context.CancelFunc
}

type spinnerCompleteMsg struct {
	err error
}

func newSpinnerModel(message string, cancel context.CancelFunc) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = spinnerStyle
	return spinnerModel{
		spinner: s,
		message: message,
		cancel:  cancel,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
		}
		return m, nil

	case spinnerCompleteMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m spinnerModel) View() string {
	if m.done {
		return resultLine(m.message, m.err) + "\n"
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), messageStyle.Render(m.message))
}

func resultLine(message string, err error) string {
	if err != nil {
		return errorStyle.Render("✗ " + message + " failed: " + err.Error())
	}
	return successStyle.Render("✓ " + message + " complete")
}

// RunWithSpinner runs fn while showing a spinner, or plain progress lines
// when not attached to a terminal. ctrl+c cancels the context passed to fn.
func RunWithSpinner[T any](ctx context.Context, message string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !IsTTY() {
		return runPlain(ctx, os.Stderr, message, fn)
	}

	p := tea.NewProgram(newSpinnerModel(message, cancel), tea.WithOutput(os.Stderr))

	var result T
	var fnErr error
	go func() {
		result, fnErr = fn(ctx)
		p.Send(spinnerCompleteMsg{err: fnErr})
	}()

	if _, err := p.Run(); err != nil {
		var zero T
		return zero, err
	}
	return result, fnErr
}

func runPlain[T any](ctx context.Context, w io.Writer, message string, fn func(context.Context) (T, error)) (T, error) {
	fmt.Fprintln(w, messageStyle.Render(message+"..."))
	result, err := fn(ctx)
	fmt.Fprintln(w, resultLine(message, err))
	return result, err
}
