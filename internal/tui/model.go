// Package tui is the terminal viewer for a live workflow run.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/internal/reconciler"
	"github.com/Cloudsky01/rivet-deploy/internal/tui/components"
	"github.com/Cloudsky01/rivet-deploy/internal/tui/theme"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

type Options struct {
	Owner string
	Repo  string
	// RunID may be zero to follow the next run announced on the bus.
	RunID int64

	Fetcher reconciler.Fetcher
	// Subscription is owned by the caller, who closes it after the
	// program exits.
	Subscription bus.Subscription

	PollInterval time.Duration
	Now          func() time.Time
}

// Model drives a reconciler.Viewer from bubbletea messages. Fetches run
// as commands and come back as fetchedMsg; bus messages arrive one at a
// time through waitForMessage.
type Model struct {
	ctx    context.Context
	opts   Options
	viewer *reconciler.Viewer

	theme     *theme.Theme
	spinner   components.Spinner
	progress  progress.Model
	statusBar components.StatusBar
	helpBar   components.HelpBar

	showLogs      bool
	width, height int
	closed        bool
}

type (
	busMsg struct {
		msg bus.Message
		ok  bool
	}
	fetchedMsg struct {
		req  reconciler.FetchRequest
		tree *models.RunStatus
		err  error
	}
	mountMsg struct{}
	pollMsg  struct{}
)

func New(ctx context.Context, opts Options) Model {
	t := theme.Default()

	m := Model{
		ctx:       ctx,
		opts:      opts,
		viewer:    reconciler.NewViewer(opts.Owner, opts.Repo, opts.RunID, opts.Now),
		theme:     t,
		spinner:   components.NewSpinner(t),
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		statusBar: components.NewStatusBar(t),
		helpBar:   components.NewHelpBar(t),
		width:     80,
	}
	m.statusBar.SetRepository(opts.Owner + "/" + opts.Repo)
	m.statusBar.SetPollInterval(opts.PollInterval)
	m.resize()
	return m
}

// Snapshot is the viewer state, e.g. for printing a summary after the
// program exits.
func (m Model) Snapshot() reconciler.Snapshot {
	return m.viewer.Snapshot()
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		func() tea.Msg { return mountMsg{} },
		m.waitForMessage(),
	}
	if m.opts.PollInterval > 0 {
		cmds = append(cmds, m.pollTick())
	}
	return tea.Batch(cmds...)
}

func (m *Model) mount() tea.Cmd {
	req, ok := m.viewer.Mount()
	if !ok {
		m.statusBar.SetState("waiting for a run to start")
		return nil
	}
	return m.fetch(req)
}

func (m *Model) fetch(req reconciler.FetchRequest) tea.Cmd {
	m.statusBar.SetLoading(true)
	fetcher := m.opts.Fetcher
	ctx := m.ctx
	return tea.Batch(
		m.spinner.Start(fmt.Sprintf("Fetching run %d", req.RunID)),
		func() tea.Msg {
			tree, err := fetcher.GetRunStatus(ctx, req.Owner, req.Repo, req.RunID)
			return fetchedMsg{req: req, tree: tree, err: err}
		},
	)
}

func (m Model) waitForMessage() tea.Cmd {
	sub := m.opts.Subscription
	return func() tea.Msg {
		msg, ok := <-sub.Messages()
		return busMsg{msg: msg, ok: ok}
	}
}

func (m Model) pollTick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m *Model) resize() {
	m.statusBar.SetSize(m.width)
	m.helpBar.SetSize(m.width)
	m.progress.Width = max(m.width-20, 10)
}
