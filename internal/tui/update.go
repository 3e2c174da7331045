package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Cloudsky01/rivet-deploy/internal/reconciler"
	"github.com/Cloudsky01/rivet-deploy/internal/tui/components"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case mountMsg:
		cmd := m.mount()
		m.refreshLabels()
		return m, cmd

	case busMsg:
		if !msg.ok {
			m.closed = true
			m.statusBar.Flash("real-time updates stopped", true)
			return m, nil
		}
		cmds := []tea.Cmd{m.waitForMessage()}
		req, changed, err := m.viewer.Deliver(msg.msg)
		if err != nil {
			m.statusBar.Flash("ignored malformed update", true)
		}
		if req.Seq != 0 {
			cmds = append(cmds, m.fetch(req))
		}
		if changed {
			m.refreshLabels()
		}
		return m, tea.Batch(cmds...)

	case fetchedMsg:
		if !m.viewer.Complete(msg.req.Seq, msg.tree, msg.err) {
			return m, nil
		}
		m.spinner.Stop()
		m.statusBar.SetLoading(false)

		snap := m.viewer.Snapshot()
		switch {
		case snap.State == reconciler.StateError:
			m.statusBar.Flash(snap.Err.Error(), true)
		case snap.Done():
			m.statusBar.Flash("run completed", false)
		default:
			m.statusBar.Flash("", false)
		}
		m.refreshLabels()
		return m, nil

	case pollMsg:
		cmds := []tea.Cmd{m.pollTick()}
		if m.viewer.State() == reconciler.StateReady && !m.viewer.Snapshot().Done() {
			if req, ok := m.viewer.Refresh(); ok {
				cmds = append(cmds, m.fetch(req))
			}
		}
		return m, tea.Batch(cmds...)
	}

	return m, m.spinner.Update(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit

	case "r":
		req, ok := m.viewer.Refresh()
		if !ok {
			return m, nil
		}
		m.statusBar.Flash("", false)
		cmd := m.fetch(req)
		m.refreshLabels()
		return m, cmd

	case "l":
		m.showLogs = !m.showLogs
	}
	return m, nil
}

func (m *Model) refreshLabels() {
	snap := m.viewer.Snapshot()

	switch {
	case snap.Tree != nil:
		m.statusBar.SetRun(fmt.Sprintf("%s #%d", snap.Tree.Name, snap.Tree.RunNumber))
	case snap.RunID != 0:
		m.statusBar.SetRun(fmt.Sprintf("run %d", snap.RunID))
	}
	m.statusBar.SetState(snap.State.String())
	m.helpBar.SetHints(components.WatchHints(snap.State == reconciler.StateError))
}
