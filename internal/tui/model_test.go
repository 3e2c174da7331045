package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/internal/reconciler"
	"github.com/Cloudsky01/rivet-deploy/internal/tui/theme"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

type stubFetcher struct{}

func (stubFetcher) GetRunStatus(context.Context, string, string, int64) (*models.RunStatus, error) {
	return nil, errors.New("not used")
}

func sampleRun() *models.RunStatus {
	return &models.RunStatus{
		ID:         "7",
		Name:       "Deploy",
		Status:     models.StatusInProgress,
		Repository: "acme/proxies",
		Branch:     "main",
		CommitSHA:  "abc123def456",
		RunNumber:  12,
		Jobs: []models.JobStatus{{
			ID:     "11",
			Name:   "deploy-proxy",
			Status: models.StatusInProgress,
			Steps: []models.StepStatus{
				{Name: "Set up job", Number: 1, Status: models.StatusCompleted, Conclusion: models.ConclusionSuccess},
				{Name: "Deploy", Number: 2, Status: models.StatusInProgress},
			},
		}},
	}
}

func newTestModel(t *testing.T, runID int64) Model {
	t.Helper()
	memory := bus.NewMemory(10)
	t.Cleanup(func() { memory.Close() })
	sub, err := memory.Subscribe(context.Background(), models.EventsChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { sub.Close() })

	return New(context.Background(), Options{
		Owner:        "acme",
		Repo:         "proxies",
		RunID:        runID,
		Fetcher:      stubFetcher{},
		Subscription: sub,
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_Lifecycle(t *testing.T) {
	m := newTestModel(t, 7)

	m, cmd := update(t, m, mountMsg{})
	if cmd == nil {
		t.Fatal("mount should issue a fetch")
	}
	if m.viewer.State() != reconciler.StateLoading {
		t.Fatalf("expected loading, got %s", m.viewer.State())
	}

	first := reconciler.FetchRequest{Seq: 1, Owner: "acme", Repo: "proxies", RunID: 7}
	m, _ = update(t, m, fetchedMsg{req: first, tree: sampleRun()})
	if m.viewer.State() != reconciler.StateReady {
		t.Fatalf("expected ready, got %s", m.viewer.State())
	}
	view := m.View()
	for _, want := range []string{"Deploy #12", "deploy-proxy", "1/2 steps", "abc123d"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}

	msg, err := bus.NewMessage(models.EventsChannel, models.EventWorkflowJobUpdate, models.JobUpdate{
		JobID: 11, RunID: 7, Repository: "acme/proxies", Status: models.StatusCompleted, Conclusion: models.ConclusionFailure,
	})
	if err != nil {
		t.Fatal(err)
	}
	m, cmd = update(t, m, busMsg{msg: msg, ok: true})
	if cmd == nil {
		t.Error("expected the model to keep listening")
	}
	if got := m.Snapshot().Tree.Job("11").Status; got != models.StatusCompleted {
		t.Errorf("job status = %s, want completed", got)
	}

	// After a refresh the first fetch result is stale.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m, _ = update(t, m, fetchedMsg{req: first, tree: sampleRun()})
	if got := m.Snapshot().Tree.Job("11").Status; got != models.StatusCompleted {
		t.Errorf("stale fetch regressed job to %s", got)
	}

	second := reconciler.FetchRequest{Seq: 2, Owner: "acme", Repo: "proxies", RunID: 7}
	m, _ = update(t, m, fetchedMsg{req: second, err: errors.New("HTTP 502")})
	if m.viewer.State() != reconciler.StateError {
		t.Fatalf("expected error, got %s", m.viewer.State())
	}
	if !strings.Contains(m.View(), "Press r to retry") {
		t.Error("error view should offer a retry")
	}

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.QuitMsg")
	}
}

func TestModel_WaitsForRun(t *testing.T) {
	m := newTestModel(t, 0)

	m, cmd := update(t, m, mountMsg{})
	if cmd != nil {
		t.Error("no fetch without a run id")
	}
	if !strings.Contains(m.View(), "Waiting for a deployment run on acme/proxies") {
		t.Error("expected waiting message")
	}

	m, _ = update(t, m, busMsg{ok: false})
	if !m.closed {
		t.Error("closed subscription should be recorded")
	}
}

func TestRenderRun_Logs(t *testing.T) {
	run := sampleRun()
	run.Status = models.StatusCompleted
	run.Conclusion = models.ConclusionSuccess
	run.Logs = []string{models.LogsUnavailable}

	bar := progress.New(progress.WithoutPercentage())
	hidden := renderRun(theme.Default(), bar, run, false)
	if strings.Contains(hidden, models.LogsUnavailable) {
		t.Error("logs should be hidden until toggled")
	}
	shown := renderRun(theme.Default(), bar, run, true)
	if !strings.Contains(shown, models.LogsUnavailable) {
		t.Error("logs should be listed when toggled")
	}
	if !strings.Contains(shown, "completed (success)") {
		t.Error("expected the run status label")
	}
}
