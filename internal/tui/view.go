package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/Cloudsky01/rivet-deploy/internal/reconciler"
	"github.com/Cloudsky01/rivet-deploy/internal/tui/theme"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

func (m Model) View() string {
	snap := m.viewer.Snapshot()

	var body string
	switch {
	case snap.Tree != nil:
		body = renderRun(m.theme, m.progress, snap.Tree, m.showLogs)
	case snap.State == reconciler.StateUninitialized:
		body = m.theme.TextDim.Render(fmt.Sprintf("Waiting for a deployment run on %s/%s...", m.opts.Owner, m.opts.Repo))
	}

	if spin := m.spinner.View(); spin != "" {
		body = spin + "\n\n" + body
	}
	if snap.State == reconciler.StateError && snap.Err != nil {
		body += "\n\n" + m.theme.StatusError.Render("Error: "+snap.Err.Error()) +
			"\n" + m.theme.TextMuted.Render("Press r to retry.")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		"",
		body,
		"",
		m.helpBar.View(),
	)
}

func renderRun(t *theme.Theme, bar progress.Model, run *models.RunStatus, showLogs bool) string {
	var b strings.Builder

	icon, style := t.StatusIcon(run.Status, run.Conclusion)
	b.WriteString(t.Title.Render(fmt.Sprintf("%s #%d", run.Name, run.RunNumber)))
	b.WriteString("  ")
	b.WriteString(style.Render(icon + " " + theme.StatusLabel(run.Status, run.Conclusion)))
	b.WriteString("\n")

	meta := []string{t.Icons.Branch + " " + run.Branch}
	if run.CommitSHA != "" {
		meta = append(meta, shortSHA(run.CommitSHA))
	}
	if run.URL != "" {
		meta = append(meta, run.URL)
	}
	b.WriteString(t.Subtitle.Render(strings.Join(meta, " · ")))
	b.WriteString("\n\n")

	completed, total := run.StepProgress()
	if total > 0 {
		b.WriteString(bar.ViewAs(float64(completed) / float64(total)))
		b.WriteString(t.TextDim.Render(fmt.Sprintf(" %d/%d steps", completed, total)))
		b.WriteString("\n\n")
	}

	for _, job := range run.Jobs {
		b.WriteString(renderJob(t, job))
	}
	if len(run.Jobs) == 0 {
		b.WriteString(t.TextMuted.Render("No jobs yet"))
		b.WriteString("\n")
	}

	if showLogs && len(run.Logs) > 0 {
		b.WriteString("\n")
		b.WriteString(t.Title.Render("Logs"))
		b.WriteString("\n")
		for _, name := range run.Logs {
			b.WriteString(t.TextDim.Render("  " + name))
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderJob(t *theme.Theme, job models.JobStatus) string {
	var b strings.Builder

	icon, style := t.StatusIcon(job.Status, job.Conclusion)
	line := style.Render(icon) + " " + t.Text.Render(job.Name)
	if d := jobDuration(job); d > 0 {
		line += t.TextMuted.Render(" " + d.String())
	}
	b.WriteString(line)
	b.WriteString("\n")

	for _, step := range job.Steps {
		icon, style := t.StatusIcon(step.Status, step.Conclusion)
		b.WriteString(fmt.Sprintf("    %s %s\n",
			style.Render(icon),
			t.TextDim.Render(fmt.Sprintf("%d. %s", step.Number, step.Name))))
	}
	return b.String()
}

func jobDuration(job models.JobStatus) time.Duration {
	if job.StartedAt == nil || job.CompletedAt == nil {
		return 0
	}
	return job.CompletedAt.Sub(*job.StartedAt).Round(time.Second)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Render draws run once with logs expanded, for output that does not
// need a live program.
func Render(run *models.RunStatus, width int) string {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = max(10, min(width-16, 60))
	return renderRun(theme.Default(), bar, run, true)
}
