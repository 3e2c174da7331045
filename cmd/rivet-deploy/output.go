package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Cloudsky01/rivet-deploy/internal/config"
	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/internal/reconciler"
	"github.com/Cloudsky01/rivet-deploy/internal/tui/theme"
	"github.com/Cloudsky01/rivet-deploy/internal/wizard"
	"github.com/Cloudsky01/rivet-deploy/internal/workflow"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const dividerWidth = 50

func divider() string {
	return dividerStyle.Render(strings.Repeat("━", dividerWidth))
}

func printDispatchSuccess(w io.Writer, fullName, ref string, result *workflow.Success) {
	name := result.WorkflowName
	if name == "" {
		name = result.WorkflowID
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, successStyle.Render("✅ Workflow triggered successfully!"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, labelStyle.Render("📦 Repository: ")+infoStyle.Render(fullName))
	fmt.Fprintln(w, labelStyle.Render("⚙️  Workflow:   ")+infoStyle.Render(fmt.Sprintf("%s (id %s)", name, result.WorkflowID)))
	fmt.Fprintln(w, labelStyle.Render("🌿 Ref:        ")+infoStyle.Render(ref))
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("🚀 Next steps:"))
	fmt.Fprintln(w, infoStyle.Render("   rivet-deploy watch --repo "+fullName+"   # Follow the new run"))
	fmt.Fprintln(w)
}

func printFailure(w io.Writer, failure *workflow.Failure) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, errorStyle.Render("✗ "+failure.Message))
	if failure.Details != "" {
		fmt.Fprintln(w, infoStyle.Render("  GitHub said: "+failure.Details))
	}
	if failure.DocumentationURL != "" {
		fmt.Fprintln(w, infoStyle.Render("  See: "+failure.DocumentationURL))
	}

	switch failure.Kind {
	case workflow.FailurePermissionDenied:
		fmt.Fprintln(w)
		fmt.Fprintln(w, wizard.GetWarnStyle().Render("⚠ Check the token with: rivet-deploy token"))
	case workflow.FailureTransient:
		fmt.Fprintln(w)
		fmt.Fprintln(w, infoStyle.Render("This looks temporary; run the command again to retry."))
	}

	if len(failure.Candidates) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Available workflows:"))
		printWorkflowList(w, failure.Candidates)
	}
	fmt.Fprintln(w)
}

func printWorkflowList(w io.Writer, workflows []models.WorkflowDescriptor) {
	if len(workflows) == 0 {
		fmt.Fprintln(w, infoStyle.Render("  (none)"))
		return
	}
	for _, wf := range workflows {
		fmt.Fprintf(w, "  %s %s %s\n",
			labelStyle.Render(fmt.Sprintf("%-12s", wf.ID)),
			wf.Name,
			infoStyle.Render(wf.Path),
		)
	}
}

func printTokenStatus(w io.Writer, status github.TokenStatus) {
	fmt.Fprintln(w)
	switch {
	case !status.Valid:
		fmt.Fprintln(w, errorStyle.Render("✗ "+status.Message))
		if status.Error != "" {
			fmt.Fprintln(w, infoStyle.Render("  "+status.Error))
		}
	case !status.HasWorkflowScope:
		fmt.Fprintln(w, wizard.GetWarnStyle().Render("⚠ "+status.Message))
	default:
		fmt.Fprintln(w, successStyle.Render("✅ "+status.Message))
	}

	if status.Username != "" {
		fmt.Fprintln(w, labelStyle.Render("👤 User:   ")+infoStyle.Render(status.Username))
	}
	if status.Valid {
		scopes := strings.Join(status.Scopes, ", ")
		if scopes == "" {
			scopes = "none reported (fine-grained token?)"
		}
		fmt.Fprintln(w, labelStyle.Render("🔑 Scopes: ")+infoStyle.Render(scopes))
	}
	fmt.Fprintln(w)
}

// printSnapshotLine is the non-interactive rendering of a watch update.
func printSnapshotLine(w io.Writer, snap reconciler.Snapshot) {
	t := theme.Default()
	if snap.Tree == nil {
		fmt.Fprintln(w, infoStyle.Render(snap.String()))
		return
	}

	run := snap.Tree
	icon, style := t.StatusIcon(run.Status, run.Conclusion)
	completed, total := run.StepProgress()

	line := fmt.Sprintf("%s %s #%d %s", icon, run.Name, run.RunNumber, theme.StatusLabel(run.Status, run.Conclusion))
	if total > 0 {
		line += fmt.Sprintf(" [%d/%d steps]", completed, total)
	}
	fmt.Fprintln(w, style.Render(line))

	for _, job := range run.Jobs {
		if job.Status != models.StatusInProgress {
			continue
		}
		jobIcon, jobStyle := t.StatusIcon(job.Status, job.Conclusion)
		fmt.Fprintln(w, jobStyle.Render("    "+jobIcon+" "+job.Name))
	}
}

func printConfigSummary(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, divider())
	fmt.Fprintln(w, successStyle.Render("✅ Configuration created successfully!"))
	fmt.Fprintln(w, divider())
	fmt.Fprintln(w)

	repository := cfg.Repository
	if repository == "" {
		repository = "(detected from git)"
	}
	fmt.Fprintln(w, labelStyle.Render("📁 Config file: ")+infoStyle.Render(path))
	fmt.Fprintln(w, labelStyle.Render("📦 Repository:  ")+infoStyle.Render(repository))
	fmt.Fprintln(w, labelStyle.Render("🏷  Markers:     ")+infoStyle.Render(strings.Join(append(append([]string{}, cfg.Webhook.NameMarkers...), cfg.Webhook.PathMarkers...), ", ")))
	fmt.Fprintln(w, labelStyle.Render("📡 Bus:         ")+infoStyle.Render(cfg.Bus.Driver))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("🚀 Next steps:"))
	fmt.Fprintln(w, infoStyle.Render("   rivet-deploy token      # Check the GitHub token"))
	fmt.Fprintln(w, infoStyle.Render("   rivet-deploy serve      # Receive webhooks"))
	fmt.Fprintln(w, infoStyle.Render("   rivet-deploy --help     # See all options"))
	fmt.Fprintln(w)
}
