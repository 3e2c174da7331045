package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/internal/config"
	"github.com/Cloudsky01/rivet-deploy/internal/reconciler"
	"github.com/Cloudsky01/rivet-deploy/internal/runstatus"
	"github.com/Cloudsky01/rivet-deploy/internal/state"
	"github.com/Cloudsky01/rivet-deploy/internal/tui"
	"github.com/Cloudsky01/rivet-deploy/internal/tui/theme"
	"github.com/Cloudsky01/rivet-deploy/internal/wizard"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

var (
	watchPlain bool
	statePath  string
	noState    bool
	forget     bool

	watchCmd = &cobra.Command{
		Use:   "watch [run-id]",
		Short: "Follow a workflow run live",
		Long: `Follow a workflow run until it completes, merging real-time webhook events
with periodic refreshes from the GitHub API.

Without a run id, watch resumes the last run it followed. With --repo and
no run id it waits for the next deployment run announced on the bus, which
requires bus.driver=redis and a running 'rivet-deploy serve'.

In a terminal the run is shown in an interactive viewer; otherwise, or
with --plain, one line is printed per change. The command exits non-zero
when the run does not conclude successfully.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
)

func init() {
	addRepoFlag(watchCmd)
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print line-by-line updates instead of the interactive viewer")
	watchCmd.Flags().StringVar(&statePath, "state", "", "Path to state file (default: $XDG_STATE_HOME/rivet-deploy/state.yaml)")
	watchCmd.Flags().BoolVar(&noState, "no-state", false, "Do not resume or remember the watched run")
	watchCmd.Flags().BoolVar(&forget, "forget", false, "Forget the remembered run and exit")

	rootCmd.AddCommand(watchCmd)
}

type watchTarget struct {
	owner, repo string
	runID       int64
	resumed     bool
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}

	path := statePath
	if path == "" && !noState {
		if path, err = state.DefaultPath(); err != nil {
			e.logger.Warn("state file unavailable", "error", err)
			noState = true
		}
	}

	if forget {
		if noState {
			return fmt.Errorf("--forget needs a state file")
		}
		if err := state.Clear(path); err != nil {
			return fmt.Errorf("failed to clear %s: %w", path, err)
		}
		fmt.Println(successStyle.Render("✓ Forgot the remembered run"))
		return nil
	}

	target, err := resolveWatchTarget(e, args, path)
	if err != nil {
		return err
	}
	if target.runID == 0 && e.cfg.Bus.Driver != config.BusDriverRedis {
		return fmt.Errorf("no run id given and nothing to resume; following the next run needs bus.driver=redis")
	}
	if target.resumed {
		fmt.Fprintln(os.Stderr, infoStyle.Render(fmt.Sprintf("Resuming run %d in %s/%s", target.runID, target.owner, target.repo)))
	}

	interactive := wizard.IsTTY() && !watchPlain
	if interactive {
		// Log output would tear the full-screen viewer.
		e.logger = slog.New(slog.DiscardHandler)
		slog.SetDefault(e.logger)
	}

	client, err := e.githubClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	b, err := openBus(ctx, e.cfg.Bus, e.logger)
	if err != nil {
		return err
	}
	defer b.Close()
	if e.cfg.Bus.Driver == config.BusDriverMemory {
		e.logger.Info("no shared bus configured; relying on periodic refresh",
			"interval", e.cfg.Watch.PollInterval)
	}

	fetcher := runstatus.NewAggregator(client, e.logger)

	var snap reconciler.Snapshot
	if interactive {
		snap, err = watchInteractive(ctx, e.cfg.Watch, target, fetcher, b)
	} else {
		snap, err = reconciler.Watch(ctx, reconciler.WatchOptions{
			Owner:        target.owner,
			Repo:         target.repo,
			RunID:        target.runID,
			Fetcher:      fetcher,
			Subscriber:   b,
			PollInterval: e.cfg.Watch.PollInterval,
			MaxWait:      e.cfg.Watch.MaxWait,
			OnChange:     plainPrinter(),
			Logger:       e.logger,
		})
	}

	if !noState && snap.RunID != 0 {
		rememberRun(e.logger, path, target, snap)
	}
	if err != nil {
		return err
	}

	return finalResult(snap)
}

// resolveWatchTarget picks the run: an explicit id, else the remembered
// run unless --repo was given, else the next run on the repository.
func resolveWatchTarget(e *env, args []string, path string) (watchTarget, error) {
	if len(args) == 1 {
		runID, err := parseRunID(args[0])
		if err != nil {
			return watchTarget{}, err
		}
		owner, name, err := e.repository()
		return watchTarget{owner: owner, repo: name, runID: runID}, err
	}

	if repo == "" && !noState {
		saved, err := state.Load(path)
		if err != nil {
			return watchTarget{}, err
		}
		if !saved.Empty() {
			owner, name, err := config.SplitRepository(saved.Repository)
			if err == nil {
				return watchTarget{owner: owner, repo: name, runID: saved.RunID, resumed: true}, nil
			}
		}
	}

	owner, name, err := e.repository()
	return watchTarget{owner: owner, repo: name}, err
}

func watchInteractive(ctx context.Context, cfg config.WatchSettings, target watchTarget, fetcher reconciler.Fetcher, b bus.Subscriber) (reconciler.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.MaxWait)
	defer cancel()

	sub, err := b.Subscribe(ctx, models.EventsChannel)
	if err != nil {
		return reconciler.Snapshot{}, fmt.Errorf("subscribing to %s: %w", models.EventsChannel, err)
	}
	defer sub.Close()

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = reconciler.DefaultPollInterval
	}

	model := tui.New(ctx, tui.Options{
		Owner:        target.owner,
		Repo:         target.repo,
		RunID:        target.runID,
		Fetcher:      fetcher,
		Subscription: sub,
		PollInterval: pollInterval,
	})

	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	snap := model.Snapshot()
	if m, ok := final.(tui.Model); ok {
		snap = m.Snapshot()
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return snap, fmt.Errorf("%w after %v", reconciler.ErrWatchTimeout, cfg.MaxWait)
		}
		return snap, err
	}
	return snap, nil
}

// plainPrinter prints a line whenever the visible state changes.
func plainPrinter() func(reconciler.Snapshot) {
	var last string
	return func(snap reconciler.Snapshot) {
		key := snapshotKey(snap)
		if key == last {
			return
		}
		last = key
		printSnapshotLine(os.Stdout, snap)
	}
}

func snapshotKey(snap reconciler.Snapshot) string {
	key := snap.String()
	if snap.Tree != nil {
		completed, total := snap.Tree.StepProgress()
		key += fmt.Sprintf(" %d/%d", completed, total)
		for _, job := range snap.Tree.Jobs {
			key += " " + job.ID + ":" + string(job.Status)
		}
	}
	return key
}

func rememberRun(logger *slog.Logger, path string, target watchTarget, snap reconciler.Snapshot) {
	saved := &state.WatchState{
		Repository: target.owner + "/" + target.repo,
		RunID:      snap.RunID,
		UpdatedAt:  time.Now().UTC(),
	}
	if snap.Tree != nil {
		saved.Workflow = snap.Tree.Name
		saved.Ref = snap.Tree.Branch
	}
	if err := saved.Save(path); err != nil {
		logger.Warn("failed to remember watched run", "path", path, "error", err)
	}
}

func finalResult(snap reconciler.Snapshot) error {
	if snap.Tree == nil || !snap.Done() {
		// Quit from the viewer before the run finished.
		return nil
	}

	fmt.Println()
	fmt.Println(tui.Render(snap.Tree, 80))

	if snap.Tree.Conclusion != models.ConclusionSuccess {
		return fmt.Errorf("run %d concluded %s", snap.RunID, theme.StatusLabel(snap.Tree.Status, snap.Tree.Conclusion))
	}
	return nil
}
