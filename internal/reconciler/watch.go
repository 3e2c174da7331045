package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

const (
	DefaultPollInterval = 15 * time.Second
	DefaultMaxWait      = 2 * time.Hour
)

// ErrWatchTimeout is returned when a run does not complete within MaxWait.
var ErrWatchTimeout = errors.New("gave up waiting for run to complete")

// Fetcher loads the full status tree of a run; nil with no error means
// the run does not exist.
type Fetcher interface {
	GetRunStatus(ctx context.Context, owner, repo string, runID int64) (*models.RunStatus, error)
}

type WatchOptions struct {
	Owner string
	Repo  string
	// RunID may be zero to follow the next run announced on the bus.
	RunID int64

	Fetcher    Fetcher
	Subscriber bus.Subscriber

	// PollInterval refreshes the tree while the run is in progress, which
	// covers stages that wait on approvals and emit no events. Zero uses
	// DefaultPollInterval; negative disables polling.
	PollInterval time.Duration
	MaxWait      time.Duration

	// OnChange is called with every new snapshot, from the Watch goroutine.
	OnChange func(Snapshot)
	Now      func() time.Time
	Logger   *slog.Logger
}

type fetchResult struct {
	seq  uint64
	tree *models.RunStatus
	err  error
}

// Watch follows a run until it completes, a fetch fails, MaxWait passes or
// ctx is cancelled. It holds exactly one subscription for its lifetime.
// The run counts as complete only once a full fetch has confirmed it, so
// the final snapshot carries jobs and logs.
func Watch(ctx context.Context, opts WatchOptions) (Snapshot, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := opts.Subscriber.Subscribe(ctx, models.EventsChannel)
	if err != nil {
		return Snapshot{}, fmt.Errorf("subscribing to %s: %w", models.EventsChannel, err)
	}
	defer sub.Close()

	viewer := NewViewer(opts.Owner, opts.Repo, opts.RunID, opts.Now)
	results := make(chan fetchResult, 1)

	fetch := func(req FetchRequest) {
		go func() {
			tree, err := opts.Fetcher.GetRunStatus(ctx, req.Owner, req.Repo, req.RunID)
			select {
			case results <- fetchResult{seq: req.Seq, tree: tree, err: err}:
			case <-ctx.Done():
			}
		}()
	}
	notify := func() {
		if opts.OnChange != nil {
			opts.OnChange(viewer.Snapshot())
		}
	}

	if req, ok := viewer.Mount(); ok {
		fetch(req)
	}
	notify()

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	var poll <-chan time.Time
	if pollInterval > 0 {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	// confirming is set once a merge completes the run and a final fetch
	// is in flight.
	confirming := false

	for {
		select {
		case <-ctx.Done():
			return viewer.Snapshot(), ctx.Err()

		case <-deadline.C:
			return viewer.Snapshot(), fmt.Errorf("%w after %v", ErrWatchTimeout, maxWait)

		case msg, ok := <-sub.Messages():
			if !ok {
				return viewer.Snapshot(), errors.New("real-time subscription closed")
			}
			req, changed, err := viewer.Deliver(msg)
			if err != nil {
				logger.Warn("dropping undecodable message", "event", msg.Event, "message_id", msg.ID, "error", err)
				continue
			}
			if req.Seq != 0 {
				fetch(req)
			}
			if !changed {
				continue
			}
			notify()
			if snap := viewer.Snapshot(); snap.Done() && !confirming {
				if req, ok := viewer.Refresh(); ok {
					confirming = true
					fetch(req)
				}
			}

		case res := <-results:
			if !viewer.Complete(res.seq, res.tree, res.err) {
				logger.Debug("discarding stale fetch", "seq", res.seq)
				continue
			}
			notify()
			snap := viewer.Snapshot()
			if snap.State == StateError {
				return snap, snap.Err
			}
			if snap.Done() {
				return snap, nil
			}

		case <-poll:
			if viewer.State() != StateReady {
				continue
			}
			if req, ok := viewer.Refresh(); ok {
				fetch(req)
			}
		}
	}
}
