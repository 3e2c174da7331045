package reconciler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "uninitialized"
	}
}

// ErrRunNotFound is the viewer error when a fetch finds no run.
var ErrRunNotFound = errors.New("run not found")

// FetchRequest asks the caller to fetch the full status tree of a run
// and hand the result back to Complete with the same Seq.
type FetchRequest struct {
	Seq   uint64
	Owner string
	Repo  string
	RunID int64
}

// Snapshot is a copy of the viewer's state that callers may keep.
type Snapshot struct {
	State State
	RunID int64
	Tree  *models.RunStatus
	Err   error
}

// Done reports whether the tracked run has completed.
func (s Snapshot) Done() bool {
	return s.Tree != nil && s.Tree.Status.IsTerminal()
}

// Viewer is the per-run state machine behind a live status view. It
// performs no I/O: operations that need a fetch return a FetchRequest.
// A Viewer is not safe for concurrent use; drive it from one goroutine.
type Viewer struct {
	owner string
	repo  string
	runID int64
	now   func() time.Time

	state State
	tree  *models.RunStatus
	err   error
	seq   uint64
}

// NewViewer creates a viewer for repository owner/repo. runID may be zero,
// in which case the first matching run update selects the run.
func NewViewer(owner, repo string, runID int64, now func() time.Time) *Viewer {
	if now == nil {
		now = time.Now
	}
	return &Viewer{owner: owner, repo: repo, runID: runID, now: now}
}

// Mount starts loading when the run is known.
func (v *Viewer) Mount() (FetchRequest, bool) {
	if v.runID == 0 || v.state != StateUninitialized {
		return FetchRequest{}, false
	}
	return v.load(), true
}

// Refresh requests a full fetch. It is how a user retries after an error
// and how long-running runs are polled.
func (v *Viewer) Refresh() (FetchRequest, bool) {
	if v.runID == 0 {
		return FetchRequest{}, false
	}
	return v.load(), true
}

func (v *Viewer) load() FetchRequest {
	v.seq++
	if v.tree == nil || v.state == StateError {
		v.state = StateLoading
	}
	return FetchRequest{Seq: v.seq, Owner: v.owner, Repo: v.repo, RunID: v.runID}
}

// Complete records the result of a fetch. Results of superseded requests
// are discarded and Complete reports false. A nil tree with no error means
// the run does not exist.
func (v *Viewer) Complete(seq uint64, tree *models.RunStatus, err error) bool {
	if seq != v.seq {
		return false
	}
	switch {
	case err != nil:
		v.state = StateError
		v.err = err
	case tree == nil:
		v.state = StateError
		v.err = ErrRunNotFound
	default:
		v.state = StateReady
		v.err = nil
		v.tree = MergeFetched(v.tree, tree)
	}
	return true
}

// Deliver applies a real-time message. It reports whether the visible
// state changed and, when the view has no tree yet, returns a fetch to
// issue instead of merging.
func (v *Viewer) Deliver(msg bus.Message) (FetchRequest, bool, error) {
	switch msg.Event {
	case models.EventWorkflowRunUpdate:
		var update models.RunUpdate
		if err := msg.Decode(&update); err != nil {
			return FetchRequest{}, false, err
		}
		return v.deliverRun(update)

	case models.EventWorkflowJobUpdate:
		var update models.JobUpdate
		if err := msg.Decode(&update); err != nil {
			return FetchRequest{}, false, err
		}
		return FetchRequest{}, v.deliverJob(update), nil
	}
	return FetchRequest{}, false, nil
}

func (v *Viewer) deliverRun(update models.RunUpdate) (FetchRequest, bool, error) {
	if !v.sameRepository(update.Repository) || v.state == StateError {
		return FetchRequest{}, false, nil
	}
	if v.runID == 0 {
		v.runID = update.RunID
	}
	if update.RunID != v.runID {
		return FetchRequest{}, false, nil
	}

	if v.tree == nil {
		return v.load(), true, nil
	}
	if v.state != StateReady {
		return FetchRequest{}, false, nil
	}

	merged, changed := MergeRun(v.tree, update)
	v.tree = merged
	return FetchRequest{}, changed, nil
}

func (v *Viewer) deliverJob(update models.JobUpdate) bool {
	if v.state != StateReady || v.tree == nil {
		return false
	}
	if !v.sameRepository(update.Repository) || update.RunID != v.runID {
		return false
	}
	merged, changed := MergeJob(v.tree, update, v.now().UTC())
	v.tree = merged
	return changed
}

func (v *Viewer) sameRepository(fullName string) bool {
	return strings.EqualFold(fullName, v.owner+"/"+v.repo)
}

func (v *Viewer) State() State {
	return v.state
}

func (v *Viewer) RunID() int64 {
	return v.runID
}

func (v *Viewer) Snapshot() Snapshot {
	return Snapshot{
		State: v.state,
		RunID: v.runID,
		Tree:  v.tree.Clone(),
		Err:   v.err,
	}
}

func (s Snapshot) String() string {
	if s.Tree == nil {
		return fmt.Sprintf("run %d: %s", s.RunID, s.State)
	}
	return fmt.Sprintf("run %d: %s (%s %s)", s.RunID, s.State, s.Tree.Status, s.Tree.Conclusion)
}
