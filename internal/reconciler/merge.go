// Package reconciler keeps a live view of one workflow run by merging
// real-time updates into the status tree fetched from GitHub.
package reconciler

import (
	"strconv"
	"time"

	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

// statusRank orders statuses so merges only move forward. Unknown
// statuses rank lowest.
func statusRank(s models.Status) int {
	switch s {
	case models.StatusQueued:
		return 1
	case models.StatusInProgress:
		return 2
	case models.StatusCompleted:
		return 3
	default:
		return 0
	}
}

// advances reports whether moving from current to next is allowed. A
// completed entity never changes again.
func advances(current, next models.Status) bool {
	if next == "" || current.IsTerminal() {
		return false
	}
	return statusRank(next) >= statusRank(current)
}

func conclusionFor(status models.Status, conclusion models.Conclusion) models.Conclusion {
	if !status.IsTerminal() {
		return models.ConclusionNone
	}
	return conclusion
}

// MergeRun applies a run update to tree and returns the result together
// with whether anything changed. tree is never modified; an update for
// another run, or one that would move the run backwards, returns tree
// unchanged.
func MergeRun(tree *models.RunStatus, update models.RunUpdate) (*models.RunStatus, bool) {
	if tree == nil || tree.ID != strconv.FormatInt(update.RunID, 10) {
		return tree, false
	}
	if !advances(tree.Status, update.Status) {
		return tree, false
	}

	conclusion := conclusionFor(update.Status, update.Conclusion)
	updatedAt := tree.UpdatedAt
	if ts, err := time.Parse(time.RFC3339Nano, update.Timestamp); err == nil && ts.After(updatedAt) {
		updatedAt = ts
	}

	if tree.Status == update.Status && tree.Conclusion == conclusion && tree.UpdatedAt.Equal(updatedAt) {
		return tree, false
	}

	out := tree.Clone()
	out.Status = update.Status
	out.Conclusion = conclusion
	out.UpdatedAt = updatedAt
	return out, true
}

// MergeJob applies a job update to the matching job of tree. Updates for
// jobs the tree does not contain are ignored; the next full fetch picks
// them up. completedAt is set to now the first time a job completes.
func MergeJob(tree *models.RunStatus, update models.JobUpdate, now time.Time) (*models.RunStatus, bool) {
	if tree == nil || tree.ID != strconv.FormatInt(update.RunID, 10) {
		return tree, false
	}
	job := tree.Job(strconv.FormatInt(update.JobID, 10))
	if job == nil || !advances(job.Status, update.Status) {
		return tree, false
	}

	conclusion := conclusionFor(update.Status, update.Conclusion)
	if job.Status == update.Status && job.Conclusion == conclusion {
		return tree, false
	}

	out := tree.Clone()
	merged := out.Job(job.ID)
	merged.Status = update.Status
	merged.Conclusion = conclusion
	if update.Status.IsTerminal() && merged.CompletedAt == nil {
		completed := now
		merged.CompletedAt = &completed
	}
	return out, true
}

// MergeFetched reconciles a freshly fetched tree with the current one.
// The fetched tree wins except where the current tree already saw the
// run or a job complete and the fetch, issued earlier, did not.
func MergeFetched(current, fetched *models.RunStatus) *models.RunStatus {
	if current == nil || fetched == nil || current.ID != fetched.ID {
		return fetched
	}

	out := fetched.Clone()
	if current.Status.IsTerminal() && !out.Status.IsTerminal() {
		out.Status = current.Status
		out.Conclusion = current.Conclusion
		if current.UpdatedAt.After(out.UpdatedAt) {
			out.UpdatedAt = current.UpdatedAt
		}
	}
	for i := range out.Jobs {
		prev := current.Job(out.Jobs[i].ID)
		if prev == nil || !prev.Status.IsTerminal() || out.Jobs[i].Status.IsTerminal() {
			continue
		}
		out.Jobs[i].Status = prev.Status
		out.Jobs[i].Conclusion = prev.Conclusion
		if prev.CompletedAt != nil {
			completed := *prev.CompletedAt
			out.Jobs[i].CompletedAt = &completed
		}
	}
	return out
}
