package models

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a run, job or step.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// IsTerminal reports whether no further status change is expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// Conclusion is the outcome of a completed run, job or step. The zero
// value means no conclusion yet and encodes as JSON null.
type Conclusion string

const (
	ConclusionNone           Conclusion = ""
	ConclusionSuccess        Conclusion = "success"
	ConclusionFailure        Conclusion = "failure"
	ConclusionCancelled      Conclusion = "cancelled"
	ConclusionSkipped        Conclusion = "skipped"
	ConclusionTimedOut       Conclusion = "timed_out"
	ConclusionActionRequired Conclusion = "action_required"
)

func (c Conclusion) MarshalJSON() ([]byte, error) {
	if c == ConclusionNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *Conclusion) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ConclusionNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Conclusion(s)
	return nil
}

// LogsUnavailable replaces the log listing of a completed run when the
// log archive could not be downloaded.
const LogsUnavailable = "logs unavailable"

// WorkflowDescriptor identifies a workflow definition in a repository
type WorkflowDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// RunStatus is the normalized status tree of one workflow run
type RunStatus struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Status     Status      `json:"status"`
	Conclusion Conclusion  `json:"conclusion"`
	Repository string      `json:"repository"`
	Branch     string      `json:"branch"`
	CommitSHA  string      `json:"commitSha"`
	RunNumber  int         `json:"runNumber"`
	URL        string      `json:"url"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Jobs       []JobStatus `json:"jobs"`
	Logs       []string    `json:"logs,omitempty"`
}

// Job returns the job with the given id, or nil.
func (r *RunStatus) Job(id string) *JobStatus {
	for i := range r.Jobs {
		if r.Jobs[i].ID == id {
			return &r.Jobs[i]
		}
	}
	return nil
}

// StepProgress counts completed steps across all jobs.
func (r *RunStatus) StepProgress() (completed, total int) {
	for _, job := range r.Jobs {
		for _, step := range job.Steps {
			total++
			if step.Status == StatusCompleted {
				completed++
			}
		}
	}
	return completed, total
}

// Clone returns a deep copy so reducers never share job or step slices.
func (r *RunStatus) Clone() *RunStatus {
	if r == nil {
		return nil
	}
	out := *r
	out.Jobs = make([]JobStatus, len(r.Jobs))
	for i, job := range r.Jobs {
		out.Jobs[i] = job
		out.Jobs[i].Steps = append([]StepStatus(nil), job.Steps...)
		if job.StartedAt != nil {
			t := *job.StartedAt
			out.Jobs[i].StartedAt = &t
		}
		if job.CompletedAt != nil {
			t := *job.CompletedAt
			out.Jobs[i].CompletedAt = &t
		}
	}
	out.Logs = append([]string(nil), r.Logs...)
	return &out
}

// JobStatus is a job within a run; Steps are in execution order
type JobStatus struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      Status       `json:"status"`
	Conclusion  Conclusion   `json:"conclusion"`
	StartedAt   *time.Time   `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt"`
	Steps       []StepStatus `json:"steps"`
}

// StepStatus is a single step; Number orders steps within a job
type StepStatus struct {
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	Conclusion  Conclusion `json:"conclusion"`
	Number      int        `json:"number"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}
