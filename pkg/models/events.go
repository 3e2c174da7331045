package models

// Channel and event names of the real-time bus.
const (
	EventsChannel = "github-events"

	EventWorkflowJobUpdate = "workflow-job-update"
	EventWorkflowRunUpdate = "workflow-run-update"
	EventCheckRunUpdate    = "check-run-update"
)

// JobUpdate is published for relevant workflow_job webhook deliveries.
type JobUpdate struct {
	Action     string     `json:"action"`
	JobID      int64      `json:"jobId"`
	JobName    string     `json:"jobName"`
	Status     Status     `json:"status"`
	Conclusion Conclusion `json:"conclusion"`
	RunID      int64      `json:"runId"`
	Repository string     `json:"repository"`
	Timestamp  string     `json:"timestamp"`
}

// RunUpdate is published for relevant workflow_run webhook deliveries.
type RunUpdate struct {
	Action     string     `json:"action"`
	RunID      int64      `json:"runId"`
	RunName    string     `json:"runName"`
	Status     Status     `json:"status"`
	Conclusion Conclusion `json:"conclusion"`
	Repository string     `json:"repository"`
	Branch     string     `json:"branch"`
	CommitSHA  string     `json:"commitSha"`
	Timestamp  string     `json:"timestamp"`
}

// CheckRunUpdate is published for relevant check_run webhook deliveries.
type CheckRunUpdate struct {
	Action       string     `json:"action"`
	CheckRunID   int64      `json:"checkRunId"`
	CheckRunName string     `json:"checkRunName"`
	Status       Status     `json:"status"`
	Conclusion   Conclusion `json:"conclusion"`
	Repository   string     `json:"repository"`
	Timestamp    string     `json:"timestamp"`
}
