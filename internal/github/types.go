package github

import (
	"strings"
	"time"

	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

// Repository is the subset of a GitHub repository we read.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

// Workflow is a GitHub Actions workflow definition.
type Workflow struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"` // ".github/workflows/deploy.yml"
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

type workflowList struct {
	TotalCount int        `json:"total_count"`
	Workflows  []Workflow `json:"workflows"`
}

// WorkflowRun is a GitHub Actions workflow run.
type WorkflowRun struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Path       string            `json:"path"`
	Status     models.Status     `json:"status"`
	Conclusion models.Conclusion `json:"conclusion"`
	HeadBranch string            `json:"head_branch"`
	HeadSHA    string            `json:"head_sha"`
	RunNumber  int               `json:"run_number"`
	HTMLURL    string            `json:"html_url"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Job is a job of a workflow run, including its steps.
type Job struct {
	ID          int64             `json:"id"`
	RunID       int64             `json:"run_id"`
	Name        string            `json:"name"`
	Status      models.Status     `json:"status"`
	Conclusion  models.Conclusion `json:"conclusion"`
	StartedAt   *time.Time        `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at"`
	Steps       []Step            `json:"steps"`
}

// Step is a single step of a job.
type Step struct {
	Name        string            `json:"name"`
	Status      models.Status     `json:"status"`
	Conclusion  models.Conclusion `json:"conclusion"`
	Number      int               `json:"number"`
	StartedAt   *time.Time        `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at"`
}

type jobList struct {
	TotalCount int   `json:"total_count"`
	Jobs       []Job `json:"jobs"`
}

// User is the authenticated account behind the token.
type User struct {
	Login   string `json:"login"`
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// DispatchRequest is the body of a workflow_dispatch call. Inputs is
// always sent, empty when the caller supplied none.
type DispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs"`
}

// WorkflowsDir is the directory GitHub loads workflow definitions from.
const WorkflowsDir = ".github/workflows/"

// FileName returns the workflow file name without WorkflowsDir.
func (w Workflow) FileName() string {
	return strings.TrimPrefix(w.Path, WorkflowsDir)
}
