// Package runstatus assembles the status tree of a workflow run from the
// GitHub REST API.
package runstatus

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

const (
	defaultRunName = "Workflow Run"
	defaultBranch  = "unknown"
)

// API is the part of the GitHub client the aggregator uses.
type API interface {
	GetWorkflowRun(ctx context.Context, owner, repo string, runID int64) (*github.WorkflowRun, error)
	ListRunJobs(ctx context.Context, owner, repo string, runID int64) ([]github.Job, error)
	DownloadRunLogs(ctx context.Context, owner, repo string, runID int64) ([]byte, error)
}

type Aggregator struct {
	api    API
	logger *slog.Logger
}

func NewAggregator(api API, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{api: api, logger: logger}
}

// GetRunStatus fetches the run, its jobs with their steps and, once the
// run has completed, the names of its log files. It returns nil and no
// error when the run does not exist. A failed log download does not fail
// the call; Logs is then the single models.LogsUnavailable entry.
func (a *Aggregator) GetRunStatus(ctx context.Context, owner, repo string, runID int64) (*models.RunStatus, error) {
	run, err := a.api.GetWorkflowRun(ctx, owner, repo, runID)
	if err != nil {
		if github.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	jobs, err := a.api.ListRunJobs(ctx, owner, repo, runID)
	if err != nil {
		return nil, err
	}

	status := &models.RunStatus{
		ID:         strconv.FormatInt(run.ID, 10),
		Name:       orDefault(run.Name, defaultRunName),
		Status:     run.Status,
		Conclusion: run.Conclusion,
		Repository: owner + "/" + repo,
		Branch:     orDefault(run.HeadBranch, defaultBranch),
		CommitSHA:  run.HeadSHA,
		RunNumber:  run.RunNumber,
		URL:        run.HTMLURL,
		CreatedAt:  run.CreatedAt,
		UpdatedAt:  run.UpdatedAt,
		Jobs:       make([]models.JobStatus, 0, len(jobs)),
	}
	if !status.Status.IsTerminal() {
		status.Conclusion = models.ConclusionNone
	}
	for _, job := range jobs {
		status.Jobs = append(status.Jobs, convertJob(job))
	}

	if status.Status.IsTerminal() {
		status.Logs = a.logs(ctx, owner, repo, runID)
	}

	return status, nil
}

func (a *Aggregator) logs(ctx context.Context, owner, repo string, runID int64) []string {
	archive, err := a.api.DownloadRunLogs(ctx, owner, repo, runID)
	if err == nil {
		var names []string
		names, err = logFiles(archive)
		if err == nil {
			return names
		}
	}
	a.logger.Warn("run logs unavailable",
		"repository", owner+"/"+repo,
		"run_id", runID,
		"error", err,
	)
	return []string{models.LogsUnavailable}
}

// logFiles lists the per-step log files of a run log archive.
func logFiles(archive []byte) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("reading log archive: %w", err)
	}
	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names, nil
}

func convertJob(job github.Job) models.JobStatus {
	out := models.JobStatus{
		ID:          strconv.FormatInt(job.ID, 10),
		Name:        job.Name,
		Status:      job.Status,
		Conclusion:  job.Conclusion,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Steps:       make([]models.StepStatus, 0, len(job.Steps)),
	}
	for _, step := range job.Steps {
		out.Steps = append(out.Steps, models.StepStatus{
			Name:        step.Name,
			Status:      step.Status,
			Conclusion:  step.Conclusion,
			Number:      step.Number,
			StartedAt:   step.StartedAt,
			CompletedAt: step.CompletedAt,
		})
	}
	sort.SliceStable(out.Steps, func(i, j int) bool {
		return out.Steps[i].Number < out.Steps[j].Number
	})
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
