package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GetRepository fetches a repository. A missing or inaccessible
// repository yields an *APIError with status 404.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	var repository Repository
	if err := c.get(ctx, repoPath(owner, repo), &repository); err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, err)
	}
	return &repository, nil
}

// GetWorkflow fetches a workflow by its numeric id.
func (c *Client) GetWorkflow(ctx context.Context, owner, repo string, workflowID int64) (*Workflow, error) {
	var workflow Workflow
	path := fmt.Sprintf("%s/actions/workflows/%d", repoPath(owner, repo), workflowID)
	if err := c.get(ctx, path, &workflow); err != nil {
		return nil, fmt.Errorf("getting workflow %d in %s/%s: %w", workflowID, owner, repo, err)
	}
	return &workflow, nil
}

// ListWorkflows returns every workflow defined in the repository.
func (c *Client) ListWorkflows(ctx context.Context, owner, repo string) ([]Workflow, error) {
	var workflows []Workflow
	path := repoPath(owner, repo) + "/actions/workflows?per_page=100"
	err := c.getPages(ctx, path, func(body []byte) error {
		var page workflowList
		if err := json.Unmarshal(body, &page); err != nil {
			return err
		}
		workflows = append(workflows, page.Workflows...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing workflows in %s/%s: %w", owner, repo, err)
	}
	return workflows, nil
}

// DispatchWorkflow triggers a workflow_dispatch event. workflowID is a
// numeric id or a workflow file name. GitHub answers 204 with no body;
// the resulting run is only discoverable through webhooks or polling.
func (c *Client) DispatchWorkflow(ctx context.Context, owner, repo, workflowID string, request DispatchRequest) error {
	if request.Inputs == nil {
		request.Inputs = map[string]string{}
	}
	path := fmt.Sprintf("%s/actions/workflows/%s/dispatches", repoPath(owner, repo), url.PathEscape(workflowID))
	if _, _, err := c.do(ctx, http.MethodPost, path, request); err != nil {
		return fmt.Errorf("dispatching workflow %s in %s/%s: %w", workflowID, owner, repo, err)
	}
	return nil
}

// GetWorkflowRun fetches a single run.
func (c *Client) GetWorkflowRun(ctx context.Context, owner, repo string, runID int64) (*WorkflowRun, error) {
	var run WorkflowRun
	path := fmt.Sprintf("%s/actions/runs/%d", repoPath(owner, repo), runID)
	if err := c.get(ctx, path, &run); err != nil {
		return nil, fmt.Errorf("getting workflow run %d in %s/%s: %w", runID, owner, repo, err)
	}
	return &run, nil
}

// ListRunJobs returns the jobs of a run, each with its steps.
func (c *Client) ListRunJobs(ctx context.Context, owner, repo string, runID int64) ([]Job, error) {
	var jobs []Job
	path := fmt.Sprintf("%s/actions/runs/%d/jobs?per_page=100", repoPath(owner, repo), runID)
	err := c.getPages(ctx, path, func(body []byte) error {
		var page jobList
		if err := json.Unmarshal(body, &page); err != nil {
			return err
		}
		jobs = append(jobs, page.Jobs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing jobs for run %d in %s/%s: %w", runID, owner, repo, err)
	}
	return jobs, nil
}

// DownloadRunLogs returns the zip archive of a run's logs. GitHub
// redirects to a short-lived URL which the http.Client follows.
func (c *Client) DownloadRunLogs(ctx context.Context, owner, repo string, runID int64) ([]byte, error) {
	rawURL := c.baseURL + fmt.Sprintf("%s/actions/runs/%d/logs", repoPath(owner, repo), runID)
	body, _, err := c.doURL(ctx, http.MethodGet, rawURL, nil, maxLogArchiveSize)
	if err != nil {
		return nil, fmt.Errorf("downloading logs for run %d in %s/%s: %w", runID, owner, repo, err)
	}
	return body, nil
}

// GetAuthenticatedUser returns the token's user and its classic OAuth
// scopes. Fine-grained tokens report no scopes.
func (c *Client) GetAuthenticatedUser(ctx context.Context) (*User, []string, error) {
	body, header, err := c.do(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("getting authenticated user: %w", err)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, nil, fmt.Errorf("github: decoding /user: %w", err)
	}
	return &user, parseScopes(header.Get("X-OAuth-Scopes")), nil
}

func parseScopes(header string) []string {
	var scopes []string
	for _, scope := range strings.Split(header, ",") {
		scope = strings.TrimSpace(scope)
		if scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}
