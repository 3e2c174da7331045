package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

// Request asks for a new run of a workflow. WorkflowRef is a numeric id,
// a workflow path or a display name; in ManualMode it is passed to GitHub
// verbatim without resolution.
type Request struct {
	Owner       string            `json:"owner"`
	Repo        string            `json:"repo"`
	WorkflowRef string            `json:"workflowId"`
	Ref         string            `json:"ref"`
	Inputs      map[string]string `json:"inputs,omitempty"`
	ManualMode  bool              `json:"manualMode,omitempty"`
}

func (r Request) Validate() error {
	var missing []string
	if r.Owner == "" {
		missing = append(missing, "owner")
	}
	if r.Repo == "" {
		missing = append(missing, "repo")
	}
	if r.WorkflowRef == "" {
		missing = append(missing, "workflowId")
	}
	if r.Ref == "" {
		missing = append(missing, "ref")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Success describes an accepted dispatch. GitHub does not return the run
// id; the run shows up through webhooks.
type Success struct {
	WorkflowID   string `json:"workflowId"`
	WorkflowName string `json:"workflowName,omitempty"`
	WorkflowPath string `json:"workflowPath,omitempty"`
}

type FailureKind string

const (
	FailureInvalidRequest     FailureKind = "invalid_request"
	FailureRepositoryNotFound FailureKind = "repository_not_found"
	FailureWorkflowNotFound   FailureKind = "workflow_not_found"
	FailurePermissionDenied   FailureKind = "permission_denied"
	FailureTransient          FailureKind = "transient"
	FailureUnknown            FailureKind = "unknown"
)

// Failure is a dispatch that did not go through. Candidates is set only
// when the workflow reference could not be resolved.
type Failure struct {
	Kind             FailureKind
	Message          string
	Details          string
	StatusCode       int
	DocumentationURL string
	Candidates       []models.WorkflowDescriptor
	Err              error
}

func (f *Failure) Error() string {
	if f.Details != "" {
		return f.Message + ": " + f.Details
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// Dispatcher validates the repository, resolves the workflow and
// triggers a run. It does not deduplicate: two identical requests
// create two runs.
type Dispatcher struct {
	api      API
	resolver *Resolver
	logger   *slog.Logger
}

func NewDispatcher(api API, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		api:      api,
		resolver: NewResolver(api, logger),
		logger:   logger,
	}
}

// Dispatch runs the request. Every error it returns is a *Failure.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Success, error) {
	if err := req.Validate(); err != nil {
		return nil, &Failure{Kind: FailureInvalidRequest, Message: err.Error(), Err: err}
	}
	fullName := req.Owner + "/" + req.Repo

	if _, err := d.api.GetRepository(ctx, req.Owner, req.Repo); err != nil {
		switch github.Classify(err) {
		case github.KindNotFound, github.KindPermissionDenied:
			return nil, remoteFailure(FailureRepositoryNotFound,
				fmt.Sprintf("repository not found or access denied: %s", fullName), err)
		default:
			return nil, genericFailure(fmt.Sprintf("failed to look up repository %s", fullName), err)
		}
	}

	target := models.WorkflowDescriptor{ID: req.WorkflowRef, Path: req.WorkflowRef}
	if !req.ManualMode {
		resolved, err := d.resolver.Resolve(ctx, req.Owner, req.Repo, req.WorkflowRef)
		if err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				return nil, &Failure{
					Kind:       FailureWorkflowNotFound,
					Message:    fmt.Sprintf("workflow %q not found in %s; choose one of the available workflows", req.WorkflowRef, fullName),
					Candidates: notFound.Candidates,
					StatusCode: 404,
					Err:        err,
				}
			}
			return nil, genericFailure(fmt.Sprintf("failed to list workflows in %s", fullName), err)
		}
		target = resolved
	}

	inputs := req.Inputs
	if inputs == nil {
		inputs = map[string]string{}
	}

	d.logger.Info("dispatching workflow",
		"repository", fullName,
		"workflow_id", target.ID,
		"workflow_name", target.Name,
		"ref", req.Ref,
		"manual", req.ManualMode,
	)

	err := d.api.DispatchWorkflow(ctx, req.Owner, req.Repo, target.ID, github.DispatchRequest{
		Ref:    req.Ref,
		Inputs: inputs,
	})
	if err != nil {
		switch github.Classify(err) {
		case github.KindNotFound:
			return nil, remoteFailure(FailureWorkflowNotFound,
				fmt.Sprintf("workflow %q was not found in %s at ref %q; check the file exists in %s on that ref",
					req.WorkflowRef, fullName, req.Ref, github.WorkflowsDir), err)
		case github.KindPermissionDenied:
			return nil, remoteFailure(FailurePermissionDenied,
				fmt.Sprintf("token lacks permission to dispatch workflows in %s; it needs the 'workflow' scope and access to the repository", fullName), err)
		default:
			return nil, genericFailure("failed to trigger workflow", err)
		}
	}

	return &Success{
		WorkflowID:   target.ID,
		WorkflowName: target.Name,
		WorkflowPath: target.Path,
	}, nil
}

func remoteFailure(kind FailureKind, message string, err error) *Failure {
	failure := &Failure{Kind: kind, Message: message, Err: err}
	if apiErr, ok := github.AsAPIError(err); ok {
		failure.Details = apiErr.Message
		failure.StatusCode = apiErr.StatusCode
		failure.DocumentationURL = apiErr.DocumentationURL
	} else {
		failure.Details = err.Error()
	}
	return failure
}

// genericFailure keeps the remote message for transient and unclassified
// errors so the caller can show it verbatim.
func genericFailure(message string, err error) *Failure {
	kind := FailureUnknown
	if github.Classify(err) == github.KindTransient {
		kind = FailureTransient
	}
	return remoteFailure(kind, message, err)
}

// Workflows lists every workflow defined in the repository. A missing or
// inaccessible repository is a FailureRepositoryNotFound.
func (d *Dispatcher) Workflows(ctx context.Context, owner, repo string) ([]models.WorkflowDescriptor, error) {
	fullName := owner + "/" + repo
	if _, err := d.api.GetRepository(ctx, owner, repo); err != nil {
		switch github.Classify(err) {
		case github.KindNotFound, github.KindPermissionDenied:
			return nil, remoteFailure(FailureRepositoryNotFound,
				fmt.Sprintf("repository not found: %s", fullName), err)
		default:
			return nil, genericFailure(fmt.Sprintf("failed to look up repository %s", fullName), err)
		}
	}

	workflows, err := d.api.ListWorkflows(ctx, owner, repo)
	if err != nil {
		return nil, genericFailure("failed to fetch workflows", err)
	}

	out := make([]models.WorkflowDescriptor, 0, len(workflows))
	for _, w := range workflows {
		out = append(out, descriptor(w))
	}
	return out, nil
}
