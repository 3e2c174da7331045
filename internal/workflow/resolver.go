package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

// API is the part of the GitHub client the resolver and dispatcher use.
type API interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error)
	GetWorkflow(ctx context.Context, owner, repo string, workflowID int64) (*github.Workflow, error)
	ListWorkflows(ctx context.Context, owner, repo string) ([]github.Workflow, error)
	DispatchWorkflow(ctx context.Context, owner, repo, workflowID string, request github.DispatchRequest) error
}

var numericRef = regexp.MustCompile(`^[0-9]+$`)

// NotFoundError reports an unresolvable workflow reference together with
// every workflow the repository defines.
type NotFoundError struct {
	Ref        string
	Candidates []models.WorkflowDescriptor
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("workflow not found: %s", e.Ref)
}

// Resolver maps a numeric id, workflow file path or display name to the
// repository's workflow. Nothing is cached between calls.
type Resolver struct {
	api    API
	logger *slog.Logger
}

func NewResolver(api API, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{api: api, logger: logger}
}

// Resolve finds the workflow ref refers to. The first rule that matches
// wins:
//
//  1. ref is a positive integer and GetWorkflow finds it. Any error from
//     that lookup falls through, since digits can also be a file name.
//  2. a workflow's path equals ".github/workflows/<ref>" or ref itself.
//  3. a workflow's name equals ref, ignoring case.
//
// Otherwise it returns *NotFoundError. Repository existence is not
// checked here.
func (r *Resolver) Resolve(ctx context.Context, owner, repo, ref string) (models.WorkflowDescriptor, error) {
	if id, ok := positiveInt(ref); ok {
		workflow, err := r.api.GetWorkflow(ctx, owner, repo, id)
		if err == nil {
			return descriptor(*workflow), nil
		}
		r.logger.Debug("workflow id lookup failed, falling back to list",
			"repository", owner+"/"+repo,
			"ref", ref,
			"error", err,
		)
	}

	workflows, err := r.api.ListWorkflows(ctx, owner, repo)
	if err != nil {
		return models.WorkflowDescriptor{}, err
	}

	qualified := github.WorkflowsDir + ref
	for _, w := range workflows {
		if w.Path == qualified || w.Path == ref {
			return descriptor(w), nil
		}
	}

	for _, w := range workflows {
		if strings.EqualFold(w.Name, ref) {
			return descriptor(w), nil
		}
	}

	candidates := make([]models.WorkflowDescriptor, 0, len(workflows))
	for _, w := range workflows {
		candidates = append(candidates, descriptor(w))
	}
	return models.WorkflowDescriptor{}, &NotFoundError{Ref: ref, Candidates: candidates}
}

func positiveInt(ref string) (int64, bool) {
	if !numericRef.MatchString(ref) {
		return 0, false
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func descriptor(w github.Workflow) models.WorkflowDescriptor {
	return models.WorkflowDescriptor{
		ID:   strconv.FormatInt(w.ID, 10),
		Name: w.Name,
		Path: w.Path,
	}
}
