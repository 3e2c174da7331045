package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

// GitHub event types the router understands. Anything else is ignored.
const (
	EventWorkflowJob = "workflow_job"
	EventWorkflowRun = "workflow_run"
	EventCheckRun    = "check_run"
)

// EventHeader names the webhook event type.
const EventHeader = "X-GitHub-Event"

// Filter decides which deliveries are deployment-related. A delivery is
// relevant when its name contains one of NameMarkers, or, for
// workflow_run, its workflow file path contains one of PathMarkers.
// Matching is a case-sensitive substring test.
type Filter struct {
	NameMarkers []string
	PathMarkers []string
}

func DefaultFilter() Filter {
	return Filter{
		NameMarkers: []string{"Deploy", "Apigee"},
		PathMarkers: []string{"apigeex"},
	}
}

func (f Filter) matchName(name string) bool {
	return containsAny(name, f.NameMarkers)
}

func (f Filter) matchPath(path string) bool {
	return containsAny(path, f.PathMarkers)
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

type RouterOptions struct {
	Filter    Filter
	Publisher bus.Publisher
	// Now stamps routed messages; defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Router turns verified webhook deliveries into real-time messages on
// the github-events channel.
type Router struct {
	mu        sync.RWMutex
	filter    Filter
	publisher bus.Publisher
	now       func() time.Time
	logger    *slog.Logger
}

func NewRouter(opts RouterOptions) *Router {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		filter:    opts.Filter,
		publisher: opts.Publisher,
		now:       now,
		logger:    logger,
	}
}

// SetFilter swaps the relevance filter, e.g. after a config reload.
func (r *Router) SetFilter(filter Filter) {
	r.mu.Lock()
	r.filter = filter
	r.mu.Unlock()
}

func (r *Router) currentFilter() Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter
}

type repositoryPayload struct {
	FullName string `json:"full_name"`
}

type workflowJobPayload struct {
	Action      string `json:"action"`
	WorkflowJob *struct {
		ID         int64             `json:"id"`
		Name       string            `json:"name"`
		Status     models.Status     `json:"status"`
		Conclusion models.Conclusion `json:"conclusion"`
		RunID      int64             `json:"run_id"`
	} `json:"workflow_job"`
	Repository repositoryPayload `json:"repository"`
}

type workflowRunPayload struct {
	Action      string `json:"action"`
	WorkflowRun *struct {
		ID         int64             `json:"id"`
		Name       string            `json:"name"`
		Path       string            `json:"path"`
		Status     models.Status     `json:"status"`
		Conclusion models.Conclusion `json:"conclusion"`
		HeadBranch string            `json:"head_branch"`
		HeadSHA    string            `json:"head_sha"`
	} `json:"workflow_run"`
	Repository repositoryPayload `json:"repository"`
}

type checkRunPayload struct {
	Action   string `json:"action"`
	CheckRun *struct {
		ID         int64             `json:"id"`
		Name       string            `json:"name"`
		Status     models.Status     `json:"status"`
		Conclusion models.Conclusion `json:"conclusion"`
	} `json:"check_run"`
	Repository repositoryPayload `json:"repository"`
}

// ErrMalformedPayload wraps decoding failures of an authenticated body.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Route classifies a delivery. It returns nil and no error for event
// types it does not handle and for deliveries the filter rejects.
func (r *Router) Route(eventType string, payload []byte) (*bus.Message, error) {
	filter := r.currentFilter()
	timestamp := r.now().UTC().Format(time.RFC3339Nano)

	var (
		event string
		data  any
	)

	switch eventType {
	case EventWorkflowJob:
		var p workflowJobPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if p.WorkflowJob == nil {
			return nil, fmt.Errorf("%w: missing workflow_job", ErrMalformedPayload)
		}
		if !filter.matchName(p.WorkflowJob.Name) {
			return nil, nil
		}
		event = models.EventWorkflowJobUpdate
		data = models.JobUpdate{
			Action:     p.Action,
			JobID:      p.WorkflowJob.ID,
			JobName:    p.WorkflowJob.Name,
			Status:     p.WorkflowJob.Status,
			Conclusion: p.WorkflowJob.Conclusion,
			RunID:      p.WorkflowJob.RunID,
			Repository: p.Repository.FullName,
			Timestamp:  timestamp,
		}

	case EventWorkflowRun:
		var p workflowRunPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if p.WorkflowRun == nil {
			return nil, fmt.Errorf("%w: missing workflow_run", ErrMalformedPayload)
		}
		if !filter.matchName(p.WorkflowRun.Name) && !filter.matchPath(p.WorkflowRun.Path) {
			return nil, nil
		}
		event = models.EventWorkflowRunUpdate
		data = models.RunUpdate{
			Action:     p.Action,
			RunID:      p.WorkflowRun.ID,
			RunName:    p.WorkflowRun.Name,
			Status:     p.WorkflowRun.Status,
			Conclusion: p.WorkflowRun.Conclusion,
			Repository: p.Repository.FullName,
			Branch:     p.WorkflowRun.HeadBranch,
			CommitSHA:  p.WorkflowRun.HeadSHA,
			Timestamp:  timestamp,
		}

	case EventCheckRun:
		var p checkRunPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		if p.CheckRun == nil {
			return nil, fmt.Errorf("%w: missing check_run", ErrMalformedPayload)
		}
		if !filter.matchName(p.CheckRun.Name) {
			return nil, nil
		}
		event = models.EventCheckRunUpdate
		data = models.CheckRunUpdate{
			Action:       p.Action,
			CheckRunID:   p.CheckRun.ID,
			CheckRunName: p.CheckRun.Name,
			Status:       p.CheckRun.Status,
			Conclusion:   p.CheckRun.Conclusion,
			Repository:   p.Repository.FullName,
			Timestamp:    timestamp,
		}

	default:
		return nil, nil
	}

	msg, err := bus.NewMessage(models.EventsChannel, event, data)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Relay routes a delivery and publishes the result. It reports whether a
// message was published.
func (r *Router) Relay(ctx context.Context, eventType string, payload []byte) (bool, error) {
	msg, err := r.Route(eventType, payload)
	if err != nil || msg == nil {
		return false, err
	}
	if r.publisher == nil {
		return false, errors.New("webhook router has no publisher")
	}
	if err := r.publisher.Publish(ctx, *msg); err != nil {
		return false, fmt.Errorf("publishing %s: %w", msg.Event, err)
	}

	r.logger.Debug("webhook relayed",
		"event_type", eventType,
		"bus_event", msg.Event,
		"message_id", msg.ID,
	)
	return true, nil
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
