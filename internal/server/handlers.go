package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/internal/webhook"
	"github.com/Cloudsky01/rivet-deploy/internal/workflow"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

const errTokenNotConfigured = "GitHub token not configured"

// receiveWebhook authenticates the raw body before anything reads it as
// JSON.
func (s *Server) receiveWebhook(c *gin.Context) {
	secret := s.webhookSecret()
	if secret == "" {
		s.logger.Error("webhook rejected", "error", webhook.ErrSecretNotConfigured)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if !webhook.Verify(body, secret, c.GetHeader(webhook.SignatureHeader)) {
		s.logger.Warn("webhook signature mismatch",
			"remote_addr", c.ClientIP(),
			"event_type", c.GetHeader(webhook.EventHeader),
		)
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
		return
	}

	eventType := c.GetHeader(webhook.EventHeader)
	if _, err := s.router.Relay(c.Request.Context(), eventType, body); err != nil {
		if errors.Is(err, webhook.ErrMalformedPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("webhook relay failed", "event_type", eventType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to relay event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) triggerWorkflow(c *gin.Context) {
	var req workflow.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.dispatcher == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errTokenNotConfigured})
		return
	}

	result, err := s.dispatcher.Dispatch(c.Request.Context(), req)
	if err != nil {
		s.writeFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Workflow triggered successfully",
		"workflowId":   result.WorkflowID,
		"workflowName": result.WorkflowName,
		"workflowPath": result.WorkflowPath,
	})
}

func (s *Server) getWorkflowRun(c *gin.Context) {
	owner, repo, rawID := c.Query("owner"), c.Query("repo"), c.Query("runId")
	if owner == "" || repo == "" || rawID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters: owner, repo, runId"})
		return
	}
	runID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || runID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid runId %q", rawID)})
		return
	}
	if s.aggregator == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errTokenNotConfigured})
		return
	}

	// Viewers refresh on every relevant webhook, so concurrent requests
	// for one run share a single upstream fetch. The fetch outlives any
	// one caller disconnecting.
	key := fmt.Sprintf("%s/%s#%d", owner, repo, runID)
	ctx := context.WithoutCancel(c.Request.Context())
	v, err, _ := s.runs.Do(key, func() (any, error) {
		return s.aggregator.GetRunStatus(ctx, owner, repo, runID)
	})
	if err != nil {
		s.logger.Error("fetching run status failed", "run", key, "error", err)
		body := gin.H{"error": "Failed to fetch workflow run", "details": err.Error()}
		if apiErr, ok := github.AsAPIError(err); ok {
			body["status"] = apiErr.StatusCode
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	run := v.(*models.RunStatus)
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Workflow run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) listWorkflows(c *gin.Context) {
	owner, repo := c.Query("owner"), c.Query("repo")
	if owner == "" || repo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters: owner, repo"})
		return
	}
	if s.dispatcher == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errTokenNotConfigured})
		return
	}

	workflows, err := s.dispatcher.Workflows(c.Request.Context(), owner, repo)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": workflows})
}

// validateToken always answers 200; validity is reported in the body.
func (s *Server) validateToken(c *gin.Context) {
	if s.api == nil {
		c.JSON(http.StatusOK, github.NewTokenStatus(nil, nil, github.ErrTokenNotConfigured))
		return
	}
	user, scopes, err := s.api.GetAuthenticatedUser(c.Request.Context())
	if err != nil {
		s.logger.Warn("token validation failed", "error", err)
	}
	c.JSON(http.StatusOK, github.NewTokenStatus(user, scopes, err))
}

func (s *Server) writeFailure(c *gin.Context, err error) {
	failure, ok := workflow.AsFailure(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	body := gin.H{"error": failure.Message}
	if failure.Details != "" {
		body["details"] = failure.Details
	}
	if failure.DocumentationURL != "" {
		body["documentation_url"] = failure.DocumentationURL
	}
	if failure.StatusCode != 0 {
		body["status"] = failure.StatusCode
	}
	if failure.Candidates != nil {
		body["availableWorkflows"] = failure.Candidates
	}

	status := failureStatus(failure.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("github request failed", "kind", failure.Kind, "error", failure)
	}
	c.JSON(status, body)
}

func failureStatus(kind workflow.FailureKind) int {
	switch kind {
	case workflow.FailureInvalidRequest:
		return http.StatusBadRequest
	case workflow.FailureRepositoryNotFound, workflow.FailureWorkflowNotFound:
		return http.StatusNotFound
	case workflow.FailurePermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
