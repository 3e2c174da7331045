package github

import (
	"errors"
	"slices"
)

// WorkflowScope is the classic OAuth scope required to dispatch runs.
const WorkflowScope = "workflow"

// TokenStatus reports whether the configured token works and whether it
// can dispatch workflows.
type TokenStatus struct {
	Valid            bool     `json:"valid"`
	Username         string   `json:"username,omitempty"`
	Scopes           []string `json:"scopes,omitempty"`
	HasWorkflowScope bool     `json:"hasWorkflowScope"`
	Message          string   `json:"message"`
	Error            string   `json:"error,omitempty"`
	StatusCode       int      `json:"status,omitempty"`
}

// NewTokenStatus builds the report from the result of
// GetAuthenticatedUser. Pass ErrTokenNotConfigured when there is no
// token at all.
func NewTokenStatus(user *User, scopes []string, err error) TokenStatus {
	if errors.Is(err, ErrTokenNotConfigured) {
		return TokenStatus{
			Error:   "GitHub token not configured",
			Message: "Set GITHUB_TOKEN or github.token in the configuration file.",
		}
	}
	if err != nil {
		status := TokenStatus{
			Error:   err.Error(),
			Message: "Failed to validate GitHub token. It may be invalid or expired.",
		}
		if apiErr, ok := AsAPIError(err); ok {
			status.StatusCode = apiErr.StatusCode
		}
		return status
	}

	status := TokenStatus{
		Valid:            true,
		Username:         user.Login,
		Scopes:           scopes,
		HasWorkflowScope: slices.Contains(scopes, WorkflowScope),
	}
	if status.HasWorkflowScope {
		status.Message = "Token is valid and has the workflow scope"
	} else {
		status.Message = "Token is valid but missing the workflow scope, which is required to trigger workflows"
	}
	return status
}
