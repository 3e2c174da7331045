package github

import (
	"errors"
	"testing"
)

func TestNewTokenStatus(t *testing.T) {
	user := &User{Login: "octocat"}

	tests := []struct {
		name      string
		scopes    []string
		err       error
		wantValid bool
		wantScope bool
		wantCode  int
	}{
		{name: "workflow scope", scopes: []string{"repo", "workflow"}, wantValid: true, wantScope: true},
		{name: "no workflow scope", scopes: []string{"repo"}, wantValid: true},
		{name: "scope prefix is not enough", scopes: []string{"workflows:read"}, wantValid: true},
		{name: "not configured", err: ErrTokenNotConfigured},
		{name: "bad credentials", err: &APIError{StatusCode: 401, Message: "Bad credentials"}, wantCode: 401},
		{name: "network", err: errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTokenStatus(user, tt.scopes, tt.err)
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", got.Valid, tt.wantValid)
			}
			if got.HasWorkflowScope != tt.wantScope {
				t.Errorf("HasWorkflowScope = %v, want %v", got.HasWorkflowScope, tt.wantScope)
			}
			if got.StatusCode != tt.wantCode {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.wantCode)
			}
			if got.Message == "" {
				t.Error("Message is empty")
			}
			if tt.wantValid && got.Username != "octocat" {
				t.Errorf("Username = %q, want octocat", got.Username)
			}
		})
	}
}
