package workflow

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

type dispatchCall struct {
	workflowID string
	request    github.DispatchRequest
}

// fakeAPI serves a fixed set of workflows and counts every call.
type fakeAPI struct {
	repoErr     error
	workflows   []github.Workflow
	listErr     error
	dispatchErr error

	repoCalls     int
	getCalls      int
	listCalls     int
	dispatchCalls []dispatchCall
}

func (f *fakeAPI) GetRepository(_ context.Context, owner, repo string) (*github.Repository, error) {
	f.repoCalls++
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return &github.Repository{Name: repo, FullName: owner + "/" + repo}, nil
}

func (f *fakeAPI) GetWorkflow(_ context.Context, _, _ string, workflowID int64) (*github.Workflow, error) {
	f.getCalls++
	for _, w := range f.workflows {
		if w.ID == workflowID {
			w := w
			return &w, nil
		}
	}
	return nil, &github.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
}

func (f *fakeAPI) ListWorkflows(context.Context, string, string) ([]github.Workflow, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.workflows, nil
}

func (f *fakeAPI) DispatchWorkflow(_ context.Context, _, _, workflowID string, request github.DispatchRequest) error {
	f.dispatchCalls = append(f.dispatchCalls, dispatchCall{workflowID: workflowID, request: request})
	return f.dispatchErr
}

func deployFixture() *fakeAPI {
	return &fakeAPI{
		workflows: []github.Workflow{
			{ID: 42, Name: "Deploy", Path: ".github/workflows/deploy.yml"},
			{ID: 43, Name: "CI", Path: ".github/workflows/ci.yml"},
		},
	}
}

func TestResolve(t *testing.T) {
	api := &fakeAPI{
		workflows: []github.Workflow{
			{ID: 7, Name: "Seven", Path: ".github/workflows/seven.yml"},
			{ID: 8, Name: "Numeric File", Path: ".github/workflows/7"},
			{ID: 42, Name: "Deploy", Path: ".github/workflows/deploy.yml"},
			{ID: 50, Name: "Release Apigee", Path: ".github/workflows/release.yml"},
		},
	}
	resolver := NewResolver(api, nil)

	tests := []struct {
		name   string
		ref    string
		wantID string
	}{
		{name: "numeric id wins over path", ref: "7", wantID: "7"},
		{name: "file name", ref: "deploy.yml", wantID: "42"},
		{name: "full path", ref: ".github/workflows/deploy.yml", wantID: "42"},
		{name: "name ignores case", ref: "release apigee", wantID: "50"},
		{name: "unknown id falls back to list", ref: "99", wantID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), "acme", "proxies", tt.ref)
			if tt.wantID == "" {
				var notFound *NotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Len(t, notFound.Candidates, 4)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestResolve_NumericFileWhenIDMissing(t *testing.T) {
	api := &fakeAPI{
		workflows: []github.Workflow{
			{ID: 8, Name: "Numeric File", Path: ".github/workflows/7"},
		},
	}

	got, err := NewResolver(api, nil).Resolve(context.Background(), "acme", "proxies", "7")
	require.NoError(t, err)
	assert.Equal(t, "8", got.ID)
	assert.Equal(t, 1, api.getCalls)
	assert.Equal(t, 1, api.listCalls)
}

func TestResolve_Idempotent(t *testing.T) {
	api := deployFixture()
	resolver := NewResolver(api, nil)

	first, err := resolver.Resolve(context.Background(), "acme", "proxies", "deploy.yml")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "acme", "proxies", "deploy.yml")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, api.listCalls)
}

func TestResolve_ZeroIsNotAnID(t *testing.T) {
	api := deployFixture()

	_, err := NewResolver(api, nil).Resolve(context.Background(), "acme", "proxies", "0")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, api.getCalls)
}

func TestDispatch_Success(t *testing.T) {
	api := deployFixture()

	got, err := NewDispatcher(api, nil).Dispatch(context.Background(), Request{
		Owner:       "acme",
		Repo:        "proxies",
		WorkflowRef: "deploy.yml",
		Ref:         "main",
	})
	require.NoError(t, err)
	assert.Equal(t, &Success{WorkflowID: "42", WorkflowName: "Deploy", WorkflowPath: ".github/workflows/deploy.yml"}, got)

	require.Len(t, api.dispatchCalls, 1)
	assert.Equal(t, "42", api.dispatchCalls[0].workflowID)
	assert.Equal(t, "main", api.dispatchCalls[0].request.Ref)
	assert.NotNil(t, api.dispatchCalls[0].request.Inputs)
}

func TestDispatch_NoDeduplication(t *testing.T) {
	api := deployFixture()
	dispatcher := NewDispatcher(api, nil)
	req := Request{Owner: "acme", Repo: "proxies", WorkflowRef: "Deploy", Ref: "main"}

	_, err := dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	_, err = dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, api.dispatchCalls, 2)
}

func TestDispatch_RepositoryNotFoundShortCircuits(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden} {
		api := deployFixture()
		api.repoErr = &github.APIError{StatusCode: status, Message: "Not Found"}

		_, err := NewDispatcher(api, nil).Dispatch(context.Background(), Request{
			Owner: "acme", Repo: "missing", WorkflowRef: "deploy.yml", Ref: "main",
		})

		failure, ok := AsFailure(err)
		require.True(t, ok)
		assert.Equal(t, FailureRepositoryNotFound, failure.Kind)
		assert.Contains(t, failure.Message, "acme/missing")
		assert.Zero(t, api.getCalls)
		assert.Zero(t, api.listCalls)
		assert.Empty(t, api.dispatchCalls)
	}
}

func TestDispatch_WorkflowNotFoundListsCandidates(t *testing.T) {
	api := deployFixture()

	_, err := NewDispatcher(api, nil).Dispatch(context.Background(), Request{
		Owner: "acme", Repo: "proxies", WorkflowRef: "nonexistent.yml", Ref: "main",
	})

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureWorkflowNotFound, failure.Kind)
	assert.Equal(t, []models.WorkflowDescriptor{
		{ID: "42", Name: "Deploy", Path: ".github/workflows/deploy.yml"},
		{ID: "43", Name: "CI", Path: ".github/workflows/ci.yml"},
	}, failure.Candidates)
	assert.Empty(t, api.dispatchCalls)
}

func TestDispatch_ManualModeSkipsResolution(t *testing.T) {
	api := deployFixture()

	got, err := NewDispatcher(api, nil).Dispatch(context.Background(), Request{
		Owner: "acme", Repo: "proxies", WorkflowRef: "whatever.yml", Ref: "release/1.2",
		Inputs: map[string]string{"env": "prod"}, ManualMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "whatever.yml", got.WorkflowID)
	assert.Zero(t, api.listCalls)
	assert.Zero(t, api.getCalls)
	require.Len(t, api.dispatchCalls, 1)
	assert.Equal(t, "whatever.yml", api.dispatchCalls[0].workflowID)
	assert.Equal(t, map[string]string{"env": "prod"}, api.dispatchCalls[0].request.Inputs)
}

func TestDispatch_RemoteFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind FailureKind
	}{
		{
			name:     "missing on ref",
			err:      &github.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"},
			wantKind: FailureWorkflowNotFound,
		},
		{
			name:     "no workflow scope",
			err:      &github.APIError{StatusCode: http.StatusForbidden, Message: "Resource not accessible by integration"},
			wantKind: FailurePermissionDenied,
		},
		{
			name:     "server error",
			err:      &github.APIError{StatusCode: http.StatusBadGateway, Message: "Bad Gateway"},
			wantKind: FailureTransient,
		},
		{
			name: "unprocessable",
			err: &github.APIError{
				StatusCode:       http.StatusUnprocessableEntity,
				Message:          "Unexpected inputs provided",
				DocumentationURL: "https://docs.github.com/rest/actions/workflows#create-a-workflow-dispatch-event",
			},
			wantKind: FailureUnknown,
		},
	}

	messages := map[string]bool{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := deployFixture()
			api.dispatchErr = tt.err

			_, err := NewDispatcher(api, nil).Dispatch(context.Background(), Request{
				Owner: "acme", Repo: "proxies", WorkflowRef: "deploy.yml", Ref: "main",
			})

			failure, ok := AsFailure(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, failure.Kind)
			assert.True(t, errors.Is(err, tt.err))

			apiErr, _ := github.AsAPIError(tt.err)
			assert.Equal(t, apiErr.Message, failure.Details)
			assert.Equal(t, apiErr.DocumentationURL, failure.DocumentationURL)
			messages[failure.Message] = true
		})
	}
	assert.Len(t, messages, 3, "not-found, permission and generic failures read differently")
}

func TestDispatch_InvalidRequest(t *testing.T) {
	api := deployFixture()

	_, err := NewDispatcher(api, nil).Dispatch(context.Background(), Request{Owner: "acme"})

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureInvalidRequest, failure.Kind)
	assert.Contains(t, failure.Message, "repo")
	assert.Contains(t, failure.Message, "workflowId")
	assert.Zero(t, api.repoCalls)
}

func TestWorkflows(t *testing.T) {
	api := deployFixture()

	got, err := NewDispatcher(api, nil).Workflows(context.Background(), "acme", "proxies")
	require.NoError(t, err)
	assert.Equal(t, []models.WorkflowDescriptor{
		{ID: "42", Name: "Deploy", Path: ".github/workflows/deploy.yml"},
		{ID: "43", Name: "CI", Path: ".github/workflows/ci.yml"},
	}, got)

	api.repoErr = &github.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	_, err = NewDispatcher(api, nil).Workflows(context.Background(), "acme", "gone")
	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureRepositoryNotFound, failure.Kind)
	assert.Equal(t, 1, api.listCalls)
}
