package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/internal/webhook"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

const testSecret = "It's a Secret to Everybody"

type fakeGitHub struct {
	repoErr     error
	workflows   []github.Workflow
	dispatchErr error
	dispatched  []string

	run     *github.WorkflowRun
	runErr  error
	jobs    []github.Job
	runGets int

	user    *github.User
	scopes  []string
	userErr error
}

func (f *fakeGitHub) GetRepository(_ context.Context, owner, repo string) (*github.Repository, error) {
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return &github.Repository{Name: repo, FullName: owner + "/" + repo}, nil
}

func (f *fakeGitHub) GetWorkflow(_ context.Context, _, _ string, id int64) (*github.Workflow, error) {
	for _, w := range f.workflows {
		if w.ID == id {
			w := w
			return &w, nil
		}
	}
	return nil, &github.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
}

func (f *fakeGitHub) ListWorkflows(context.Context, string, string) ([]github.Workflow, error) {
	return f.workflows, nil
}

func (f *fakeGitHub) DispatchWorkflow(_ context.Context, _, _, workflowID string, _ github.DispatchRequest) error {
	f.dispatched = append(f.dispatched, workflowID)
	return f.dispatchErr
}

func (f *fakeGitHub) GetWorkflowRun(context.Context, string, string, int64) (*github.WorkflowRun, error) {
	f.runGets++
	if f.runErr != nil {
		return nil, f.runErr
	}
	if f.run == nil {
		return nil, &github.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	}
	return f.run, nil
}

func (f *fakeGitHub) ListRunJobs(context.Context, string, string, int64) ([]github.Job, error) {
	return f.jobs, nil
}

func (f *fakeGitHub) DownloadRunLogs(context.Context, string, string, int64) ([]byte, error) {
	return nil, errors.New("logs expired")
}

func (f *fakeGitHub) GetAuthenticatedUser(context.Context) (*github.User, []string, error) {
	return f.user, f.scopes, f.userErr
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		workflows: []github.Workflow{
			{ID: 42, Name: "Deploy", Path: ".github/workflows/deploy.yml"},
		},
	}
}

type harness struct {
	server *Server
	bus    *bus.Memory
	api    *fakeGitHub
}

func newHarness(t *testing.T, api *fakeGitHub, secret string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := bus.NewMemory(16)
	t.Cleanup(func() { b.Close() })

	opts := Options{
		WebhookSecret: secret,
		Router:        webhook.NewRouter(webhook.RouterOptions{Filter: webhook.DefaultFilter(), Publisher: b}),
		Subscriber:    b,
	}
	if api != nil {
		opts.GitHub = api
	}
	return &harness{server: New(opts), bus: b, api: api}
}

func (h *harness) do(method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

var deployJobPayload = []byte(`{
	"action": "completed",
	"workflow_job": {"id": 11, "name": "Deploy proxy", "status": "completed", "conclusion": "success", "run_id": 7},
	"repository": {"full_name": "acme/proxies"}
}`)

func webhookHeaders(eventType string, body []byte, secret string) map[string]string {
	return map[string]string{
		webhook.EventHeader:     eventType,
		webhook.SignatureHeader: webhook.Sign(body, secret),
		"Content-Type":          "application/json",
	}
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name        string
		secret      string
		eventType   string
		body        []byte
		signWith    string
		wantStatus  int
		wantMessage bool
	}{
		{name: "relevant job", secret: testSecret, eventType: "workflow_job", body: deployJobPayload, signWith: testSecret, wantStatus: http.StatusOK, wantMessage: true},
		{name: "secret not configured", secret: "", eventType: "workflow_job", body: deployJobPayload, signWith: testSecret, wantStatus: http.StatusInternalServerError},
		{name: "wrong secret", secret: testSecret, eventType: "workflow_job", body: deployJobPayload, signWith: "guess", wantStatus: http.StatusForbidden},
		{name: "ignored event type", secret: testSecret, eventType: "push", body: []byte(`{}`), signWith: testSecret, wantStatus: http.StatusOK},
		{
			name: "irrelevant job", secret: testSecret, eventType: "workflow_job", signWith: testSecret, wantStatus: http.StatusOK,
			body: []byte(`{"action":"queued","workflow_job":{"id":1,"name":"lint","status":"queued","run_id":7},"repository":{"full_name":"acme/proxies"}}`),
		},
		{name: "malformed but signed", secret: testSecret, eventType: "workflow_run", body: []byte(`{not json`), signWith: testSecret, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, tt.secret)
			sub, err := h.bus.Subscribe(context.Background(), models.EventsChannel)
			require.NoError(t, err)
			defer sub.Close()

			w := h.do(http.MethodPost, "/api/github/webhook", tt.body, webhookHeaders(tt.eventType, tt.body, tt.signWith))
			assert.Equal(t, tt.wantStatus, w.Code)

			select {
			case msg := <-sub.Messages():
				require.True(t, tt.wantMessage, "unexpected message %s", msg.Event)
				assert.Equal(t, models.EventWorkflowJobUpdate, msg.Event)
			case <-time.After(50 * time.Millisecond):
				assert.False(t, tt.wantMessage, "expected a published message")
			}
		})
	}
}

func TestWebhook_MissingSignature(t *testing.T) {
	h := newHarness(t, nil, testSecret)

	w := h.do(http.MethodPost, "/api/github/webhook", deployJobPayload, map[string]string{webhook.EventHeader: "workflow_job"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhook_SecretReload(t *testing.T) {
	h := newHarness(t, nil, "")
	h.server.SetWebhookSecret(testSecret)

	w := h.do(http.MethodPost, "/api/github/webhook", deployJobPayload, webhookHeaders("workflow_job", deployJobPayload, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])
}

func TestTriggerWorkflow(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(t, newFakeGitHub(), testSecret)
		body := []byte(`{"owner":"acme","repo":"proxies","workflowId":"deploy.yml","ref":"main","inputs":{"proxyName":"X"}}`)

		w := h.do(http.MethodPost, "/api/github/trigger-workflow", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decodeBody(t, w)
		assert.Equal(t, true, got["success"])
		assert.Equal(t, "42", got["workflowId"])
		assert.Equal(t, "Deploy", got["workflowName"])
		assert.Equal(t, []string{"42"}, h.api.dispatched)
	})

	t.Run("missing fields", func(t *testing.T) {
		h := newHarness(t, newFakeGitHub(), testSecret)
		w := h.do(http.MethodPost, "/api/github/trigger-workflow", []byte(`{"owner":"acme"}`), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "workflowId")
	})

	t.Run("token not configured", func(t *testing.T) {
		h := newHarness(t, nil, testSecret)
		body := []byte(`{"owner":"acme","repo":"proxies","workflowId":"deploy.yml","ref":"main"}`)
		w := h.do(http.MethodPost, "/api/github/trigger-workflow", body, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("unknown workflow lists candidates", func(t *testing.T) {
		h := newHarness(t, newFakeGitHub(), testSecret)
		body := []byte(`{"owner":"acme","repo":"proxies","workflowId":"nonexistent.yml","ref":"main"}`)

		w := h.do(http.MethodPost, "/api/github/trigger-workflow", body, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		got := decodeBody(t, w)
		assert.Equal(t, []any{
			map[string]any{"id": "42", "name": "Deploy", "path": ".github/workflows/deploy.yml"},
		}, got["availableWorkflows"])
		assert.Empty(t, h.api.dispatched)
	})

	t.Run("missing repository", func(t *testing.T) {
		api := newFakeGitHub()
		api.repoErr = &github.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
		h := newHarness(t, api, testSecret)
		body := []byte(`{"owner":"acme","repo":"gone","workflowId":"deploy.yml","ref":"main"}`)

		w := h.do(http.MethodPost, "/api/github/trigger-workflow", body, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NotContains(t, decodeBody(t, w), "availableWorkflows")
	})

	t.Run("permission denied", func(t *testing.T) {
		api := newFakeGitHub()
		api.dispatchErr = &github.APIError{StatusCode: http.StatusForbidden, Message: "Resource not accessible by integration"}
		h := newHarness(t, api, testSecret)
		body := []byte(`{"owner":"acme","repo":"proxies","workflowId":"42","ref":"main"}`)

		w := h.do(http.MethodPost, "/api/github/trigger-workflow", body, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "workflow")
	})

	t.Run("upstream failure keeps remote message", func(t *testing.T) {
		api := newFakeGitHub()
		api.dispatchErr = &github.APIError{
			StatusCode:       http.StatusUnprocessableEntity,
			Message:          "Unexpected inputs provided",
			DocumentationURL: "https://docs.github.com/rest",
		}
		h := newHarness(t, api, testSecret)
		body := []byte(`{"owner":"acme","repo":"proxies","workflowId":"deploy.yml","ref":"main"}`)

		w := h.do(http.MethodPost, "/api/github/trigger-workflow", body, nil)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		got := decodeBody(t, w)
		assert.Equal(t, "Unexpected inputs provided", got["details"])
		assert.Equal(t, "https://docs.github.com/rest", got["documentation_url"])
		assert.EqualValues(t, http.StatusUnprocessableEntity, got["status"])
	})
}

func TestWorkflowRun(t *testing.T) {
	completed := &github.WorkflowRun{
		ID: 7, Name: "Deploy", Status: models.StatusCompleted, Conclusion: models.ConclusionSuccess,
		HeadBranch: "main", HeadSHA: "abc123",
	}

	tests := []struct {
		name       string
		query      string
		run        *github.WorkflowRun
		runErr     error
		wantStatus int
	}{
		{name: "found", query: "owner=acme&repo=proxies&runId=7", run: completed, wantStatus: http.StatusOK},
		{name: "not found", query: "owner=acme&repo=proxies&runId=7", wantStatus: http.StatusNotFound},
		{name: "missing runId", query: "owner=acme&repo=proxies", wantStatus: http.StatusBadRequest},
		{name: "non-numeric runId", query: "owner=acme&repo=proxies&runId=latest", wantStatus: http.StatusBadRequest},
		{name: "upstream error", query: "owner=acme&repo=proxies&runId=7", runErr: &github.APIError{StatusCode: 502}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeGitHub()
			api.run = tt.run
			api.runErr = tt.runErr
			h := newHarness(t, api, testSecret)

			w := h.do(http.MethodGet, "/api/github/workflow-run?"+tt.query, nil, nil)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var run models.RunStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
			assert.Equal(t, "7", run.ID)
			assert.Equal(t, "acme/proxies", run.Repository)
			assert.Equal(t, []string{models.LogsUnavailable}, run.Logs)
		})
	}
}

func TestListWorkflows(t *testing.T) {
	h := newHarness(t, newFakeGitHub(), testSecret)
	w := h.do(http.MethodGet, "/api/github/workflows?owner=acme&repo=proxies", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["workflows"], 1)

	api := newFakeGitHub()
	api.repoErr = &github.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	h = newHarness(t, api, testSecret)
	w = h.do(http.MethodGet, "/api/github/workflows?owner=acme&repo=gone", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateToken(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, nil, testSecret)
		w := h.do(http.MethodGet, "/api/github/validate-token", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["valid"])
	})

	t.Run("invalid token still answers 200", func(t *testing.T) {
		api := newFakeGitHub()
		api.userErr = &github.APIError{StatusCode: http.StatusUnauthorized, Message: "Bad credentials"}
		h := newHarness(t, api, testSecret)
		w := h.do(http.MethodGet, "/api/github/validate-token", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decodeBody(t, w)
		assert.Equal(t, false, got["valid"])
		assert.EqualValues(t, http.StatusUnauthorized, got["status"])
	})

	t.Run("valid with workflow scope", func(t *testing.T) {
		api := newFakeGitHub()
		api.user = &github.User{Login: "octocat"}
		api.scopes = []string{"repo", "workflow"}
		h := newHarness(t, api, testSecret)
		w := h.do(http.MethodGet, "/api/github/validate-token", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decodeBody(t, w)
		assert.Equal(t, true, got["valid"])
		assert.Equal(t, "octocat", got["username"])
		assert.Equal(t, true, got["hasWorkflowScope"])
	})
}

func TestHealth_RequestID(t *testing.T) {
	h := newHarness(t, nil, testSecret)

	w := h.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = h.do(http.MethodGet, "/healthz", nil, map[string]string{requestIDHeader: "abc"})
	assert.Equal(t, "abc", w.Header().Get(requestIDHeader))
}

func TestEvents_StreamsAndReleasesSubscription(t *testing.T) {
	h := newHarness(t, nil, testSecret)
	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/github/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return h.bus.Subscribers(models.EventsChannel) == 1 },
		time.Second, 10*time.Millisecond)

	msg, err := bus.NewMessage(models.EventsChannel, models.EventWorkflowRunUpdate, models.RunUpdate{RunID: 7})
	require.NoError(t, err)
	require.NoError(t, h.bus.Publish(context.Background(), msg))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, "event:"+models.EventWorkflowRunUpdate, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "data:"), lines[1])
	assert.Contains(t, lines[1], `"runId":7`)

	cancel()
	assert.Eventually(t, func() bool { return h.bus.Subscribers(models.EventsChannel) == 0 },
		time.Second, 10*time.Millisecond)
}
