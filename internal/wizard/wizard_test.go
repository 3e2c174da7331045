package wizard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Cloudsky01/rivet-deploy/internal/config"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

func TestParseMarkers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single", input: "Deploy", expected: []string{"Deploy"}},
		{name: "spaces around commas", input: "Deploy , Apigee", expected: []string{"Deploy", "Apigee"}},
		{name: "empty entries dropped", input: "Deploy,,", expected: []string{"Deploy"}},
		{name: "empty", input: "  ", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseMarkers(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestApply(t *testing.T) {
	base := config.Default()
	w := New(base, nil)

	answers := w.defaults()
	answers.Repository = " acme/proxies "
	answers.NameMarkers = "Release"
	answers.RedisAddr = "redis:6379"

	cfg := w.apply(answers)
	if cfg.Repository != "acme/proxies" {
		t.Errorf("expected trimmed repository, got %q", cfg.Repository)
	}
	if !reflect.DeepEqual(cfg.Webhook.NameMarkers, []string{"Release"}) {
		t.Errorf("unexpected name markers %v", cfg.Webhook.NameMarkers)
	}
	if cfg.Bus.Redis.Addr != "" {
		t.Errorf("redis addr should be dropped for the memory driver, got %q", cfg.Bus.Redis.Addr)
	}
	if base.Repository != "" {
		t.Error("base config was modified")
	}

	answers.BusDriver = config.BusDriverRedis
	cfg = w.apply(answers)
	if cfg.Bus.Redis.Addr != "redis:6379" {
		t.Errorf("expected redis addr, got %q", cfg.Bus.Redis.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("applied config is invalid: %v", err)
	}
}

func TestMatchingWorkflows(t *testing.T) {
	files := []string{"apigeex-deploy.yml", "ci.yml", "apigeex-lint.yaml"}

	got := MatchingWorkflows(files, []string{"apigeex"})
	want := []string{"apigeex-deploy.yml", "apigeex-lint.yaml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := MatchingWorkflows(files, []string{"workflows"}); len(got) != 3 {
		t.Errorf("markers match the full workflow path, got %v", got)
	}
}

func TestDiscoverWorkflows(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".github", "workflows")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"deploy.yml", "CI.YAML", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("on: push\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	workflows, err := DiscoverWorkflows(root)
	if err != nil {
		t.Fatalf("DiscoverWorkflows failed: %v", err)
	}
	if !reflect.DeepEqual(workflows, []string{"CI.YAML", "deploy.yml"}) {
		t.Errorf("unexpected workflows %v", workflows)
	}

	none, err := DiscoverWorkflows(t.TempDir())
	if err != nil || len(none) != 0 {
		t.Errorf("expected no workflows and no error, got %v, %v", none, err)
	}
}

func TestCandidateLabel(t *testing.T) {
	label := candidateLabel(models.WorkflowDescriptor{ID: "42", Name: "Deploy", Path: ".github/workflows/deploy.yml"})
	if !strings.Contains(label, "deploy.yml") || !strings.Contains(label, "42") {
		t.Errorf("unexpected label %q", label)
	}
}

func TestSelectWorkflow_NoCandidates(t *testing.T) {
	if _, err := SelectWorkflow("deploy.yml", nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates, got %v", err)
	}
}

func TestRunPlain(t *testing.T) {
	var out strings.Builder

	got, err := runPlain(context.Background(), &out, "Fetching run", func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("runPlain() = %d, %v", got, err)
	}
	if !strings.Contains(out.String(), "Fetching run complete") {
		t.Errorf("missing completion line in %q", out.String())
	}

	out.Reset()
	_, err = runPlain(context.Background(), &out, "Fetching run", func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	if err == nil || !strings.Contains(out.String(), "failed: boom") {
		t.Errorf("expected failure line, got %q (err %v)", out.String(), err)
	}
}

func TestIsTTY(t *testing.T) {
	result := IsTTY()
	t.Logf("IsTTY returned: %v", result)
}
