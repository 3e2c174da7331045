package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadNonExistent(t *testing.T) {
	state, err := Load("/nonexistent/path/state.yaml")
	if err != nil {
		t.Fatalf("Load should not return error for non-existent file: %v", err)
	}

	if !state.Empty() {
		t.Errorf("Expected empty state, got %+v", state)
	}
}

func TestSaveAndLoad(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "nested", StateFileName)

	original := &WatchState{
		Repository: "acme/proxies",
		RunID:      7,
		Workflow:   "deploy.yml",
		Ref:        "main",
		UpdatedAt:  time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}

	if err := original.Save(statePath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(statePath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if *loaded != *original {
		t.Errorf("Loaded state: got %+v, want %+v", loaded, original)
	}
	if loaded.Empty() {
		t.Error("Loaded state should not be empty")
	}
}

func TestLoadCorrupted(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), StateFileName)
	if err := os.WriteFile(statePath, []byte("runId: [not a number"), 0644); err != nil {
		t.Fatalf("Failed to write state: %v", err)
	}

	state, err := Load(statePath)
	if err != nil {
		t.Fatalf("Load should not fail on a corrupted file: %v", err)
	}
	if !state.Empty() {
		t.Errorf("Expected empty state, got %+v", state)
	}
}

func TestClear(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), StateFileName)

	if err := Clear(statePath); err != nil {
		t.Errorf("Clear of a missing file should succeed: %v", err)
	}

	state := &WatchState{Repository: "acme/proxies", RunID: 1}
	if err := state.Save(statePath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := Clear(statePath); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Error("State file still exists after Clear")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath failed: %v", err)
	}
	want := filepath.Join("/tmp/xdg-state", AppName, StateFileName)
	if path != want {
		t.Errorf("DefaultPath() = %s, want %s", path, want)
	}
}
