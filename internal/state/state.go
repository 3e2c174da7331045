package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	AppName       = "rivet-deploy"
	StateFileName = "state.yaml"
)

// WatchState remembers the last run the user watched so `watch` can
// resume it. It is navigation state, not deployment history.
type WatchState struct {
	Repository string    `yaml:"repository,omitempty"`
	RunID      int64     `yaml:"runId,omitempty"`
	Workflow   string    `yaml:"workflow,omitempty"`
	Ref        string    `yaml:"ref,omitempty"`
	UpdatedAt  time.Time `yaml:"updatedAt,omitempty"`
}

// Empty reports whether there is nothing to resume.
func (s *WatchState) Empty() bool {
	return s == nil || s.Repository == "" || s.RunID == 0
}

// DefaultPath returns $XDG_STATE_HOME/rivet-deploy/state.yaml, falling
// back to ~/.local/state.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, AppName, StateFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", AppName, StateFileName), nil
}

// Load reads the state file. A missing or corrupted file yields an empty
// state.
func Load(path string) (*WatchState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &WatchState{}, nil
		}
		return nil, err
	}

	var state WatchState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return &WatchState{}, nil
	}

	return &state, nil
}

// Save writes the state file, creating its directory.
func (s *WatchState) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Clear removes the state file
func Clear(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
