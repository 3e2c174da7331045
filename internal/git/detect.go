// Package git reads the local checkout so CLI commands can default
// --repo and --ref.
package git

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxSearchDepth = 10

var repoPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)

// ValidateRepositoryFormat checks that repo is owner/repo.
func ValidateRepositoryFormat(repo string) error {
	if !repoPattern.MatchString(repo) {
		return fmt.Errorf("invalid repository format: %q - expected format: owner/repo", repo)
	}
	return nil
}

// DetectRepository returns owner/repo of the origin remote of the
// checkout containing dir.
func DetectRepository(dir string) (string, error) {
	gitDir, err := findGitDir(dir)
	if err != nil {
		return "", err
	}
	return parseGitConfig(filepath.Join(gitDir, "config"))
}

// DetectBranch returns the branch checked out in the checkout containing
// dir. A detached HEAD is an error.
func DetectBranch(dir string) (string, error) {
	gitDir, err := findGitDir(dir)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	ref, ok := strings.CutPrefix(strings.TrimSpace(string(content)), "ref: refs/heads/")
	if !ok || ref == "" {
		return "", fmt.Errorf("HEAD is detached")
	}
	return ref, nil
}

// findGitDir walks up from dir to the nearest directory holding .git.
func findGitDir(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = cwd
	}

	for range maxSearchDepth {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(filepath.Join(gitDir, "config")); err == nil && !info.IsDir() {
			return gitDir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no .git/config found - not in a git repository")
}

// parseGitConfig extracts owner/repo from the url of [remote "origin"].
func parseGitConfig(configPath string) (string, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read git config: %w", err)
	}

	var inOrigin bool
	var url string
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") {
			inOrigin = trimmed == `[remote "origin"]`
			continue
		}

		if !inOrigin {
			continue
		}
		key, value, ok := strings.Cut(trimmed, "=")
		if ok && strings.TrimSpace(key) == "url" {
			url = strings.TrimSpace(value)
			break
		}
	}

	if url == "" {
		return "", fmt.Errorf("no origin remote found in git config")
	}

	repo := extractRepoFromURL(url)
	if repo == "" {
		return "", fmt.Errorf("failed to extract owner/repo from URL: %s", url)
	}
	return repo, nil
}

// extractRepoFromURL understands:
//   - https://github.com/owner/repo(.git)
//   - ssh://git@github.com/owner/repo(.git)
//   - git@github.com:owner/repo(.git)
func extractRepoFromURL(url string) string {
	var path string
	switch {
	case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "ssh://"):
		idx := strings.Index(url, "github.com/")
		if idx == -1 {
			return ""
		}
		path = url[idx+len("github.com/"):]
	default:
		after, ok := strings.CutPrefix(url, "git@github.com:")
		if !ok {
			return ""
		}
		path = after
	}

	path = strings.TrimSuffix(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if !repoPattern.MatchString(path) {
		return ""
	}
	return path
}
