package wizard

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Cloudsky01/rivet-deploy/internal/github"
)

// DiscoverWorkflows lists the workflow files under root's
// .github/workflows. A checkout without workflows yields none.
func DiscoverWorkflows(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(github.WorkflowsDir)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var workflows []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yml", ".yaml":
			workflows = append(workflows, entry.Name())
		}
	}

	sort.Strings(workflows)
	return workflows, nil
}
