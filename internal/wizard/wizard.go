package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/Cloudsky01/rivet-deploy/internal/config"
	"github.com/Cloudsky01/rivet-deploy/internal/git"
	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

// ErrNoCandidates is returned by SelectWorkflow when there is nothing to
// choose from.
var ErrNoCandidates = errors.New("repository has no workflows")

// AskConfirm shows a yes/no prompt.
func AskConfirm(title, description string, value *bool) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(value),
		),
	).Run()
}

// SelectWorkflow lets the user pick one of the workflows a failed
// dispatch offered instead of an unknown reference.
func SelectWorkflow(ref string, candidates []models.WorkflowDescriptor) (models.WorkflowDescriptor, error) {
	if len(candidates) == 0 {
		return models.WorkflowDescriptor{}, ErrNoCandidates
	}

	options := make([]huh.Option[int], len(candidates))
	for i, c := range candidates {
		options[i] = huh.NewOption(candidateLabel(c), i)
	}

	var selected int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title(fmt.Sprintf("Workflow %q not found", ref)).
				Description("Pick one of the repository's workflows. Type to filter.").
				Options(options...).
				Filtering(true).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return models.WorkflowDescriptor{}, err
	}
	return candidates[selected], nil
}

func candidateLabel(c models.WorkflowDescriptor) string {
	return fmt.Sprintf("%s  (%s, id %s)", c.Name, strings.TrimPrefix(c.Path, github.WorkflowsDir), c.ID)
}

// Answers are the values collected by the init wizard.
type Answers struct {
	Repository  string
	BusDriver   string
	RedisAddr   string
	NameMarkers string
	PathMarkers string
	ServerAddr  string
}

// Wizard handles the interactive configuration creation
type Wizard struct {
	base           *config.Config
	localWorkflows []string
}

// New starts from base, typically config.Default() with a detected
// repository filled in. localWorkflows are the workflow files found in
// the checkout, used to preview the path markers.
func New(base *config.Config, localWorkflows []string) *Wizard {
	return &Wizard{base: base, localWorkflows: localWorkflows}
}

// Run executes the interactive wizard
func (w *Wizard) Run() (*config.Config, error) {
	fmt.Println()
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("blue"))
	fmt.Println(titleStyle.Render("rivet-deploy configuration"))
	if len(w.localWorkflows) > 0 {
		fmt.Printf("Found %d workflow(s) in .github/workflows\n", len(w.localWorkflows))
	}
	fmt.Println()

	answers := w.defaults()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Repository").
				Description("Default owner/repo for dispatch, status and watch").
				Placeholder("owner/repo").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					return git.ValidateRepositoryFormat(strings.TrimSpace(s))
				}).
				Value(&answers.Repository),

			huh.NewInput().
				Title("Deployment name markers").
				Description("Comma-separated; events whose name contains one are relayed").
				Value(&answers.NameMarkers),

			huh.NewInput().
				Title("Workflow path markers").
				Description("Comma-separated; workflow runs whose file path contains one are relayed").
				Value(&answers.PathMarkers),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&answers.ServerAddr),

			huh.NewSelect[string]().
				Title("Real-time bus").
				Options(
					huh.NewOption("In-process (single server)", config.BusDriverMemory),
					huh.NewOption("Redis pub/sub", config.BusDriverRedis),
				).
				Value(&answers.BusDriver),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Redis address").
				Placeholder("localhost:6379").
				Value(&answers.RedisAddr),
		).WithHideFunc(func() bool {
			return answers.BusDriver != config.BusDriverRedis
		}),
	)

	if err := form.Run(); err != nil {
		return nil, err
	}

	cfg := w.apply(answers)
	if matched := MatchingWorkflows(w.localWorkflows, cfg.Webhook.PathMarkers); len(matched) > 0 {
		fmt.Println(infoStyle.Render("Workflows matched by path markers: " + strings.Join(matched, ", ")))
	}
	return cfg, cfg.Validate()
}

func (w *Wizard) defaults() Answers {
	return Answers{
		Repository:  w.base.Repository,
		BusDriver:   w.base.Bus.Driver,
		RedisAddr:   w.base.Bus.Redis.Addr,
		NameMarkers: strings.Join(w.base.Webhook.NameMarkers, ", "),
		PathMarkers: strings.Join(w.base.Webhook.PathMarkers, ", "),
		ServerAddr:  w.base.Server.Addr,
	}
}

// apply builds the config from the answers on top of a copy of base.
func (w *Wizard) apply(a Answers) *config.Config {
	cfg := *w.base
	cfg.Repository = strings.TrimSpace(a.Repository)
	cfg.Webhook.NameMarkers = parseMarkers(a.NameMarkers)
	cfg.Webhook.PathMarkers = parseMarkers(a.PathMarkers)
	cfg.Server.Addr = strings.TrimSpace(a.ServerAddr)
	cfg.Bus.Driver = a.BusDriver
	cfg.Bus.Redis.Addr = ""
	if a.BusDriver == config.BusDriverRedis {
		cfg.Bus.Redis.Addr = strings.TrimSpace(a.RedisAddr)
	}
	return &cfg
}

func parseMarkers(s string) []string {
	var markers []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	return markers
}

// MatchingWorkflows returns the workflow files whose path contains one
// of the markers.
func MatchingWorkflows(files, markers []string) []string {
	var matched []string
	for _, f := range files {
		path := github.WorkflowsDir + f
		for _, m := range markers {
			if m != "" && strings.Contains(path, m) {
				matched = append(matched, f)
				break
			}
		}
	}
	return matched
}
