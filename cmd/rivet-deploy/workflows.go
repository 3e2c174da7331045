package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/internal/wizard"
	"github.com/Cloudsky01/rivet-deploy/internal/workflow"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

var (
	workflowsCmd = &cobra.Command{
		Use:   "workflows",
		Short: "List the workflows of a repository",
		Args:  cobra.NoArgs,
		RunE:  runWorkflows,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Check the configured GitHub token",
		Long: `Check that the GitHub token works and carries the 'workflow' scope
needed to dispatch runs. Exits non-zero when the token is unusable.`,
		Args: cobra.NoArgs,
		RunE: runToken,
	}
)

func init() {
	addRepoFlag(workflowsCmd)

	rootCmd.AddCommand(workflowsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runWorkflows(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	owner, name, err := e.repository()
	if err != nil {
		return err
	}
	client, err := e.githubClient()
	if err != nil {
		return err
	}

	dispatcher := workflow.NewDispatcher(client, e.logger)
	workflows, err := wizard.RunWithSpinner(cmd.Context(), "Listing workflows in "+owner+"/"+name,
		func(ctx context.Context) ([]models.WorkflowDescriptor, error) {
			return dispatcher.Workflows(ctx, owner, name)
		})
	if err != nil {
		if failure, ok := workflow.AsFailure(err); ok {
			printFailure(os.Stderr, failure)
			return fmt.Errorf("listing workflows failed: %s", failure.Kind)
		}
		return err
	}

	fmt.Println()
	fmt.Println(headerStyle.Render(fmt.Sprintf("Workflows in %s/%s", owner, name)))
	printWorkflowList(os.Stdout, workflows)

	matched := wizard.MatchingWorkflows(workflowPaths(workflows), e.cfg.Webhook.PathMarkers)
	if len(matched) > 0 {
		fmt.Println()
		fmt.Println(infoStyle.Render(fmt.Sprintf("%d workflow(s) match the path markers and are relayed live", len(matched))))
	}
	return nil
}

func workflowPaths(workflows []models.WorkflowDescriptor) []string {
	paths := make([]string, 0, len(workflows))
	for _, wf := range workflows {
		paths = append(paths, wf.Path)
	}
	return paths
}

func runToken(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}

	var status github.TokenStatus
	client, err := e.githubClient()
	switch {
	case errors.Is(err, github.ErrTokenNotConfigured):
		status = github.NewTokenStatus(nil, nil, err)
	case err != nil:
		return err
	default:
		type user struct {
			user   *github.User
			scopes []string
		}
		got, userErr := wizard.RunWithSpinner(cmd.Context(), "Checking token",
			func(ctx context.Context) (user, error) {
				u, scopes, err := client.GetAuthenticatedUser(ctx)
				return user{u, scopes}, err
			})
		status = github.NewTokenStatus(got.user, got.scopes, userErr)
	}

	printTokenStatus(os.Stdout, status)
	if !status.Valid {
		return fmt.Errorf("token is not usable")
	}
	return nil
}
