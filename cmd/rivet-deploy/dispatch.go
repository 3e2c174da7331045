package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Cloudsky01/rivet-deploy/internal/git"
	"github.com/Cloudsky01/rivet-deploy/internal/wizard"
	"github.com/Cloudsky01/rivet-deploy/internal/workflow"
)

var (
	dispatchRef    string
	dispatchInputs []string
	dispatchManual bool

	dispatchCmd = &cobra.Command{
		Use:   "dispatch <workflow>",
		Short: "Trigger a workflow run",
		Long: `Trigger a workflow_dispatch run. The workflow may be given as its numeric
id, its file name or path (deploy.yml, .github/workflows/deploy.yml) or its
display name.

When the workflow cannot be found the available workflows are listed, and
in a terminal you can pick one. With --manual the workflow is passed to
GitHub verbatim without looking it up first.

GitHub does not return the id of the run it creates; follow it with
'rivet-deploy watch', which picks up the next run announced by webhook.`,
		Example: `  rivet-deploy dispatch deploy.yml --ref main --input proxyName=orders
  rivet-deploy dispatch "Deploy to Apigee X" -r acme/proxies
  rivet-deploy dispatch .github/workflows/apigeex.yml --manual`,
		Args: cobra.ExactArgs(1),
		RunE: runDispatch,
	}
)

func init() {
	addRepoFlag(dispatchCmd)
	dispatchCmd.Flags().StringVar(&dispatchRef, "ref", "", "Branch, tag or SHA to run on (defaults to the current branch)")
	dispatchCmd.Flags().StringArrayVarP(&dispatchInputs, "input", "i", nil, "Workflow input as key=value (repeatable)")
	dispatchCmd.Flags().BoolVar(&dispatchManual, "manual", false, "Use the workflow reference as-is without resolving it")

	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
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

	ref := dispatchRef
	if ref == "" {
		ref, err = git.DetectBranch(".")
		if err != nil {
			return fmt.Errorf("no --ref given and the current branch could not be detected: %w", err)
		}
	}

	inputs, err := parseInputs(dispatchInputs)
	if err != nil {
		return err
	}

	req := workflow.Request{
		Owner:       owner,
		Repo:        name,
		WorkflowRef: args[0],
		Ref:         ref,
		Inputs:      inputs,
		ManualMode:  dispatchManual,
	}
	dispatcher := workflow.NewDispatcher(client, e.logger)
	ctx := cmd.Context()

	result, err := dispatchWithSpinner(ctx, dispatcher, req)
	if failure, ok := workflow.AsFailure(err); ok && failure.Kind == workflow.FailureWorkflowNotFound && len(failure.Candidates) > 0 && wizard.IsTTY() {
		printFailure(os.Stderr, failure)
		choice, selectErr := wizard.SelectWorkflow(req.WorkflowRef, failure.Candidates)
		if selectErr != nil {
			return selectErr
		}
		req.WorkflowRef = choice.ID
		result, err = dispatchWithSpinner(ctx, dispatcher, req)
	}
	if err != nil {
		if failure, ok := workflow.AsFailure(err); ok {
			printFailure(os.Stderr, failure)
			return fmt.Errorf("dispatch failed: %s", failure.Kind)
		}
		return err
	}

	printDispatchSuccess(os.Stdout, owner+"/"+name, ref, result)
	return nil
}

func dispatchWithSpinner(ctx context.Context, d *workflow.Dispatcher, req workflow.Request) (*workflow.Success, error) {
	return wizard.RunWithSpinner(ctx, fmt.Sprintf("Dispatching %s on %s", req.WorkflowRef, req.Ref),
		func(ctx context.Context) (*workflow.Success, error) {
			return d.Dispatch(ctx, req)
		})
}

// parseInputs turns repeated key=value flags into the dispatch inputs.
// Values may contain '='; later keys override earlier ones.
func parseInputs(pairs []string) (map[string]string, error) {
	inputs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}
