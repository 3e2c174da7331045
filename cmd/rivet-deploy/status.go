package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Cloudsky01/rivet-deploy/internal/runstatus"
	"github.com/Cloudsky01/rivet-deploy/internal/tui"
	"github.com/Cloudsky01/rivet-deploy/internal/wizard"
	"github.com/Cloudsky01/rivet-deploy/pkg/models"
)

var (
	statusJSON bool

	statusCmd = &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the status of a workflow run",
		Long: `Fetch a workflow run with its jobs and steps and print it once. For a
completed run the log files are listed too.`,
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}
)

func init() {
	addRepoFlag(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status tree as JSON")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	runID, err := parseRunID(args[0])
	if err != nil {
		return err
	}

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

	aggregator := runstatus.NewAggregator(client, e.logger)
	run, err := wizard.RunWithSpinner(cmd.Context(), fmt.Sprintf("Fetching run %d", runID),
		func(ctx context.Context) (*models.RunStatus, error) {
			return aggregator.GetRunStatus(ctx, owner, name, runID)
		})
	if err != nil {
		return fmt.Errorf("failed to fetch run %d: %w", runID, err)
	}
	if run == nil {
		return fmt.Errorf("workflow run %d not found in %s/%s", runID, owner, name)
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Println()
	fmt.Println(tui.Render(run, 80))
	return nil
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q: expected a positive number", s)
	}
	return id, nil
}
