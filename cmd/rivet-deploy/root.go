package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Cloudsky01/rivet-deploy/internal/config"
	"github.com/Cloudsky01/rivet-deploy/internal/git"
	"github.com/Cloudsky01/rivet-deploy/internal/github"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	repo       string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "rivet-deploy",
		Short: "Dispatch GitHub Actions deployments and follow them live",
		Long: `rivet-deploy triggers GitHub Actions deployment workflows and relays
their progress in real time.

The server half receives GitHub webhooks, verifies their signatures and
republishes deployment-related events on a real-time bus. The client half
dispatches workflows and watches runs, merging bus events with periodic
refreshes from the GitHub API.

Requirements:
  - A GitHub token in GITHUB_TOKEN (with the 'workflow' scope to dispatch)
  - GITHUB_WEBHOOK_SECRET for 'serve'

Get started:
  rivet-deploy config init          # Create a configuration file
  rivet-deploy dispatch deploy.yml  # Trigger a deployment
  rivet-deploy watch 123456789      # Follow a run`,
		SilenceUsage: true,
		Version:      version,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: .rivet-deploy.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{printf "rivet-deploy %s\n" .Version}}`)
}

// env is what every command loads before doing its work.
type env struct {
	cfg    *config.Config
	viper  *viper.Viper
	logger *slog.Logger
}

func setup() (*env, error) {
	cfg, v, err := config.LoadWithViper(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return &env{cfg: cfg, viper: v, logger: logger}, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("version", version), nil
}

func (e *env) githubClient() (*github.Client, error) {
	client, err := github.NewClient(github.Options{
		BaseURL: e.cfg.GitHub.BaseURL,
		Token:   e.cfg.GitHub.Token,
		Timeout: e.cfg.GitHub.Timeout,
		Logger:  e.logger,
	})
	if errors.Is(err, github.ErrTokenNotConfigured) {
		return nil, fmt.Errorf("%w\n\nSet GITHUB_TOKEN or github.token in %s", err, configFileHint())
	}
	return client, err
}

// repository picks --repo, then the configured repository, then the
// origin remote of the current checkout.
func (e *env) repository() (owner, name string, err error) {
	fullName := repo
	if fullName == "" {
		fullName = e.cfg.Repository
	}
	if fullName == "" {
		detected, detectErr := git.DetectRepository(".")
		if detectErr != nil {
			return "", "", fmt.Errorf("repository must be specified with --repo (e.g. --repo owner/repo): %w", detectErr)
		}
		fullName = detected
	}
	if err := git.ValidateRepositoryFormat(fullName); err != nil {
		return "", "", err
	}
	return config.SplitRepository(fullName)
}

func configFileHint() string {
	if configPath != "" {
		return configPath
	}
	return config.FileName
}

func addRepoFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&repo, "repo", "r", "", "Repository in OWNER/REPO format (defaults to config, then the git origin)")
}

// Execute runs the command tree; SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
