package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Cloudsky01/rivet-deploy/internal/config"
	"github.com/Cloudsky01/rivet-deploy/internal/git"
	"github.com/Cloudsky01/rivet-deploy/internal/state"
	"github.com/Cloudsky01/rivet-deploy/internal/wizard"
)

var (
	force  bool
	global bool

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage rivet-deploy configuration",
		Long: `Manage the rivet-deploy configuration file.

Configuration is read from --config, or from .rivet-deploy.yaml in the
working directory, then in $HOME. Environment variables override the file:
RIVET_<SECTION>_<KEY> (e.g. RIVET_BUS_DRIVER), plus GITHUB_TOKEN and
GITHUB_WEBHOOK_SECRET.`,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		Long: `Create .rivet-deploy.yaml in the working directory (or $HOME with
--global). The repository defaults to the git origin and the path markers
are previewed against the local .github/workflows directory. Secrets are
never written; keep them in GITHUB_TOKEN and GITHUB_WEBHOOK_SECRET.`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Show configuration and state file locations",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long:  `Show the configuration after applying defaults, the file and the environment. Secrets are masked.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
)

func init() {
	configInitCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	configInitCmd.Flags().BoolVar(&global, "global", false, "Write to $HOME instead of the working directory")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// configSaveTarget returns where 'config init' writes: the explicit path
// wins, then $HOME with global, else the working directory.
func configSaveTarget(explicit string, global bool, home, workDir string) (string, error) {
	switch {
	case explicit != "":
		return explicit, nil
	case global:
		if home == "" {
			return "", fmt.Errorf("cannot determine home directory for --global")
		}
		return filepath.Join(home, config.FileName), nil
	default:
		return filepath.Join(workDir, config.FileName), nil
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	home, _ := os.UserHomeDir()
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	path, err := configSaveTarget(configPath, global, home, workDir)
	if err != nil {
		return err
	}

	if !wizard.IsTTY() {
		return fmt.Errorf("config init is interactive and needs a terminal")
	}
	if fileExists(path) && !force {
		overwrite := false
		if err := wizard.AskConfirm("Overwrite "+path+"?", "A configuration file already exists at this location.", &overwrite); err != nil {
			return fmt.Errorf("wizard failed: %w", err)
		}
		if !overwrite {
			return fmt.Errorf("configuration file %s already exists. Use --force to overwrite", path)
		}
	}

	base := config.Default()
	if detected, err := git.DetectRepository("."); err == nil {
		base.Repository = detected
	}

	localWorkflows, err := wizard.DiscoverWorkflows(".")
	if err != nil {
		return fmt.Errorf("failed to read workflows directory: %w", err)
	}

	cfg, err := wizard.New(base, localWorkflows).Run()
	if err != nil {
		return fmt.Errorf("wizard failed: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	printConfigSummary(os.Stdout, path, cfg)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Configuration File Locations"))
	fmt.Println(divider())

	used := e.viper.ConfigFileUsed()
	if used == "" {
		used = "(none, using defaults and environment)"
	}
	fmt.Println(labelStyle.Render("Config in use: ") + infoStyle.Render(used))

	workDir, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	for _, dir := range []string{workDir, home} {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, config.FileName)
		fmt.Println(labelStyle.Render("Searched:      ") + infoStyle.Render(candidate+" "+existsIndicator(fileExists(candidate))))
	}

	if p, err := state.DefaultPath(); err == nil {
		fmt.Println(labelStyle.Render("Watch state:   ") + infoStyle.Render(p+" "+existsIndicator(fileExists(p))))
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}

	shown := *e.cfg
	shown.GitHub.Token = mask(shown.GitHub.Token)
	shown.Webhook.Secret = mask(shown.Webhook.Secret)
	shown.Bus.Redis.Password = mask(shown.Bus.Redis.Password)

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func existsIndicator(exists bool) string {
	if exists {
		return "✓"
	}
	return "✗"
}
