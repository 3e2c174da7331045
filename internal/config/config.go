package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is searched for in the working directory and $HOME.
	FileName   = configName + ".yaml"
	configName = ".rivet-deploy"

	BusDriverMemory = "memory"
	BusDriverRedis  = "redis"
)

type Config struct {
	// Repository is the default owner/repo for CLI commands.
	Repository string        `yaml:"repository,omitempty" mapstructure:"repository"`
	GitHub     GitHubConfig  `yaml:"github" mapstructure:"github"`
	Webhook    WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
	Server     ServerConfig  `yaml:"server" mapstructure:"server"`
	Bus        BusConfig     `yaml:"bus" mapstructure:"bus"`
	Watch      WatchSettings `yaml:"watch" mapstructure:"watch"`
	Log        LogConfig     `yaml:"log" mapstructure:"log"`
}

type GitHubConfig struct {
	Token   string        `yaml:"token,omitempty" mapstructure:"token"`
	BaseURL string        `yaml:"baseURL" mapstructure:"baseURL"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type WebhookConfig struct {
	Secret      string   `yaml:"secret,omitempty" mapstructure:"secret"`
	NameMarkers []string `yaml:"nameMarkers" mapstructure:"nameMarkers"`
	PathMarkers []string `yaml:"pathMarkers" mapstructure:"pathMarkers"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type BusConfig struct {
	Driver string      `yaml:"driver" mapstructure:"driver"`
	Redis  RedisConfig `yaml:"redis,omitempty" mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" mapstructure:"addr"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
}

type WatchSettings struct {
	PollInterval time.Duration `yaml:"pollInterval" mapstructure:"pollInterval"`
	MaxWait      time.Duration `yaml:"maxWait" mapstructure:"maxWait"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com",
			Timeout: 30 * time.Second,
		},
		Webhook: WebhookConfig{
			NameMarkers: []string{"Deploy", "Apigee"},
			PathMarkers: []string{"apigeex"},
		},
		Server: ServerConfig{Addr: ":8080"},
		Bus:    BusConfig{Driver: BusDriverMemory},
		Watch: WatchSettings{
			PollInterval: 15 * time.Second,
			MaxWait:      2 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("repository", d.Repository)
	v.SetDefault("github.token", "")
	v.SetDefault("github.baseURL", d.GitHub.BaseURL)
	v.SetDefault("github.timeout", d.GitHub.Timeout)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.nameMarkers", d.Webhook.NameMarkers)
	v.SetDefault("webhook.pathMarkers", d.Webhook.PathMarkers)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("bus.driver", d.Bus.Driver)
	v.SetDefault("bus.redis.addr", "")
	v.SetDefault("bus.redis.password", "")
	v.SetDefault("bus.redis.db", 0)
	v.SetDefault("watch.pollInterval", d.Watch.PollInterval)
	v.SetDefault("watch.maxWait", d.Watch.MaxWait)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func newViper(path string) *viper.Viper {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	setDefaults(v)

	v.SetEnvPrefix("RIVET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The names the GitHub tooling already uses.
	_ = v.BindEnv("github.token", "RIVET_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("webhook.secret", "RIVET_WEBHOOK_SECRET", "GITHUB_WEBHOOK_SECRET")

	return v
}

// Load reads the config file at path, or searches for .rivet-deploy.yaml
// in the working directory and $HOME when path is empty. A file that is
// not found by searching is not an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithViper(path)
	return cfg, err
}

func LoadWithViper(path string) (*Config, *viper.Viper, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return config, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// WatchConfig reloads the file on change. Invalid reloads are logged and
// skipped.
func WatchConfig(v *viper.Viper, logger *slog.Logger, onConfigChange func(*Config)) {
	if logger == nil {
		logger = slog.Default()
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := decode(v)
		if err == nil {
			err = newConfig.Validate()
		}
		if err != nil {
			logger.Error("config reload rejected", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onConfigChange(newConfig)
	})
	v.WatchConfig()
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# rivet-deploy configuration
#
# - repository: default owner/repo for dispatch, status and watch
# - github: API endpoint, timeout and token (prefer GITHUB_TOKEN)
# - webhook: shared secret (prefer GITHUB_WEBHOOK_SECRET) and the
#   name/path markers that make an event deployment-related
# - bus: memory for a single process, redis to fan out across processes
# - watch: refresh interval and give-up time for 'rivet-deploy watch'
#
# Run 'rivet-deploy --help' for more information

`
	fullContent := header + string(data)

	if err := os.WriteFile(path, []byte(fullContent), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Repository != "" {
		if _, _, err := SplitRepository(c.Repository); err != nil {
			return err
		}
	}

	if c.GitHub.BaseURL == "" {
		return fmt.Errorf("github.baseURL must not be empty")
	}
	if c.GitHub.Timeout <= 0 {
		return fmt.Errorf("github.timeout must be positive, got %v", c.GitHub.Timeout)
	}

	if len(c.Webhook.NameMarkers) == 0 && len(c.Webhook.PathMarkers) == 0 {
		return fmt.Errorf("webhook needs at least one name or path marker")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	switch c.Bus.Driver {
	case BusDriverMemory:
	case BusDriverRedis:
		if c.Bus.Redis.Addr == "" {
			return fmt.Errorf("bus.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown bus.driver %q (want %s or %s)", c.Bus.Driver, BusDriverMemory, BusDriverRedis)
	}

	if c.Watch.PollInterval < 0 {
		return fmt.Errorf("watch.pollInterval must not be negative")
	}
	if c.Watch.MaxWait <= 0 {
		return fmt.Errorf("watch.maxWait must be positive, got %v", c.Watch.MaxWait)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q (want text or json)", c.Log.Format)
	}

	return nil
}

// SplitRepository splits "owner/repo".
func SplitRepository(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository must be in owner/repo format, got %q", fullName)
	}
	return owner, repo, nil
}

func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("unknown log.level %q", level)
	}
	return l, nil
}
