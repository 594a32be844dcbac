// Package config provides YAML-based configuration loading for flowguard,
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config is the top-level flowguard configuration, loaded from flowguard.yaml.
type Config struct {
	Environment string           `yaml:"environment"`
	Database    DatabaseConfig   `yaml:"database"`
	Server      ServerConfig     `yaml:"server"`
	Guardian    GuardianConfig   `yaml:"guardian"`
	Reflection  ReflectionConfig `yaml:"reflection"`
	Telegraph   TelegraphConfig  `yaml:"telegraph"`
	NATS        NATSConfig       `yaml:"nats"`
	Export      ExportConfig     `yaml:"export"`
	Log         LogConfig        `yaml:"log"`
}

// DatabaseConfig selects and addresses the backing store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
}

// GuardianConfig configures the AI advisor.
type GuardianConfig struct {
	Enabled                bool     `yaml:"enabled"`
	APIKey                 string   `yaml:"api_key"`
	BaseURL                string   `yaml:"base_url"`
	Model                  string   `yaml:"model"`
	TimeoutMS              int      `yaml:"timeout_ms"`
	OwnerSaturationExclude []string `yaml:"owner_saturation_exclude"`
}

// ReflectionConfig overrides the feed thresholds. Zero means default.
type ReflectionConfig struct {
	DependencyDoneWindowDays      int `yaml:"dependency_done_window_days"`
	ProjectOpenRiskMin            int `yaml:"project_open_risk_min"`
	PostponementMinRenegotiations int `yaml:"postponement_min_renegotiations"`
	UnstableProjectSignalMin      int `yaml:"unstable_project_signal_min"`
	NewCommitmentWindowDays       int `yaml:"new_commitment_window_days"`
	CooldownHours                 int `yaml:"cooldown_hours"`
	MaxFeedItems                  int `yaml:"max_feed_items"`
}

// TelegraphConfig configures scheduled chat delivery.
type TelegraphConfig struct {
	Platform        string        `yaml:"platform"` // slack, discord or github
	WeeklyBriefCron string        `yaml:"weekly_brief_cron"`
	FeedCron        string        `yaml:"feed_cron"`
	Slack           SlackConfig   `yaml:"slack"`
	Discord         DiscordConfig `yaml:"discord"`
	GitHub          GitHubConfig  `yaml:"github"`
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// GitHubConfig targets the repository that receives brief issues.
type GitHubConfig struct {
	Token  string   `yaml:"token"`
	Owner  string   `yaml:"owner"`
	Repo   string   `yaml:"repo"`
	Labels []string `yaml:"labels"`
}

// NATSConfig enables event publishing when URL is set.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// ExportConfig targets the S3-compatible bucket for snapshot export.
type ExportConfig struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EnvPrefix scopes flowguard environment overrides, e.g.
// FLOWGUARD_DATABASE_PATH -> database.path.
const EnvPrefix = "FLOWGUARD_"

// envAliases maps legacy variable names onto config keys.
var envAliases = map[string]string{
	"NEXT_PUBLIC_APP_ENV":                    "environment",
	"NEXT_PUBLIC_FLOW_GUARDIAN_ENABLED":      "guardian.enabled",
	"OPENAI_API_KEY":                         "guardian.api_key",
	"FLOW_GUARDIAN_MODEL_ADVISOR":            "guardian.model",
	"FLOW_GUARDIAN_TIMEOUT_MS":               "guardian.timeout_ms",
	"FLOW_GUARDIAN_OWNER_SATURATION_EXCLUDE": "guardian.owner_saturation_exclude",
}

// Load reads the YAML file at path, overlays environment variables and
// returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes is Load over in-memory YAML.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return finish(&cfg)
}

// Parse unmarshals YAML bytes into a validated Config without environment overrides.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps FLOWGUARD_SECTION_FIELD_NAME to section.field_name and legacy
// aliases to their keys. Anything else is ignored.
func envKey(s string) string {
	if key, ok := envAliases[s]; ok {
		return key
	}
	if !strings.HasPrefix(s, EnvPrefix) {
		return ""
	}
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// envListKeys are the list-valued keys reachable from the environment; their
// variables hold comma-separated values.
var envListKeys = map[string]bool{
	"guardian.owner_saturation_exclude": true,
}

// envValue maps a variable through envKey and splits list-valued keys on commas.
func envValue(name, value string) (string, any) {
	key := envKey(name)
	if key == "" || !envListKeys[key] {
		return key, value
	}
	items := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return key, items
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "flowguard.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Guardian.Model == "" {
		c.Guardian.Model = "gpt-4o-mini"
	}
	if c.Guardian.TimeoutMS == 0 {
		c.Guardian.TimeoutMS = 15000
	}
	if c.Telegraph.WeeklyBriefCron == "" {
		c.Telegraph.WeeklyBriefCron = "0 9 * * 1"
	}
	if c.Telegraph.FeedCron == "" {
		c.Telegraph.FeedCron = "0 9 * * *"
	}
	if c.Export.Prefix == "" {
		c.Export.Prefix = "flowguard"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Guardian.TimeoutMS < 0 {
		errs = append(errs, "guardian.timeout_ms must be positive")
	}
	r := c.Reflection
	for _, f := range []struct {
		name string
		v    int
	}{
		{"dependency_done_window_days", r.DependencyDoneWindowDays},
		{"project_open_risk_min", r.ProjectOpenRiskMin},
		{"postponement_min_renegotiations", r.PostponementMinRenegotiations},
		{"unstable_project_signal_min", r.UnstableProjectSignalMin},
		{"new_commitment_window_days", r.NewCommitmentWindowDays},
		{"cooldown_hours", r.CooldownHours},
		{"max_feed_items", r.MaxFeedItems},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Sprintf("reflection.%s must not be negative", f.name))
		}
	}
	switch c.Telegraph.Platform {
	case "":
	case "slack":
		if c.Telegraph.Slack.BotToken == "" || c.Telegraph.Slack.ChannelID == "" {
			errs = append(errs, "telegraph.slack.bot_token and channel_id are required")
		}
	case "discord":
		if c.Telegraph.Discord.BotToken == "" || c.Telegraph.Discord.ChannelID == "" {
			errs = append(errs, "telegraph.discord.bot_token and channel_id are required")
		}
	case "github":
		g := c.Telegraph.GitHub
		if g.Token == "" || g.Owner == "" || g.Repo == "" {
			errs = append(errs, "telegraph.github.token, owner and repo are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("telegraph.platform %q is not supported (slack, discord, github)", c.Telegraph.Platform))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not supported", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not supported", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
