// Package config resolves the abeto home directory and loads layered settings:
// defaults, <home>/config.yaml, ABETO_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultAddr is where the server listens unless configured otherwise.
const DefaultAddr = "127.0.0.1:3548"

// Config is the full runtime configuration.
type Config struct {
	Home       string          `mapstructure:"-"`
	Addr       string          `mapstructure:"addr"`
	APIKey     string          `mapstructure:"api_key"`
	Dev        bool            `mapstructure:"dev"`
	PublicURL  string          `mapstructure:"public_url"`
	ReviewerID string          `mapstructure:"reviewer_id"`
	DB         DBConfig        `mapstructure:"db"`
	Slack      SlackConfig     `mapstructure:"slack"`
	Assistant  AssistantConfig `mapstructure:"assistant"`
	Progress   ProgressConfig  `mapstructure:"progress"`
}

// DBConfig selects the record store.
type DBConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

// SlackConfig enables review completion messages when WebhookURL is set.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// AssistantConfig points the chat assistant at an OpenAI-compatible endpoint. The
// assistant is disabled without an API key.
type AssistantConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	RatePerMinute float64 `mapstructure:"rate_per_minute"`
	Burst         int     `mapstructure:"burst"`
}

// ProgressConfig controls the progress recomputation worker; zero Interval disables it.
type ProgressConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Path returns <home>/config.yaml.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// setDefaults registers every key; viper only unmarshals env and flag values for keys
// it already knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("api_key", "")
	v.SetDefault("dev", false)
	v.SetDefault("public_url", "")
	v.SetDefault("reviewer_id", "")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "")
	v.SetDefault("slack.webhook_url", "")
	v.SetDefault("slack.channel", "")
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.base_url", "https://api.openai.com/v1")
	v.SetDefault("assistant.model", "gpt-4o-mini")
	v.SetDefault("assistant.rate_per_minute", 20.0)
	v.SetDefault("assistant.burst", 5)
	v.SetDefault("progress.interval", time.Minute)
}

// Load reads the configuration for home. flags may be nil; flags that were set on the
// command line override every other source. Flag names use dashes for dots and
// underscores (e.g. --db-driver binds db.driver).
func Load(home string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(Path(home))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return Config{}, fmt.Errorf("read %s: %w", Path(home), err)
		}
	}

	v.SetEnvPrefix("ABETO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Well-known variables used by the hosted deployment.
	_ = v.BindEnv("db.dsn", "ABETO_DB_DSN", "DATABASE_URL")
	_ = v.BindEnv("slack.webhook_url", "ABETO_SLACK_WEBHOOK_URL", "SLACK_WEBHOOK_URL")
	_ = v.BindEnv("assistant.api_key", "ABETO_ASSISTANT_API_KEY", "OPENAI_API_KEY")

	if flags != nil {
		for _, key := range v.AllKeys() {
			name := strings.NewReplacer(".", "-", "_", "-").Replace(key)
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Home = home
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "":
	case "postgres":
		if c.DB.DSN == "" {
			return errors.New("db.driver postgres requires db.dsn or DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown db.driver %q (want sqlite or postgres)", c.DB.Driver)
	}
	if c.Assistant.RatePerMinute < 0 || c.Assistant.Burst < 0 {
		return errors.New("assistant rate limits must not be negative")
	}
	if c.Progress.Interval < 0 {
		return errors.New("progress.interval must not be negative")
	}
	return nil
}

// ChatEnabled reports whether the assistant has credentials.
func (c Config) ChatEnabled() bool {
	return c.Assistant.APIKey != ""
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
