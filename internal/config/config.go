package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all newcomer configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Bind string `yaml:"bind" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

type DataConfig struct {
	Dir   string `yaml:"dir"`   // resolved at runtime via DefaultDataDir() when empty
	Watch bool   `yaml:"watch"` // pick up member files dropped in by other tools
}

type SchedulerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval" validate:"gte=1s"`
	BatchSize int           `yaml:"batch_size" validate:"min=1,max=100"`
	Pacing    time.Duration `yaml:"pacing" validate:"gte=0s"`
}

type ThresholdsConfig struct {
	Retention     time.Duration `yaml:"retention" validate:"gt=0s"`
	Encouragement time.Duration `yaml:"encouragement" validate:"gt=0s"`
	HighRisk      int           `yaml:"high_risk" validate:"min=0,max=100,gtfield=MediumRisk"`
	MediumRisk    int           `yaml:"medium_risk" validate:"min=0,max=100"`
}

type DeliveryConfig struct {
	Mode       string        `yaml:"mode" validate:"oneof=webhook log"` // "webhook" or "log" (dry run)
	WebhookURL string        `yaml:"webhook_url" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0s"`
	ServerName string        `yaml:"server_name" validate:"required"`
	Channels   []string      `yaml:"channels"`
	Announce   string        `yaml:"announce"`
}

// LedgerConfig is the outreach journal policy. A zero retention keeps
// rows forever.
type LedgerConfig struct {
	NoteSize  int           `yaml:"note_size" validate:"min=64,max=65536"`
	Retention time.Duration `yaml:"retention" validate:"gte=0s"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38080,
		},
		Data: DataConfig{
			Dir:   "",
			Watch: true,
		},
		Scheduler: SchedulerConfig{
			Enabled:   true,
			Interval:  time.Minute,
			BatchSize: 5,
			Pacing:    time.Second,
		},
		Thresholds: ThresholdsConfig{
			Retention:     5 * time.Minute,
			Encouragement: 5 * time.Minute,
			HighRisk:      70,
			MediumRisk:    40,
		},
		Delivery: DeliveryConfig{
			Mode:       "log",
			Timeout:    5 * time.Second,
			ServerName: "the community",
			Announce:   "Hey <@{member}>, I just sent you a direct message! Take a look.",
		},
		Ledger: LedgerConfig{
			NoteSize:  1024,
			Retention: 90 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.newcomer/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".newcomer", "config.yaml")
	}
	return filepath.Join(home, ".newcomer", "config.yaml")
}

// DefaultDataDir returns ~/.newcomer/data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".newcomer", "data")
	}
	return filepath.Join(home, ".newcomer", "data")
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error when path is the
// default location.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = DefaultDataDir()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NEWCOMER_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("NEWCOMER_WEBHOOK_URL"); v != "" {
		c.Delivery.WebhookURL = v
		c.Delivery.Mode = "webhook"
	}
	if v := os.Getenv("NEWCOMER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Delivery.Mode == "webhook" && c.Delivery.WebhookURL == "" {
		return errors.New("invalid config: delivery.webhook_url is required in webhook mode")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// MembersDir is where member files live.
func (c *Config) MembersDir() string {
	return filepath.Join(c.Data.Dir, "members")
}

// PanelPath is the panel state file.
func (c *Config) PanelPath() string {
	return filepath.Join(c.Data.Dir, "panel.json")
}
