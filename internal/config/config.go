package config

import (
	"errors"
	"fmt"
	"os"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Twitch TwitchConfig `yaml:"twitch"`
	S3     S3Config     `yaml:"s3"`
	Poller PollerConfig `yaml:"poller"`
	Replay ReplayConfig `yaml:"replay"`
	Window WindowConfig `yaml:"window"`
	Log    LogConfig    `yaml:"log"`
	Status StatusConfig `yaml:"status"`
}

// TwitchConfig holds Twitch-specific configuration. Empty credentials join anonymously.
type TwitchConfig struct {
	Username string `yaml:"username" env:"TWITCH_USERNAME"`
	OAuth    string `yaml:"oauth" env:"TWITCH_OAUTH"`
}

// S3Config holds archive download configuration
type S3Config struct {
	Region          string `yaml:"region" env:"S3_REGION"`
	RoleARN         string `yaml:"role_arn" env:"AWS_ROLE_ARN"`                  // IAM role ARN for OIDC authentication
	TokenSocket     string `yaml:"token_socket" env:"OIDC_TOKEN_SOCKET"`         // Unix socket serving OIDC tokens
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`         // Static credentials
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"` // Static credentials
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`                   // For S3-compatible services
}

// PollerConfig holds the polling cadence and retained history
type PollerConfig struct {
	IntervalMillis int `yaml:"interval_ms" env:"POPUPCHAT_INTERVAL_MS"`
	MaxMessages    int `yaml:"max_messages" env:"POPUPCHAT_MAX_MESSAGES"`
}

// ReplayConfig holds archive replay configuration
type ReplayConfig struct {
	Speed float64 `yaml:"speed" env:"POPUPCHAT_REPLAY_SPEED"`
}

// WindowConfig is handed to the presentation layer once at startup
type WindowConfig struct {
	Width       int      `yaml:"width"`
	Height      int      `yaml:"height"`
	Decorations bool     `yaml:"decorations"`
	Opacity     *float64 `yaml:"opacity" env:"POPUPCHAT_OPACITY"`
	FontSize    int      `yaml:"font_size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"POPUPCHAT_LOG_LEVEL"`
	File  string `yaml:"file" env:"POPUPCHAT_LOG_FILE"`
}

// StatusConfig holds the optional status server address
type StatusConfig struct {
	Addr string `yaml:"addr" env:"POPUPCHAT_STATUS_ADDR"`
}

const (
	DefaultIntervalMillis = 500
	DefaultMaxMessages    = 50
	DefaultOpacity        = 0.25
	DefaultWidth          = 400
	DefaultHeight         = 400
	DefaultFontSize       = 13
	DefaultLogFile        = "popupchat.log"
)

var (
	ErrInvalidOpacity = errors.New("window.opacity must be between 0 and 1")
	ErrInvalidLevel   = errors.New("log.level must be one of debug, info, warn, error")
)

// Load loads configuration from a file. A missing file at an optional path yields defaults.
// The result is not validated, callers apply their overrides and then call Validate.
func Load(path string, required bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// .env is optional, existing environment variables take precedence
	_ = godotenv.Load()

	// Apply environment variable overrides
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Poller.IntervalMillis == 0 {
		c.Poller.IntervalMillis = DefaultIntervalMillis
	}
	if c.Poller.MaxMessages == 0 {
		c.Poller.MaxMessages = DefaultMaxMessages
	}
	if c.Replay.Speed == 0 {
		c.Replay.Speed = 1
	}
	if c.Window.Width == 0 {
		c.Window.Width = DefaultWidth
	}
	if c.Window.Height == 0 {
		c.Window.Height = DefaultHeight
	}
	if c.Window.Opacity == nil {
		opacity := DefaultOpacity
		c.Window.Opacity = &opacity
	}
	if c.Window.FontSize == 0 {
		c.Window.FontSize = DefaultFontSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = DefaultLogFile
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Window.Opacity != nil && (*c.Window.Opacity < 0 || *c.Window.Opacity > 1) {
		return fmt.Errorf("%w, got %v", ErrInvalidOpacity, *c.Window.Opacity)
	}
	if c.Poller.IntervalMillis < 0 {
		return fmt.Errorf("poller.interval_ms must be positive, got %d", c.Poller.IntervalMillis)
	}
	if c.Poller.MaxMessages < 0 {
		return fmt.Errorf("poller.max_messages must be positive, got %d", c.Poller.MaxMessages)
	}
	if c.Replay.Speed < 0 {
		return fmt.Errorf("replay.speed must be positive, got %v", c.Replay.Speed)
	}
	if c.Twitch.OAuth != "" && c.Twitch.Username == "" {
		return fmt.Errorf("twitch.username is required when twitch.oauth is set")
	}
	// If using static credentials, both key and secret are required
	if c.S3.AccessKeyID != "" && c.S3.SecretAccessKey == "" {
		return fmt.Errorf("s3.secret_access_key is required when using access_key_id")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w, got %q", ErrInvalidLevel, c.Log.Level)
	}
	return nil
}

// OpacityValue returns the configured opacity
func (c *Config) OpacityValue() float64 {
	if c.Window.Opacity == nil {
		return DefaultOpacity
	}
	return *c.Window.Opacity
}
