package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingOptionalFileUsesDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)

	req.NoError(err)
	req.Equal(DefaultIntervalMillis, cfg.Poller.IntervalMillis)
	req.Equal(DefaultMaxMessages, cfg.Poller.MaxMessages)
	req.Equal(DefaultOpacity, cfg.OpacityValue())
	req.Equal(DefaultWidth, cfg.Window.Width)
	req.Equal(DefaultHeight, cfg.Window.Height)
	req.False(cfg.Window.Decorations)
	req.Equal("info", cfg.Log.Level)
	req.Equal(1.0, cfg.Replay.Speed)
}

func TestLoad_MissingRequiredFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)

	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_File(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
twitch:
  username: bot
  oauth: oauth:abc
poller:
  interval_ms: 250
  max_messages: 20
window:
  opacity: 0
  decorations: true
log:
  level: debug
`)

	cfg, err := Load(path, true)

	req.NoError(err)
	req.Equal("bot", cfg.Twitch.Username)
	req.Equal(250, cfg.Poller.IntervalMillis)
	req.Equal(20, cfg.Poller.MaxMessages)
	req.Equal(0.0, cfg.OpacityValue())
	req.True(cfg.Window.Decorations)
	req.Equal("debug", cfg.Log.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, "twitch:\n  username: bot\n  oauth: from-file\n")
	t.Setenv("TWITCH_OAUTH", "from-env")
	t.Setenv("POPUPCHAT_OPACITY", "0.8")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")

	cfg, err := Load(path, true)

	req.NoError(err)
	req.Equal("from-env", cfg.Twitch.OAuth)
	req.Equal(0.8, cfg.OpacityValue())
	req.Equal("http://localhost:9000", cfg.S3.Endpoint)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "poller: [unclosed"), true)

	require.ErrorContains(t, err, "parse config file")
}

func TestLoad_LeavesValidationToCaller(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, "window:\n  opacity: 1.5\n")

	cfg, err := Load(path, true)

	req.NoError(err)
	req.ErrorIs(cfg.Validate(), ErrInvalidOpacity)

	valid := 0.5
	cfg.Window.Opacity = &valid
	req.NoError(cfg.Validate())
}

func TestValidate(t *testing.T) {
	opacity := func(v float64) *float64 { return &v }

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "opacity too high", mutate: func(c *Config) { c.Window.Opacity = opacity(1.5) }, wantErr: ErrInvalidOpacity},
		{name: "opacity negative", mutate: func(c *Config) { c.Window.Opacity = opacity(-0.1) }, wantErr: ErrInvalidOpacity},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: ErrInvalidLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.applyDefaults()
			tc.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tc.wantErr)
		})
	}
}

func TestValidate_CredentialPairs(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	cfg.S3.AccessKeyID = "AKIA"
	require.ErrorContains(t, cfg.Validate(), "secret_access_key")

	cfg = Config{}
	cfg.applyDefaults()
	cfg.Twitch.OAuth = "oauth:abc"
	require.ErrorContains(t, cfg.Validate(), "twitch.username")
}
