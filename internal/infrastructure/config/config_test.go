package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HOST", "PORT", "BRIDGE_ORIGIN", "BRIDGE_RATE_LIMIT", "BRIDGE_RATE_BURST",
	"LOG_LEVEL", "LOG_DEV",
	"SPEECH_CHUNK_SIZE", "SPEECH_WORKDIR", "SPEECH_ASSETS", "SPEECH_ASSET_PATTERNS", "SPEECH_SOURCE",
	"UPDATE_BASE_URL", "UPDATE_BRANCH", "UPDATE_CHANNEL", "UPDATE_BUILD_TYPE",
	"UPDATE_VERSION_CODE", "UPDATE_TIMEOUT", "UPDATE_MIN_INTERVAL",
	"SCRIPT_TIMEOUT",
}

// clearEnv unsets every config variable for the test; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8765", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1280, cfg.Speech.ChunkSize)
	assert.Equal(t, "release", cfg.Update.Channel)
	assert.Equal(t, 10*time.Second, cfg.Update.Timeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Script.Timeout.Std())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	envVars := map[string]string{
		"PORT":                "9000",
		"HOST":                "0.0.0.0",
		"BRIDGE_ORIGIN":       "http://localhost:5173",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
		"SPEECH_CHUNK_SIZE":   "640",
		"SPEECH_WORKDIR":      "/var/lib/shell/aikit",
		"UPDATE_BASE_URL":     "https://dl.example.com",
		"UPDATE_CHANNEL":      "nightly",
		"UPDATE_VERSION_CODE": "12",
		"UPDATE_TIMEOUT":      "3s",
		"SCRIPT_TIMEOUT":      "1m",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, "http://localhost:5173", cfg.Server.AllowedOrigin)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 640, cfg.Speech.ChunkSize)
	assert.Equal(t, "/var/lib/shell/aikit", cfg.Speech.WorkDir)
	assert.Equal(t, "https://dl.example.com", cfg.Update.BaseURL)
	assert.Equal(t, "nightly", cfg.Update.Channel)
	assert.Equal(t, 12, cfg.Update.VersionCode)
	assert.Equal(t, 3*time.Second, cfg.Update.Timeout.Std())
	assert.Equal(t, time.Minute, cfg.Script.Timeout.Std())
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPEECH_CHUNK_SIZE", "lots")
	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 1280, cfg.Speech.ChunkSize)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "shell.yaml",
			content: `
server:
  port: "9100"
speech:
  chunk_size: 320
update:
  channel: nightly
  timeout: 5s
`,
		},
		{
			name: "toml",
			file: "shell.toml",
			content: `
[server]
port = "9100"

[speech]
chunk_size = 320

[update]
channel = "nightly"
timeout = "5s"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "9100", cfg.Server.Port)
			assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset keys keep env defaults")
			assert.Equal(t, 320, cfg.Speech.ChunkSize)
			assert.Equal(t, "nightly", cfg.Update.Channel)
			assert.Equal(t, 5*time.Second, cfg.Update.Timeout.Std())
			assert.Equal(t, 30*time.Second, cfg.Script.Timeout.Std())
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "config load failed")

	ini := filepath.Join(dir, "shell.ini")
	require.NoError(t, os.WriteFile(ini, []byte("port=1"), 0o644))
	_, err = LoadFile(ini)
	assert.ErrorContains(t, err, "unsupported config format")

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[server\nport="), 0o644))
	_, err = LoadFile(bad)
	assert.ErrorContains(t, err, "config parse failed")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "level", mutate: func(c *Config) { c.Logging.Level = "loud" }, want: "logging.level"},
		{name: "chunk size", mutate: func(c *Config) { c.Speech.ChunkSize = 0 }, want: "speech.chunk_size"},
		{name: "channel", mutate: func(c *Config) { c.Update.Channel = "beta" }, want: "update.channel"},
		{name: "timeout", mutate: func(c *Config) { c.Script.Timeout = -1 }, want: "script.timeout"},
		{name: "asset pattern", mutate: func(c *Config) { c.Speech.AssetPatterns = []string{"res/["} }, want: "speech.asset_patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestRateLimitSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRIDGE_RATE_LIMIT", "2.5")
	t.Setenv("BRIDGE_RATE_BURST", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
	assert.Equal(t, 5, cfg.Server.RateBurst)

	cfg.Server.RateLimit = -1
	assert.ErrorContains(t, cfg.Validate(), "server.rate_limit")
}

func TestAssetPatterns(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPEECH_ASSET_PATTERNS", "res/**/*.bin,words.txt")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"res/**/*.bin", "words.txt"}, cfg.Speech.AssetPatterns)
	assert.NoError(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "shell.yaml")
	require.NoError(t, os.WriteFile(path, []byte("speech:\n  asset_patterns: [\"*.dat\"]\n"), 0o644))
	cfg, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.dat"}, cfg.Speech.AssetPatterns)
}
