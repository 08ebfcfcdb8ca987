package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
)

// Config holds all shell configuration.
type Config struct {
	Server  ServerConfig `yaml:"server" toml:"server"`
	Logging LogConfig    `yaml:"logging" toml:"logging"`
	Speech  SpeechConfig `yaml:"speech" toml:"speech"`
	Update  UpdateConfig `yaml:"update" toml:"update"`
	Script  ScriptConfig `yaml:"script" toml:"script"`
}

// ServerConfig holds the websocket host's HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"127.0.0.1" yaml:"host" toml:"host"`
	Port string `envconfig:"PORT" default:"8765" yaml:"port" toml:"port"`
	// AllowedOrigin restricts browser clients; empty allows any origin.
	AllowedOrigin string `envconfig:"BRIDGE_ORIGIN" yaml:"allowed_origin" toml:"allowed_origin"`
	// RateLimit is requests per second per client address; 0 disables it.
	RateLimit float64 `envconfig:"BRIDGE_RATE_LIMIT" default:"0" yaml:"rate_limit" toml:"rate_limit"`
	RateBurst int     `envconfig:"BRIDGE_RATE_BURST" default:"20" yaml:"rate_burst" toml:"rate_burst"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// SpeechConfig configures the dictation handler.
type SpeechConfig struct {
	ChunkSize int    `envconfig:"SPEECH_CHUNK_SIZE" default:"1280" yaml:"chunk_size" toml:"chunk_size"`
	WorkDir   string `envconfig:"SPEECH_WORKDIR" yaml:"work_dir" toml:"work_dir"`
	AssetDir  string `envconfig:"SPEECH_ASSETS" yaml:"asset_dir" toml:"asset_dir"`
	// AssetPatterns limits the copied assets to matching relative paths
	// ("res/**/*.bin"); empty copies everything.
	AssetPatterns []string `envconfig:"SPEECH_ASSET_PATTERNS" yaml:"asset_patterns" toml:"asset_patterns"`
	// Source is the capture to recognize; "-" reads stdin.
	Source string `envconfig:"SPEECH_SOURCE" default:"-" yaml:"source" toml:"source"`
}

// UpdateConfig configures the update checker.
type UpdateConfig struct {
	BaseURL     string   `envconfig:"UPDATE_BASE_URL" yaml:"base_url" toml:"base_url"`
	Branch      string   `envconfig:"UPDATE_BRANCH" yaml:"branch" toml:"branch"`
	Channel     string   `envconfig:"UPDATE_CHANNEL" default:"release" yaml:"channel" toml:"channel"`
	BuildType   string   `envconfig:"UPDATE_BUILD_TYPE" default:"release" yaml:"build_type" toml:"build_type"`
	VersionCode int      `envconfig:"UPDATE_VERSION_CODE" default:"0" yaml:"version_code" toml:"version_code"`
	Timeout     Duration `envconfig:"UPDATE_TIMEOUT" default:"10s" yaml:"timeout" toml:"timeout"`
	MinInterval Duration `envconfig:"UPDATE_MIN_INTERVAL" default:"1m" yaml:"min_interval" toml:"min_interval"`
}

// ScriptConfig configures the embedded script host.
type ScriptConfig struct {
	Timeout Duration `envconfig:"SCRIPT_TIMEOUT" default:"30s" yaml:"timeout" toml:"timeout"`
}

// Duration is a time.Duration written as "10s" in env vars and files.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads the environment and then overlays the YAML or TOML file
// at path, chosen by extension. Keys present in the file win.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would only fail later at startup.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Speech.ChunkSize <= 0 {
		errs = append(errs, errors.New("speech.chunk_size must be positive"))
	}
	for _, p := range c.Speech.AssetPatterns {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("speech.asset_patterns: invalid pattern %q", p))
		}
	}
	switch c.Update.Channel {
	case "release", "nightly":
	default:
		errs = append(errs, fmt.Errorf("update.channel: unknown channel %q", c.Update.Channel))
	}
	if c.Script.Timeout < 0 {
		errs = append(errs, errors.New("script.timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      "8765",
			RateBurst: 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Speech: SpeechConfig{
			ChunkSize: 1280,
			Source:    "-",
		},
		Update: UpdateConfig{
			Channel:     "release",
			BuildType:   "release",
			Timeout:     Duration(10 * time.Second),
			MinInterval: Duration(time.Minute),
		},
		Script: ScriptConfig{
			Timeout: Duration(30 * time.Second),
		},
	}
}
