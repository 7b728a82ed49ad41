package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/Rohianon/folio/pkg/errors"
)

const (
	EnvPrefix = "FOLIO"
	DirName   = ".folio"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	History   HistoryConfig   `mapstructure:"history"`
	Display   DisplayConfig   `mapstructure:"display"`
	Charts    ChartsConfig    `mapstructure:"charts"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RefreshConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Schedule    string        `mapstructure:"schedule"`
	ManualBurst int           `mapstructure:"manual_burst"`
	ManualEvery time.Duration `mapstructure:"manual_every"`
}

type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type DisplayConfig struct {
	Currency string `mapstructure:"currency"`
	Format   string `mapstructure:"format"`
}

type ChartsConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// ServerConfig is only read by the mock backend.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	CollectorURL string `mapstructure:"collector_url"`
	Enabled      bool   `mapstructure:"enabled"`
}

// Load reads configName.yaml from the usual search paths, overlays FOLIO_*
// environment variables and fills in defaults.
func Load(configName string) (*Config, error) {
	v := viper.New()
	Configure(v, configName)
	return Decode(v)
}

// Configure prepares v with search paths, env binding and defaults without
// reading anything. The CLI calls it on its own viper so flags bind into
// the same instance.
func Configure(v *viper.Viper, configName string) {
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if dir, err := Dir(); err == nil {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
}

// Decode reads the config file if one exists and unmarshals v.
func Decode(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	if c.API.URL == "" {
		problems = append(problems, "api.url is required")
	}
	if c.API.Timeout <= 0 {
		problems = append(problems, "api.timeout must be positive")
	}
	if c.Refresh.Interval <= 0 {
		problems = append(problems, "refresh.interval must be positive")
	}
	if c.History.Capacity < 1 {
		problems = append(problems, "history.capacity must be at least 1")
	}
	if c.Charts.Format != "png" && c.Charts.Format != "svg" {
		problems = append(problems, "charts.format must be png or svg")
	}
	if c.Display.Format != "table" && c.Display.Format != "json" {
		problems = append(problems, "display.format must be table or json")
	}

	if len(problems) > 0 {
		return apperrors.ErrValidation.
			WithMessage("invalid configuration").
			WithDetails(problems)
	}
	return nil
}

// Dir returns the per-user folio directory (~/.folio).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "http://localhost:8093/api")
	v.SetDefault("api.timeout", "10s")

	v.SetDefault("refresh.interval", "30s")
	v.SetDefault("refresh.schedule", "@every 30s")
	v.SetDefault("refresh.manual_burst", 1)
	v.SetDefault("refresh.manual_every", "2s")

	v.SetDefault("history.capacity", 20)

	v.SetDefault("display.currency", "INR")
	v.SetDefault("display.format", "table")

	v.SetDefault("charts.dir", filepath.Join(os.TempDir(), "folio-charts"))
	v.SetDefault("charts.format", "png")

	v.SetDefault("storage.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", true)
	v.SetDefault("logging.file", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8093)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "folio")
	v.SetDefault("telemetry.collector_url", "localhost:4317")
}
