package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Deployment environments understood by the client. Offline has no backend,
// which leaves the sync engine inert.
const (
	EnvLocal   = "local"
	EnvHosted  = "hosted"
	EnvOffline = "offline"
)

const (
	localAPIBaseURL  = "http://localhost:5000/api"
	hostedAPIBaseURL = "https://productive-cloud.onrender.com/api"
)

type ClientConfig struct {
	Environment string          `mapstructure:"environment"`
	APIBaseURL  string          `mapstructure:"api_base_url"`
	DataPath    string          `mapstructure:"data_path"`
	DeviceID    string          `mapstructure:"device_id"`
	Sync        SyncConfig      `mapstructure:"sync"`
	Log         ClientLogConfig `mapstructure:"log"`
}

type SyncConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	FlushBudget time.Duration `mapstructure:"flush_budget"`
}

type ClientLogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// BaseURL resolves the Remote Store address. An explicit api_base_url wins;
// otherwise the environment picks one. Empty means no backend.
func (c *ClientConfig) BaseURL() string {
	if c.APIBaseURL != "" {
		return strings.TrimRight(c.APIBaseURL, "/")
	}
	switch c.Environment {
	case EnvLocal:
		return localAPIBaseURL
	case EnvHosted:
		return hostedAPIBaseURL
	default:
		return ""
	}
}

// LoadClient reads $HOME/.productive/config.yaml (or path when given) and
// PRODUCTIVE_* environment variables. A missing config file is not an error.
func LoadClient(path string) (*ClientConfig, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".productive")

	v.SetDefault("environment", EnvLocal)
	v.SetDefault("api_base_url", "")
	v.SetDefault("data_path", filepath.Join(dir, "local.db"))
	v.SetDefault("device_id", "")
	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.timeout", 10*time.Second)
	v.SetDefault("sync.flush_budget", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "sync.log"))

	v.SetEnvPrefix("PRODUCTIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read client config: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client config: %w", err)
	}

	switch cfg.Environment {
	case EnvLocal, EnvHosted, EnvOffline:
	default:
		return nil, fmt.Errorf("unknown environment %q", cfg.Environment)
	}

	if cfg.Sync.Interval <= 0 {
		return nil, fmt.Errorf("sync.interval must be positive")
	}

	return &cfg, nil
}
