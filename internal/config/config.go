// Package config loads kicodexd's daemon configuration from a YAML file
// with environment variable overrides, the way a teacher-style CLI tool does.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Registry  RegistryConfig  `yaml:"registry"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RegistryConfig controls where the persistent registry lives and how
// aggressively the content watcher reloads libraries.
type RegistryConfig struct {
	Path              string        `yaml:"path"` // empty = platform default
	WatchDebounce     time.Duration `yaml:"watch_debounce"`
	ReloadBurstPerMin int           `yaml:"reload_burst_per_min"`
}

// DiscoveryConfig controls the process scanner and lock-file watcher.
type DiscoveryConfig struct {
	Enabled           bool          `yaml:"enabled"`
	ScanInterval      time.Duration `yaml:"scan_interval"`
	LockWatchDebounce time.Duration `yaml:"lock_watch_debounce"`
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 18734,
		},
		Registry: RegistryConfig{
			WatchDebounce:     time.Second,
			ReloadBurstPerMin: 30,
		},
		Discovery: DiscoveryConfig{
			Enabled:           true,
			ScanInterval:      2 * time.Second,
			LockWatchDebounce: time.Second,
		},
		Cache: CacheConfig{
			TTL:        5 * time.Second,
			MaxEntries: 10000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup function.
// This allows tests to provide isolated environment values.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if host := getenv("KICODEX_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := getenv("KICODEX_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			cfg.Server.Port = p
		}
	}
	if regPath := getenv("KICODEX_REGISTRY_PATH"); regPath != "" {
		cfg.Registry.Path = regPath
	}

	return cfg, nil
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "kicodex", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "kicodex", "config.yaml")
}

// DefaultRegistryPath returns the platform-conventional path for the
// persistent registry JSON document (see spec §4.4).
func DefaultRegistryPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}
	return filepath.Join(configDir, "kicodex", "projects.json")
}
