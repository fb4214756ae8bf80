package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	DescriptorDir string   `toml:"dir"`
	LifecyclePath string   `toml:"lifecycle"`
	Targets       []string `toml:"targets"`
	ShutdownState *string  `toml:"shutdown_state"`
	LogLevel      string   `toml:"log_level"`
	MetricsAddr   string   `toml:"metrics_addr"`
	Watch         *bool    `toml:"watch"`
	DebounceDelay string   `toml:"debounce"`
	RunTimeout    string   `toml:"timeout"`
	CacheSize     int      `toml:"cache_size"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.modrun/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".modrun", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("dir", fc.DescriptorDir, &cfg.DescriptorDir)
	s.setString("lifecycle", fc.LifecyclePath, &cfg.LifecyclePath)
	s.setStrings("target", fc.Targets, &cfg.Targets)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	// An explicitly empty shutdown_state disables teardown.
	if fc.ShutdownState != nil && !changed["shutdown-state"] {
		cfg.ShutdownState = *fc.ShutdownState
	}

	if err := s.setDuration("debounce", fc.DebounceDelay, &cfg.DebounceDelay); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.RunTimeout, &cfg.RunTimeout); err != nil {
		return err
	}

	s.setInt("cache-size", fc.CacheSize, &cfg.CacheSize)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
