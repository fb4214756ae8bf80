package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/modrun/pkg/log"
)

// Config holds CLI configuration for modrun.
type Config struct {
	// DescriptorDir holds the module descriptor files.
	DescriptorDir string
	// LifecyclePath points to a lifecycle TOML file. Empty uses the built-in lifecycle.
	LifecyclePath string

	// Targets are the states to run, in order.
	Targets []string
	// ShutdownState is run on exit in watch mode. Empty skips teardown.
	ShutdownState string

	LogLevel    string
	MetricsAddr string

	Watch         bool
	DebounceDelay time.Duration
	RunTimeout    time.Duration
	CacheSize     int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Targets:       []string{"enabled"},
		ShutdownState: "unloaded",
		LogLevel:      string(log.LevelInfo),
		DebounceDelay: 100 * time.Millisecond,
		RunTimeout:    0,
		CacheSize:     4096,
	}
}

// Validate checks the configuration for errors and normalizes values.
func (c *Config) Validate() error {
	if c.DescriptorDir == "" {
		return fmt.Errorf("dir is required")
	}

	targets := c.Targets[:0]
	for _, t := range c.Targets {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	c.Targets = targets
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target state is required")
	}

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	c.LogLevel = string(level)

	if c.DebounceDelay <= 0 {
		return fmt.Errorf("debounce delay must be positive")
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string slice if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setStringsFromString splits a comma separated list.
func (s *configSetter) setStringsFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
