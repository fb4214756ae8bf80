package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "MODRUN_"

// ApplyEnvConfig applies MODRUN_* environment variables to cfg.
// These override file config but are overridden by flags (checked via changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("dir", env("DIR"), &cfg.DescriptorDir)
	s.setString("lifecycle", env("LIFECYCLE"), &cfg.LifecyclePath)
	s.setStringsFromString("target", env("TARGETS"), &cfg.Targets)
	s.setString("shutdown-state", env("SHUTDOWN_STATE"), &cfg.ShutdownState)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setDuration("debounce", env("DEBOUNCE"), &cfg.DebounceDelay); err != nil {
		return err
	}
	if err := s.setDuration("timeout", env("TIMEOUT"), &cfg.RunTimeout); err != nil {
		return err
	}
	if err := s.setIntFromString("cache-size", env("CACHE_SIZE"), &cfg.CacheSize); err != nil {
		return err
	}

	s.setBoolFromString("watch", env("WATCH"), &cfg.Watch)

	return nil
}
