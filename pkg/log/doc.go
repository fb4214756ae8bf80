// Package log provides the logging abstraction used across modrun.
//
// The engine never talks to a concrete logging library. It logs through the
// Logger interface defined here, which has a zerolog-backed implementation
// for real processes and a no-op implementation for tests and embedding.
//
// # Usage
//
// Use the zerolog adapter with console output:
//
//	logger := log.NewZerologAdapter(log.LevelInfo)
//
// Scope a logger to a single module so every line carries its name:
//
//	mlog := logger.With(log.Module("billing"))
//	mlog.Info("state entered", log.State("enabled"))
//
// Or discard everything:
//
//	logger := log.NewNoopLogger()
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package log
