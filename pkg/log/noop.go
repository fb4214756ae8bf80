package log

// NoopLogger drops every message. Managers, runners, watchers and the action
// registry fall back to it when no logger is configured.
type NoopLogger struct{}

// NewNoopLogger returns a NoopLogger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}

// With drops fields too; per-module children of a NoopLogger stay silent.
func (n NoopLogger) With(...Field) Logger { return n }
