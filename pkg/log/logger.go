package log

import "time"

// Logger is the structured logger threaded through the manager, its runtimes
// and the runner. Per-state chatter (resolved chains, peer waits) goes to
// Debug; state entries and run summaries go to Info.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that attaches fields to every message.
	// Each runtime holds one tagged with its module name.
	With(fields ...Field) Logger
}

// Field is one key-value pair of a log message.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Strings creates a string slice field.
func Strings(key string, value []string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Module tags a message with the module it concerns.
func Module(name string) Field {
	return Field{Key: "module", Value: name}
}

// State tags a message with a lifecycle state name.
func State(name string) Field {
	return Field{Key: "state", Value: name}
}

// RunID tags a message with the id of a bulk state run.
func RunID(id string) Field {
	return Field{Key: "run_id", Value: id}
}
