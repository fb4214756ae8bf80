package module

import "time"

// StateChangeEvent is emitted after a module entered a state.
type StateChangeEvent struct {
	Module   string
	Previous string
	Current  string
	RunID    string
}

// FailureEvent is emitted when a module is routed to the failed state.
type FailureEvent struct {
	Module string
	// State is the state the module was in when it failed.
	State string
	Err   error
	RunID string
}

// WarningEvent is emitted for non-fatal dependency findings, such as a
// recommended dependency that is not registered.
type WarningEvent struct {
	Module      string
	Declaration string
}

// RunEvent is emitted when a RunState call completes.
type RunEvent struct {
	RunID    string
	Target   string
	Modules  int
	Failed   int
	Duration time.Duration
}

// EventHandler receives manager events. Methods are called synchronously
// from the goroutine driving the affected module and must not block.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnModuleFailed(event FailureEvent)
	OnDependencyWarning(event WarningEvent)
	OnRunComplete(event RunEvent)
}

// NoopEventHandler ignores every event. Embed it to implement a subset of
// EventHandler.
type NoopEventHandler struct{}

func (NoopEventHandler) OnStateChange(StateChangeEvent)   {}
func (NoopEventHandler) OnModuleFailed(FailureEvent)      {}
func (NoopEventHandler) OnDependencyWarning(WarningEvent) {}
func (NoopEventHandler) OnRunComplete(RunEvent)           {}
