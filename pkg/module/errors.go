package module

import "errors"

// Module errors. All can be checked with errors.Is.
var (
	// ErrDuplicateModule is returned when a module name is registered twice.
	ErrDuplicateModule = errors.New("module: duplicate module name")

	// ErrInvalidDescription is returned for descriptions that fail validation.
	ErrInvalidDescription = errors.New("module: invalid description")

	// ErrDependencyFailed is reported when a dependency sits in the failed state
	// while a module waits for it.
	ErrDependencyFailed = errors.New("module: dependency failed")

	// ErrDependencyStalled is reported when a peer is not being driven and has
	// not reached the state a module waits for.
	ErrDependencyStalled = errors.New("module: dependency stalled")

	// ErrActionFailed wraps errors returned by state actions.
	ErrActionFailed = errors.New("module: action failed")

	// ErrModuleFailed is reported for modules in the failed state that cannot
	// leave it towards the requested state.
	ErrModuleFailed = errors.New("module: module is in the failed state")

	// ErrUnknownModule is returned when no module is registered under a name.
	ErrUnknownModule = errors.New("module: unknown module")
)
