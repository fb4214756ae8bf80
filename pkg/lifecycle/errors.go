package lifecycle

import "errors"

// Lifecycle errors. Configuration errors are returned by NewGraph, resolution
// errors by the Resolver. All can be checked with errors.Is.
var (
	// ErrNoPath is returned when no chain of former-state links connects two states.
	ErrNoPath = errors.New("lifecycle: no path between states")

	// ErrUnknownState is returned when a state name is not part of the graph.
	ErrUnknownState = errors.New("lifecycle: unknown state")

	// ErrUnknownFormerState is returned when a state lists a former state that does not exist.
	ErrUnknownFormerState = errors.New("lifecycle: unknown former state")

	// ErrDuplicateState is returned when two distinct states share a name.
	ErrDuplicateState = errors.New("lifecycle: duplicate state")

	// ErrInvalidState is returned for nil states or states without a name.
	ErrInvalidState = errors.New("lifecycle: invalid state")
)
