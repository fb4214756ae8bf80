package depgraph

import "errors"

// Build errors, reported per module by Reload.
var (
	// ErrMissingRequired is reported when a required dependency is not registered.
	ErrMissingRequired = errors.New("depgraph: required dependency is not registered")

	// ErrIncompatiblePresent is reported when an incompatible module is registered.
	ErrIncompatiblePresent = errors.New("depgraph: incompatible module is registered")

	// ErrDependencyCycle is reported for every member of a dependency cycle.
	ErrDependencyCycle = errors.New("depgraph: dependency cycle")
)
