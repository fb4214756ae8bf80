package lifecycle

import (
	"context"
	"fmt"
	"strings"
)

// Order controls how modules cross a state relative to their dependencies.
type Order int

const (
	// Ascending states are entered by a module after all of its dependencies entered them.
	Ascending Order = iota

	// Descending states are entered by a module after all of its dependents entered them.
	Descending

	// Unordered states impose no ordering between modules.
	Unordered
)

// String returns a human-readable representation of the order.
func (o Order) String() string {
	switch o {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	case Unordered:
		return "unordered"
	default:
		return "unknown"
	}
}

// ParseOrder converts a configuration value into an Order.
// The empty string maps to Ascending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascending", "asc":
		return Ascending, nil
	case "descending", "desc":
		return Descending, nil
	case "unordered", "none":
		return Unordered, nil
	default:
		return Ascending, fmt.Errorf("unknown order %q", s)
	}
}

// Target is what actions run against. The module runtime passes its container.
type Target interface {
	Name() string
}

// Action is executed when a module enters the state that owns it.
type Action interface {
	// Applies reports whether the action should run for the given target.
	Applies(t Target) bool

	// Run performs the action.
	Run(ctx context.Context, t Target) error
}

// ActionFunc adapts a function to an Action that always applies.
type ActionFunc func(ctx context.Context, t Target) error

// Applies always returns true.
func (f ActionFunc) Applies(Target) bool { return true }

// Run calls f.
func (f ActionFunc) Run(ctx context.Context, t Target) error { return f(ctx, t) }

// GuardedAction runs Do only for targets accepted by Guard.
// A nil Guard accepts every target.
type GuardedAction struct {
	Guard func(t Target) bool
	Do    func(ctx context.Context, t Target) error
}

// Applies evaluates the guard.
func (a GuardedAction) Applies(t Target) bool {
	return a.Guard == nil || a.Guard(t)
}

// Run calls Do if set.
func (a GuardedAction) Run(ctx context.Context, t Target) error {
	if a.Do == nil {
		return nil
	}
	return a.Do(ctx, t)
}

// State is a node of the lifecycle graph. States are created at configuration
// time and must not be modified once passed to NewGraph.
type State struct {
	// Name uniquely identifies the state.
	Name string

	// From lists the names of the states this state may be reached from.
	From []string

	// Order is the inter-module ordering mode for entering this state.
	Order Order

	// Actions run in order on entry.
	Actions []Action

	// Terminal marks teardown states. Entering one releases the module's container.
	Terminal bool
}

// String returns the state name.
func (s *State) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}

// ReachableFrom reports whether name is listed as a former state.
func (s *State) ReachableFrom(name string) bool {
	for _, f := range s.From {
		if f == name {
			return true
		}
	}
	return false
}
