// Package lifecycle provides the configurable lifecycle state graph and the
// path resolver that walks it.
//
// A lifecycle is a set of named states. Each state lists the states it may be
// reached from (its former states), an ordering mode that tells the scheduler
// how modules cross it relative to their dependency graph, and the actions
// run when a module enters it. Two states are always present: the initial
// state every module starts in and the failed state modules are routed to
// when something goes wrong.
//
// # Usage
//
// Build a graph once at startup:
//
//	first := &lifecycle.State{Name: "first"}
//	failed := &lifecycle.State{Name: "failed"}
//	enabled := &lifecycle.State{Name: "enabled", From: []string{"first"}, Order: lifecycle.Ascending}
//	disabled := &lifecycle.State{Name: "disabled", From: []string{"enabled", "first"}, Order: lifecycle.Descending}
//
//	graph, err := lifecycle.NewGraph(lifecycle.Config{
//	    States:  []*lifecycle.State{enabled, disabled},
//	    Initial: first,
//	    Failed:  failed,
//	})
//
// Then resolve transition chains:
//
//	resolver, err := lifecycle.NewResolver(graph)
//	chain, err := resolver.PathTo(first, disabled) // [disabled]
//
// # Ordering Modes
//
//   - Ascending: a module enters the state after all of its dependencies did
//   - Descending: a module enters the state after all of its dependents did
//   - Unordered: no coordination
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
