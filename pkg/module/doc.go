// Package module manages a dynamic set of modules moving through a shared
// lifecycle under dependency ordering constraints.
//
// A Manager holds the registry. Each registered Container gets a Runtime that
// starts in the lifecycle's initial state. ReloadDependencies turns the
// modules' dependency declarations into edges, and RunState drives every
// module to a target state concurrently:
//
//   - before entering an ascending state a module waits for its dependencies
//     to reach it
//   - before entering a descending state a module waits for its dependents
//   - unordered states are entered without waiting
//
// Waiting is event driven. A runtime wakes its waiters whenever its state or
// plan changes.
//
// # Usage
//
//	mgr, err := module.New(graph, module.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	if err := mgr.AddModules(ctx, containers, true); err != nil {
//		return err
//	}
//	report, err := mgr.RunState(ctx, "enabled")
//
// # Failures
//
// A module whose action fails, whose dependency failed, or whose peer can no
// longer reach the awaited state is routed to the lifecycle's failed state and
// its container is released. Siblings keep running. Modules in the failed
// state stay there unless the lifecycle declares a way out.
//
// # Version
//
// Current version: 1.0.0
package module
