// Package modrun provides an embeddable module lifecycle runtime.
//
// Modules are described by small descriptor files and registered with a
// [Manager]. The manager drives every module through a user defined
// lifecycle, ordering each transition by the modules' declared dependencies.
//
// # Basic Usage
//
//	graph, err := lifecycle.NewGraph(lifecycle.Config{...})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m, err := modrun.New(graph, modrun.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	if err := m.AddModules(ctx, containers, true); err != nil {
//	    log.Printf("some modules were not registered: %v", err)
//	}
//	report, err := m.RunState(ctx, "enabled")
//
// # Descriptor Directories
//
// A [Runner] keeps a manager in sync with a directory of TOML or YAML
// descriptors, runs a list of target states, and can follow the directory
// for new modules:
//
//	r := modrun.NewRunner(m, descriptor.NewDir(dir), factory, modrun.RunnerConfig{
//	    Targets:       []string{"loaded", "enabled"},
//	    ShutdownState: "unloaded",
//	}, logger)
//	if _, err := r.Sync(ctx); err != nil {
//	    logger.Warn("descriptor errors", log.Err(err))
//	}
//	if err := r.RunTargets(ctx); err != nil {
//	    return err
//	}
//	_ = r.Watch(ctx) // until ctx is done
//	_, _ = r.Shutdown(context.Background())
//
// # Event Handling
//
// Implement [EventHandler] and pass it via [WithEventHandler] to receive
// state changes, failures, dependency warnings and run summaries. Handlers
// are called synchronously from the driving goroutines and must return
// quickly.
package modrun
