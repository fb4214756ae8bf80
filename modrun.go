// Package modrun drives modules through a shared lifecycle in dependency order.
//
// Example usage:
//
//	m, err := modrun.New(graph)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//	if err := m.AddModules(ctx, containers, true); err != nil {
//	    log.Print(err)
//	}
//	report, err := m.RunState(ctx, "enabled")
package modrun

import (
	"github.com/bft-labs/modrun/pkg/descriptor"
	"github.com/bft-labs/modrun/pkg/log"
	"github.com/bft-labs/modrun/pkg/modrun"
)

// Manager keeps the module registry and drives lifecycle runs.
type Manager = modrun.Manager

// Graph is an immutable lifecycle graph.
type Graph = modrun.Graph

// Container is the module instance contract.
type Container = modrun.Container

// Report summarizes one run.
type Report = modrun.Report

// Runner keeps a Manager in sync with a descriptor directory.
type Runner = modrun.Runner

// RunnerConfig configures a Runner.
type RunnerConfig = modrun.RunnerConfig

// New creates a Manager for graph.
func New(graph *Graph, opts ...modrun.Option) (*Manager, error) {
	return modrun.New(graph, opts...)
}

// NewRunner creates a Runner reading descriptors from dir.
func NewRunner(m *Manager, dir string, factory modrun.ContainerFactory, cfg RunnerConfig, logger log.Logger) *Runner {
	return modrun.NewRunner(m, descriptor.NewDir(dir), factory, cfg, logger)
}
