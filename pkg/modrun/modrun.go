package modrun

import (
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/bft-labs/modrun/pkg/depgraph"
	"github.com/bft-labs/modrun/pkg/lifecycle"
	"github.com/bft-labs/modrun/pkg/log"
	"github.com/bft-labs/modrun/pkg/module"
)

// Re-export types from sub-packages for convenient access.
// Users can also import sub-packages directly for selective import.
type (
	// Manager is the module registry and bulk driver from pkg/module.
	Manager = module.Manager

	// Runtime drives a single module.
	Runtime = module.Runtime

	// Container is the module instance contract.
	Container = module.Container

	// Description is a module's static metadata.
	Description = module.Description

	// Report summarizes one RunState call.
	Report = module.Report

	// Outcome is a single module's result inside a Report.
	Outcome = module.Outcome

	// Option configures a Manager.
	Option = module.Option

	// EventHandler receives manager events.
	EventHandler = module.EventHandler

	// Graph is a lifecycle graph from pkg/lifecycle.
	Graph = lifecycle.Graph

	// State is a lifecycle state.
	State = lifecycle.State

	// Logger is the Logger interface from pkg/log.
	Logger = log.Logger
)

// Manager options.
var (
	WithLogger       = module.WithLogger
	WithEventHandler = module.WithEventHandler
	WithMetrics      = module.WithMetrics
	WithTracer       = module.WithTracer
	WithCacheSize    = module.WithCacheSize
)

// New creates a Manager for graph after checking that the linked
// sub-packages are mutually compatible.
func New(graph *Graph, opts ...Option) (*Manager, error) {
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}
	return module.New(graph, opts...)
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	modules := []struct {
		name       string
		version    string
		minVersion string
	}{
		{"log", log.Version, log.MinCompatibleVersion},
		{"lifecycle", lifecycle.Version, lifecycle.MinCompatibleVersion},
		{"depgraph", depgraph.Version, depgraph.MinCompatibleVersion},
		{"module", module.Version, module.MinCompatibleVersion},
	}

	for _, m := range modules {
		if err := checkVersion(m.version, m.minVersion); err != nil {
			return fmt.Errorf("module %s: %w", m.name, err)
		}
	}
	return nil
}

// checkVersion reports an error unless version >= minVersion. Both are
// "major.minor.patch" strings.
func checkVersion(version, minVersion string) error {
	v, minV := "v"+version, "v"+minVersion
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid version %q", version)
	}
	if !semver.IsValid(minV) {
		return fmt.Errorf("invalid minimum version %q", minVersion)
	}
	if semver.Compare(v, minV) < 0 {
		return fmt.Errorf("version %s is below minimum compatible version %s", version, minVersion)
	}
	return nil
}
