// Package container provides the in-process module backend used by the CLI
// and the registry of named lifecycle actions that run against it.
package container

import (
	"context"
	"errors"
	"sync"

	"github.com/bft-labs/modrun/pkg/module"
)

// Instance is an in-process container. It holds no resources of its own and
// records the actions run against it.
type Instance struct {
	desc module.Description

	mu          sync.Mutex
	invocations []string
	released    bool
}

// New creates an instance for desc.
func New(desc module.Description) *Instance {
	return &Instance{desc: desc}
}

// Name returns the module name.
func (i *Instance) Name() string { return i.desc.Name }

// Description returns the module description.
func (i *Instance) Description() module.Description { return i.desc }

// Release marks the instance released. Releasing twice is a no-op.
func (i *Instance) Release(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.released = true
	return nil
}

// Released reports whether Release was called.
func (i *Instance) Released() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.released
}

// Record appends an invocation entry.
func (i *Instance) Record(entry string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.invocations = append(i.invocations, entry)
}

// Invocations returns the recorded entries in order.
func (i *Instance) Invocations() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.invocations))
	copy(out, i.invocations)
	return out
}

// Factory turns descriptions into containers.
type Factory struct{}

// Create validates desc and returns a new instance for it.
func (Factory) Create(desc module.Description) (*Instance, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return New(desc), nil
}

// Containers creates a container per description. Invalid descriptions are
// skipped and their errors joined.
func (f Factory) Containers(descs []module.Description) ([]module.Container, error) {
	out := make([]module.Container, 0, len(descs))
	var errs []error
	for _, d := range descs {
		inst, err := f.Create(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, inst)
	}
	return out, errors.Join(errs...)
}
