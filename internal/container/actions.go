package container

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bft-labs/modrun/pkg/lifecycle"
	"github.com/bft-labs/modrun/pkg/log"
	"github.com/bft-labs/modrun/pkg/module"
)

// ErrUnknownAction is returned for action names missing from the registry.
var ErrUnknownAction = errors.New("container: unknown action")

// Builder creates the action for a state from the argument after the colon
// in "name:arg". arg is empty when no colon is present.
type Builder func(state, arg string) (lifecycle.Action, error)

// Registry maps action names to builders.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry creates a registry with the built-in actions:
//
//	log            log the state entry
//	sleep:<dur>    wait for a duration, or until the context is done
//	release        release the container early
//
// Every built-in action records "state:spec" on *Instance targets.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	r := &Registry{builders: make(map[string]Builder)}
	r.Register("log", logAction(logger))
	r.Register("sleep", sleepAction)
	r.Register("release", releaseAction)
	return r
}

// Register adds or replaces the builder for name.
func (r *Registry) Register(name string, b Builder) {
	r.builders[name] = b
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.builders))
	for n := range r.builders {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Build creates the action described by spec for state.
func (r *Registry) Build(state, spec string) (lifecycle.Action, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	b, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	a, err := b(state, arg)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", spec, err)
	}
	return recorded{Action: a, entry: state + ":" + spec}, nil
}

// recorded records its entry on *Instance targets before running.
type recorded struct {
	lifecycle.Action
	entry string
}

func (r recorded) Run(ctx context.Context, t lifecycle.Target) error {
	if inst, ok := t.(*Instance); ok {
		inst.Record(r.entry)
	}
	return r.Action.Run(ctx, t)
}

func logAction(logger log.Logger) Builder {
	return func(state, _ string) (lifecycle.Action, error) {
		return lifecycle.ActionFunc(func(ctx context.Context, t lifecycle.Target) error {
			logger.Info("module entering state", log.Module(t.Name()), log.State(state))
			return nil
		}), nil
	}
}

func sleepAction(_, arg string) (lifecycle.Action, error) {
	d, err := time.ParseDuration(arg)
	if err != nil {
		return nil, err
	}
	if d < 0 {
		return nil, fmt.Errorf("negative duration %s", d)
	}
	return lifecycle.ActionFunc(func(ctx context.Context, _ lifecycle.Target) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}), nil
}

// releaser is implemented by containers that can be released.
type releaser interface {
	Release(ctx context.Context) error
}

// releaseAction releases through the driving runtime, which keeps the
// container from being released again on terminal or failed entry.
func releaseAction(_, _ string) (lifecycle.Action, error) {
	return lifecycle.GuardedAction{
		Guard: func(t lifecycle.Target) bool {
			_, ok := t.(releaser)
			return ok
		},
		Do: module.Release,
	}, nil
}
