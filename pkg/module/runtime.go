package module

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/modrun/internal/telemetry"
	"github.com/bft-labs/modrun/pkg/lifecycle"
	"github.com/bft-labs/modrun/pkg/log"
)

type (
	runIDKey   struct{}
	releaseKey struct{}
)

// withRunID attaches a run identifier to ctx.
func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run identifier RunState attached to ctx.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Release releases the container behind t. Inside an action run by a
// Runtime the release goes through the runtime, so the container is released
// at most once however many actions or terminal entries ask for it.
func Release(ctx context.Context, t lifecycle.Target) error {
	if release, ok := ctx.Value(releaseKey{}).(func(context.Context) error); ok {
		return release(ctx)
	}
	if c, ok := t.(interface{ Release(context.Context) error }); ok {
		return c.Release(ctx)
	}
	return nil
}

// Runtime drives one module through the lifecycle. It owns the module's
// current state and wakes peers waiting on it whenever its progress changes.
type Runtime struct {
	container Container
	graph     *lifecycle.Graph
	resolver  *lifecycle.Resolver
	hooks     *hooks
	logger    log.Logger

	// op is the manager's operation lock.
	op *sync.Mutex

	// driveMu serializes drivers of this runtime.
	driveMu sync.Mutex

	mu         sync.Mutex
	state      *lifecycle.State
	changed    chan struct{}
	active     int
	err        error
	released   bool
	deps       []*Runtime
	dependents []*Runtime

	// waitingOn is the peer this runtime is blocked on and waitSeen the
	// peer's notification channel at the time it blocked.
	waitingOn *Runtime
	waitSeen  <-chan struct{}
}

func newRuntime(c Container, graph *lifecycle.Graph, resolver *lifecycle.Resolver, h *hooks, op *sync.Mutex) *Runtime {
	return &Runtime{
		op:        op,
		container: c,
		graph:     graph,
		resolver:  resolver,
		hooks:     h,
		logger:    h.logger.With(log.Module(c.Name())),
		state:     graph.Initial(),
		changed:   make(chan struct{}),
	}
}

// Name returns the module name.
func (r *Runtime) Name() string { return r.container.Name() }

// Container returns the module's container.
func (r *Runtime) Container() Container { return r.container }

// State returns the current state.
func (r *Runtime) State() *lifecycle.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that routed the module to the failed state, if any.
func (r *Runtime) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Dependencies returns the names of the modules this module depends on.
func (r *Runtime) Dependencies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return names(r.deps)
}

// Dependents returns the names of the modules depending on this module.
func (r *Runtime) Dependents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return names(r.dependents)
}

// LetReachState drives the module to target along the shortest chain of
// states. Before entering each state the module waits for its dependencies
// (ascending states) or dependents (descending states) to reach it.
//
// Action errors and failed or stalled peers route the module to the failed
// state; the cause is returned. Resolution errors such as lifecycle.ErrNoPath
// are returned without changing the module. Cancelling ctx aborts a wait and
// returns ctx.Err().
//
// LetReachState holds the manager's operation lock, so it waits for a running
// RunState or ReloadDependencies to return.
func (r *Runtime) LetReachState(ctx context.Context, target *lifecycle.State) error {
	r.op.Lock()
	defer r.op.Unlock()
	r.begin()
	defer r.finish()
	return r.drive(ctx, target)
}

// begin marks the runtime as being driven.
func (r *Runtime) begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active++
	r.notifyLocked()
}

// finish undoes begin.
func (r *Runtime) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active--
	r.notifyLocked()
}

func (r *Runtime) drive(ctx context.Context, target *lifecycle.State) error {
	r.driveMu.Lock()
	defer r.driveMu.Unlock()

	current := r.State()
	if current == target {
		return nil
	}

	chain, err := r.resolver.PathTo(current, target)
	if err != nil {
		if current == r.graph.Failed() && errors.Is(err, lifecycle.ErrNoPath) {
			if cause := r.Err(); cause != nil {
				return fmt.Errorf("%w: %q: %w", ErrModuleFailed, r.Name(), cause)
			}
			return fmt.Errorf("%w: %q", ErrModuleFailed, r.Name())
		}
		return err
	}

	r.logger.Debug("resolved chain",
		log.RunID(RunIDFromContext(ctx)),
		log.String("from", current.Name),
		log.String("to", target.Name),
		log.Int("steps", len(chain)),
	)

	for _, s := range chain {
		if err := r.transition(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// transition performs one ordered state entry.
func (r *Runtime) transition(ctx context.Context, s *lifecycle.State) error {
	if err := r.await(ctx, s); err != nil {
		if ctx.Err() == nil {
			r.fail(ctx, err)
		}
		return err
	}
	if err := r.enter(ctx, s); err != nil {
		if ctx.Err() == nil {
			r.fail(ctx, err)
		}
		return err
	}
	return nil
}

// await blocks until every peer relevant to s's order reached s.
func (r *Runtime) await(ctx context.Context, s *lifecycle.State) error {
	var peers []*Runtime
	r.mu.Lock()
	switch s.Order {
	case lifecycle.Ascending:
		peers = r.deps
	case lifecycle.Descending:
		peers = r.dependents
	}
	r.mu.Unlock()

	for _, p := range peers {
		if err := r.awaitPeer(ctx, p, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) awaitPeer(ctx context.Context, p *Runtime, s *lifecycle.State) error {
	defer r.waitOn(nil, nil)

	failed := r.graph.Failed()
	logged := false

	for {
		snap := p.progress()
		if snap.state == s {
			return nil
		}
		if snap.state == failed {
			if s.Order == lifecycle.Descending {
				return nil
			}
			return fmt.Errorf("%w: %q waits for %q to reach %q", ErrDependencyFailed, r.Name(), p.Name(), s.Name)
		}

		// An idle peer stays where it is; judge its final state.
		if !snap.active {
			reached, err := r.resolver.Reached(snap.state, s)
			if err != nil {
				return err
			}
			if reached {
				return nil
			}
			return fmt.Errorf("%w: %q waits for %q (in %q) to reach %q",
				ErrDependencyStalled, r.Name(), p.Name(), snap.state.Name, s.Name)
		}

		// The peer is blocked on us and has seen our latest progress.
		if snap.waitingOn == r && snap.waitSeen == r.notifier() {
			return fmt.Errorf("%w: %q and %q wait on each other to reach %q",
				ErrDependencyStalled, r.Name(), p.Name(), s.Name)
		}

		if !logged {
			r.logger.Debug("waiting for peer",
				log.RunID(RunIDFromContext(ctx)),
				log.String("peer", p.Name()),
				log.State(s.Name),
			)
			logged = true
		}

		r.waitOn(p, snap.changed)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-snap.changed:
		}
	}
}

// snapshot is a consistent view of a runtime's progress.
type snapshot struct {
	state     *lifecycle.State
	active    bool
	waitingOn *Runtime
	waitSeen  <-chan struct{}
	changed   <-chan struct{}
}

func (r *Runtime) progress() snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshot{
		state:     r.state,
		active:    r.active > 0,
		waitingOn: r.waitingOn,
		waitSeen:  r.waitSeen,
		changed:   r.changed,
	}
}

// notifier returns the channel closed on the next progress change.
func (r *Runtime) notifier() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

// waitOn records the peer r is blocked on. Waiters are woken only when the
// peer changes, so two runtimes blocking on each other settle.
func (r *Runtime) waitOn(p *Runtime, seen <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	moved := r.waitingOn != p
	r.waitingOn = p
	r.waitSeen = seen
	if moved {
		r.notifyLocked()
	}
}

// enter runs s's actions against the container and moves the module into s.
func (r *Runtime) enter(ctx context.Context, s *lifecycle.State) error {
	ctx, span := r.hooks.tracer.Start(ctx, telemetry.SpanEnter, trace.WithAttributes(
		telemetry.Module(r.Name()),
		telemetry.State(s.Name),
		telemetry.RunID(RunIDFromContext(ctx)),
	))
	defer span.End()

	if err := r.runActions(ctx, s); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	prev := r.setState(s)
	span.SetAttributes(telemetry.Previous(prev.Name))
	r.entered(ctx, prev, s)

	if s.Terminal {
		if err := r.release(ctx); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
	}
	return nil
}

func (r *Runtime) runActions(ctx context.Context, s *lifecycle.State) error {
	ctx = context.WithValue(ctx, releaseKey{}, r.release)
	for i, a := range s.Actions {
		if !a.Applies(r.container) {
			continue
		}
		start := time.Now()
		err := a.Run(ctx, r.container)
		r.hooks.observeAction(s.Name, time.Since(start), err != nil)
		if err != nil {
			return fmt.Errorf("%w: %q entering %q (action %d): %w", ErrActionFailed, r.Name(), s.Name, i, err)
		}
	}
	return nil
}

// fail routes the module to the failed state, recording cause. The failed
// state's actions run like on any entry; their errors are logged.
func (r *Runtime) fail(ctx context.Context, cause error) {
	failed := r.graph.Failed()

	r.mu.Lock()
	r.err = cause
	from := r.state
	r.mu.Unlock()
	if from == failed {
		return
	}

	if err := r.runActions(ctx, failed); err != nil {
		r.logger.Warn("failed state action error", log.Err(err))
	}

	prev := r.setState(failed)
	r.hooks.moduleFailed(prev.Name)
	r.logger.Error("module failed",
		log.RunID(RunIDFromContext(ctx)),
		log.State(prev.Name),
		log.Err(cause),
	)
	r.hooks.events.OnModuleFailed(FailureEvent{
		Module: r.Name(),
		State:  prev.Name,
		Err:    cause,
		RunID:  RunIDFromContext(ctx),
	})
	r.entered(ctx, prev, failed)

	if err := r.release(ctx); err != nil {
		r.logger.Warn("release after failure", log.Err(err))
	}
}

func (r *Runtime) entered(ctx context.Context, prev, s *lifecycle.State) {
	r.hooks.stateEntered(s.Name)
	r.logger.Info("state entered",
		log.RunID(RunIDFromContext(ctx)),
		log.String("from", prev.Name),
		log.State(s.Name),
	)
	r.hooks.events.OnStateChange(StateChangeEvent{
		Module:   r.Name(),
		Previous: prev.Name,
		Current:  s.Name,
		RunID:    RunIDFromContext(ctx),
	})
}

// release calls Container.Release once per runtime.
func (r *Runtime) release(ctx context.Context) error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	r.mu.Unlock()

	if err := r.container.Release(ctx); err != nil {
		return fmt.Errorf("release %q: %w", r.Name(), err)
	}
	r.logger.Debug("container released")
	return nil
}

// Released reports whether the container has been released.
func (r *Runtime) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

func (r *Runtime) setState(s *lifecycle.State) *lifecycle.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.state
	r.state = s
	r.notifyLocked()
	return prev
}

// setPeers installs the edge sets computed by a reload.
func (r *Runtime) setPeers(deps, dependents []*Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps = deps
	r.dependents = dependents
}

// notifyLocked wakes all waiters. Callers must hold r.mu.
func (r *Runtime) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func names(rs []*Runtime) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name()
	}
	return out
}
