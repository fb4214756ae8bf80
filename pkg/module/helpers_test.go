package module

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/modrun/pkg/lifecycle"
)

// testContainer is an in-memory Container counting releases.
type testContainer struct {
	desc       Description
	releases   atomic.Int32
	releaseErr error
}

func newContainer(name string, deps ...string) *testContainer {
	return &testContainer{desc: Description{Name: name, Dependencies: deps}}
}

func (c *testContainer) Name() string                  { return c.desc.Name }
func (c *testContainer) Description() Description      { return c.desc }
func (c *testContainer) Release(context.Context) error { c.releases.Add(1); return c.releaseErr }

// recorder logs "module:state" for every action run, in order.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) action(state string) lifecycle.Action {
	return lifecycle.ActionFunc(func(_ context.Context, t lifecycle.Target) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries = append(r.entries, t.Name()+":"+state)
		return nil
	})
}

func (r *recorder) index(entry string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// failFor returns an action failing for the named module only.
func failFor(name string) lifecycle.Action {
	return lifecycle.GuardedAction{
		Guard: func(t lifecycle.Target) bool { return t.Name() == name },
		Do: func(context.Context, lifecycle.Target) error {
			return errors.New("boom")
		},
	}
}

// testLifecycle is
//
//	first -> loaded -> enabled -> disabled -> unloaded
//
// with ascending startup states and descending, terminal teardown.
type testLifecycle struct {
	graph    *lifecycle.Graph
	first    *lifecycle.State
	loaded   *lifecycle.State
	enabled  *lifecycle.State
	disabled *lifecycle.State
	unloaded *lifecycle.State
	failed   *lifecycle.State
}

// newTestLifecycle builds the test lifecycle. extra appends actions to the
// named states after the recording action.
func newTestLifecycle(t *testing.T, rec *recorder, extra map[string][]lifecycle.Action) *testLifecycle {
	t.Helper()

	mk := func(name string, order lifecycle.Order, from ...string) *lifecycle.State {
		actions := []lifecycle.Action{rec.action(name)}
		actions = append(actions, extra[name]...)
		return &lifecycle.State{Name: name, From: from, Order: order, Actions: actions}
	}

	tl := &testLifecycle{
		first:    &lifecycle.State{Name: "first"},
		loaded:   mk("loaded", lifecycle.Ascending, "first"),
		enabled:  mk("enabled", lifecycle.Ascending, "loaded"),
		disabled: mk("disabled", lifecycle.Descending, "enabled"),
		unloaded: mk("unloaded", lifecycle.Descending, "disabled"),
		failed:   mk("failed", lifecycle.Unordered),
	}
	tl.unloaded.Terminal = true

	g, err := lifecycle.NewGraph(lifecycle.Config{
		States:  []*lifecycle.State{tl.loaded, tl.enabled, tl.disabled, tl.unloaded},
		Initial: tl.first,
		Failed:  tl.failed,
	})
	require.NoError(t, err)
	tl.graph = g
	return tl
}

func newTestManager(t *testing.T, tl *testLifecycle, opts ...Option) *Manager {
	t.Helper()
	m, err := New(tl.graph, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// eventLog records every event it receives.
type eventLog struct {
	mu       sync.Mutex
	changes  []StateChangeEvent
	failures []FailureEvent
	warnings []WarningEvent
	runs     []RunEvent
}

func (e *eventLog) OnStateChange(ev StateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, ev)
}

func (e *eventLog) OnModuleFailed(ev FailureEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = append(e.failures, ev)
}

func (e *eventLog) OnDependencyWarning(ev WarningEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warnings = append(e.warnings, ev)
}

func (e *eventLog) OnRunComplete(ev RunEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs = append(e.runs, ev)
}

func (e *eventLog) failedModules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, f := range e.failures {
		out = append(out, f.Module)
	}
	return out
}

// countingMetrics is a Metrics implementation backed by counters.
type countingMetrics struct {
	mu      sync.Mutex
	hits    int
	misses  int
	entered map[string]int
	failed  map[string]int
	actions int
	modules int
	runs    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{entered: map[string]int{}, failed: map[string]int{}}
}

func (m *countingMetrics) PathCacheHit()  { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *countingMetrics) PathCacheMiss() { m.mu.Lock(); m.misses++; m.mu.Unlock() }

func (m *countingMetrics) StateEntered(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entered[state]++
}

func (m *countingMetrics) ModuleFailed(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[state]++
}

func (m *countingMetrics) ObserveAction(string, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions++
}

func (m *countingMetrics) SetModules(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules = n
}

func (m *countingMetrics) ObserveRun(string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}
