package module

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/modrun/internal/telemetry"
	"github.com/bft-labs/modrun/pkg/depgraph"
	"github.com/bft-labs/modrun/pkg/lifecycle"
	"github.com/bft-labs/modrun/pkg/log"
)

// Outcome is the result of driving one module during a run.
type Outcome struct {
	Module string
	// State is the module's state after the run.
	State string
	Err   error
}

// Report summarizes a RunState call.
type Report struct {
	RunID    string
	Target   string
	Outcomes []Outcome
	Duration time.Duration
}

// Failed returns the outcomes that carry an error.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Err joins every per-module error of the run.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Manager keeps the module registry and drives bulk lifecycle operations.
//
// Registration is safe at any time. ReloadDependencies and RunState are
// serialized: dependency edges never change while modules are being driven.
type Manager struct {
	graph    *lifecycle.Graph
	resolver *lifecycle.Resolver
	deps     *depgraph.Graph
	hooks    *hooks

	// opMu serializes reloads and runs. Runtimes share it.
	opMu sync.Mutex

	mu      sync.RWMutex
	modules map[string]*Runtime
}

// New creates a manager for the lifecycle graph.
func New(graph *lifecycle.Graph, opts ...Option) (*Manager, error) {
	if graph == nil {
		return nil, errors.New("module: lifecycle graph is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	resolverOpts := []lifecycle.ResolverOption{lifecycle.WithCacheCost(o.cacheCost)}
	if o.metrics != nil {
		resolverOpts = append(resolverOpts, lifecycle.WithCacheMetrics(o.metrics))
	}
	resolver, err := lifecycle.NewResolver(graph, resolverOpts...)
	if err != nil {
		return nil, err
	}

	return &Manager{
		graph:    graph,
		resolver: resolver,
		deps:     depgraph.New(),
		hooks: &hooks{
			logger:  o.logger,
			events:  o.events,
			metrics: o.metrics,
			tracer:  o.tracer,
		},
		modules: make(map[string]*Runtime),
	}, nil
}

// Close releases the path cache. Containers are not released.
func (m *Manager) Close() {
	m.resolver.Close()
}

// Graph returns the lifecycle graph.
func (m *Manager) Graph() *lifecycle.Graph { return m.graph }

// Resolver returns the path resolver shared by all runtimes.
func (m *Manager) Resolver() *lifecycle.Resolver { return m.resolver }

// AddModule registers a container in the initial state. If reload is true
// the dependency graph is rebuilt afterwards.
func (m *Manager) AddModule(ctx context.Context, c Container, reload bool) (*Runtime, error) {
	r, err := m.register(c)
	if err != nil {
		return nil, err
	}
	if reload {
		if err := m.ReloadDependencies(ctx); err != nil {
			return r, err
		}
	}
	return r, nil
}

// AddModules registers every container, then rebuilds the dependency graph
// once if reload is true. Containers that cannot be registered are skipped
// and their errors joined.
func (m *Manager) AddModules(ctx context.Context, containers []Container, reload bool) error {
	var errs []error
	for _, c := range containers {
		if _, err := m.register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if reload {
		if err := m.ReloadDependencies(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) register(c Container) (*Runtime, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil container", ErrInvalidDescription)
	}
	desc := c.Description()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Name != c.Name() {
		return nil, fmt.Errorf("%w: container %q describes %q", ErrInvalidDescription, c.Name(), desc.Name)
	}
	if !desc.ValidVersion() {
		m.hooks.logger.Warn("module version is not a semantic version",
			log.Module(desc.Name),
			log.String("version", desc.Version),
		)
	}

	m.mu.Lock()
	if _, ok := m.modules[desc.Name]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateModule, desc.Name)
	}
	r := newRuntime(c, m.graph, m.resolver, m.hooks, &m.opMu)
	m.modules[desc.Name] = r
	count := len(m.modules)
	m.mu.Unlock()

	m.hooks.setModules(count)
	m.hooks.logger.Debug("module registered",
		log.Module(desc.Name),
		log.Strings("dependencies", desc.Dependencies),
	)
	return r, nil
}

// ReloadDependencies rebuilds the dependency graph from the registered
// descriptions and installs the new edge sets. Modules whose build fails are
// routed to the failed state; missing recommended dependencies are logged
// and reported to the event handler. The returned error is non-nil only if
// ctx is cancelled.
func (m *Manager) ReloadDependencies(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	ctx, span := m.hooks.tracer.Start(ctx, telemetry.SpanReload)
	defer span.End()

	runtimes := m.snapshot()
	decls := make(map[string][]string, len(runtimes))
	for _, r := range runtimes {
		decls[r.Name()] = r.container.Description().Dependencies
	}
	span.SetAttributes(telemetry.Modules(len(runtimes)))

	report, err := m.deps.Reload(ctx, decls)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("reload dependencies: %w", err)
	}

	byName := make(map[string]*Runtime, len(runtimes))
	for _, r := range runtimes {
		byName[r.Name()] = r
	}
	lookup := func(names []string) []*Runtime {
		out := make([]*Runtime, 0, len(names))
		for _, n := range names {
			out = append(out, byName[n])
		}
		return out
	}
	for _, r := range runtimes {
		r.setPeers(lookup(m.deps.Dependencies(r.Name())), lookup(m.deps.Dependents(r.Name())))
	}

	for _, w := range report.Warnings {
		m.hooks.logger.Warn("recommended dependency is not registered",
			log.Module(w.Module),
			log.String("declaration", w.Declaration.Raw),
		)
		m.hooks.events.OnDependencyWarning(WarningEvent{
			Module:      w.Module,
			Declaration: w.Declaration.Raw,
		})
	}

	for _, r := range runtimes {
		if cause, ok := report.Failures[r.Name()]; ok {
			r.fail(ctx, cause)
		}
	}

	m.hooks.logger.Debug("dependencies reloaded",
		log.Int("modules", len(runtimes)),
		log.Int("failures", len(report.Failures)),
		log.Int("warnings", len(report.Warnings)),
	)
	return nil
}

// RunState drives every registered module to the named state concurrently
// and waits for all of them. A module that fails never stops its siblings;
// per-module results are in the Report. The returned error joins resolution
// failures (unknown state, no path) and context cancellation.
func (m *Manager) RunState(ctx context.Context, name string) (Report, error) {
	target, err := m.graph.Lookup(name)
	if err != nil {
		return Report{}, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	runID := uuid.NewString()
	ctx = withRunID(ctx, runID)
	runtimes := m.snapshot()

	ctx, span := m.hooks.tracer.Start(ctx, telemetry.SpanRunState, trace.WithAttributes(
		telemetry.State(name),
		telemetry.RunID(runID),
		telemetry.Modules(len(runtimes)),
	))
	defer span.End()

	logger := m.hooks.logger.With(log.RunID(runID))
	if traceID := telemetry.TraceID(ctx); traceID != "" {
		logger = logger.With(log.String("trace_id", traceID))
	}
	logger.Info("run started", log.State(name), log.Int("modules", len(runtimes)))
	start := time.Now()

	// Every runtime is marked as driven before any driver starts, so waiters
	// never mistake a peer that has not started yet for an idle one.
	for _, r := range runtimes {
		r.begin()
	}

	outcomes := make([]Outcome, len(runtimes))
	var wg sync.WaitGroup
	for i, r := range runtimes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.finish()
			err := r.drive(ctx, target)
			outcomes[i] = Outcome{Module: r.Name(), State: r.State().Name, Err: err}
		}()
	}
	wg.Wait()

	report := Report{
		RunID:    runID,
		Target:   name,
		Outcomes: outcomes,
		Duration: time.Since(start),
	}

	var errs []error
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		if isResolutionError(o.Err) {
			errs = append(errs, fmt.Errorf("module %q: %w", o.Module, o.Err))
		}
	}
	runErr := errors.Join(errs...)

	failed := len(report.Failed())
	m.hooks.observeRun(name, report.Duration)
	m.hooks.events.OnRunComplete(RunEvent{
		RunID:    runID,
		Target:   name,
		Modules:  len(runtimes),
		Failed:   failed,
		Duration: report.Duration,
	})

	if runErr != nil {
		telemetry.RecordError(span, runErr)
	} else if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d modules failed", failed))
	}
	logger.Info("run finished",
		log.State(name),
		log.Int("failed", failed),
		log.Duration("took", report.Duration),
	)
	return report, runErr
}

// LetReachState drives the named module alone to the named state. Its peers
// are not driven, so waiting on one that is idle short of the state fails
// with ErrDependencyStalled.
func (m *Manager) LetReachState(ctx context.Context, module, state string) error {
	target, err := m.graph.Lookup(state)
	if err != nil {
		return err
	}
	r, ok := m.Get(module)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}

	return r.LetReachState(ctx, target)
}

func isResolutionError(err error) bool {
	return errors.Is(err, lifecycle.ErrNoPath) ||
		errors.Is(err, lifecycle.ErrUnknownState) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Get returns the runtime registered under name.
func (m *Manager) Get(name string) (*Runtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.modules[name]
	return r, ok
}

// Modules returns the registered runtimes sorted by name.
func (m *Manager) Modules() []*Runtime {
	return m.snapshot()
}

// States returns the current state name of every module.
func (m *Manager) States() map[string]string {
	out := make(map[string]string)
	for _, r := range m.snapshot() {
		out[r.Name()] = r.State().Name
	}
	return out
}

// Edges returns the dependency edges of the last reload.
func (m *Manager) Edges() []depgraph.Edge {
	return m.deps.Edges()
}

func (m *Manager) snapshot() []*Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Runtime, 0, len(m.modules))
	for _, r := range m.modules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
