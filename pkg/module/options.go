package module

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/modrun/internal/telemetry"
	"github.com/bft-labs/modrun/pkg/lifecycle"
	"github.com/bft-labs/modrun/pkg/log"
)

// Metrics receives runtime statistics. Implementations must be safe for
// concurrent use.
type Metrics interface {
	lifecycle.CacheMetrics

	// StateEntered counts a module entering state.
	StateEntered(state string)

	// ModuleFailed counts a module routed to the failed state from state.
	ModuleFailed(state string)

	// ObserveAction records the duration of a state action.
	ObserveAction(state string, d time.Duration, failed bool)

	// SetModules reports the number of registered modules.
	SetModules(n int)

	// ObserveRun records the duration of a RunState call.
	ObserveRun(target string, d time.Duration)
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger    log.Logger
	events    EventHandler
	metrics   Metrics
	tracer    trace.Tracer
	cacheCost int64
}

func defaultOptions() options {
	return options{
		logger:    log.NewNoopLogger(),
		events:    NoopEventHandler{},
		tracer:    telemetry.Tracer(),
		cacheCost: lifecycle.DefaultCacheCost,
	}
}

// WithLogger sets the logger. If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler sets a handler for manager events.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		if h != nil {
			o.events = h
		}
	}
}

// WithMetrics enables metrics collection. A nil Metrics disables it.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer used for run and state spans. Defaults to the
// tracer of the global OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithCacheSize bounds the path cache by total chain cost.
func WithCacheSize(cost int64) Option {
	return func(o *options) {
		if cost > 0 {
			o.cacheCost = cost
		}
	}
}

// hooks bundles the observers shared by the manager and its runtimes.
type hooks struct {
	logger  log.Logger
	events  EventHandler
	metrics Metrics
	tracer  trace.Tracer
}

func (h *hooks) stateEntered(state string) {
	if h.metrics != nil {
		h.metrics.StateEntered(state)
	}
}

func (h *hooks) moduleFailed(state string) {
	if h.metrics != nil {
		h.metrics.ModuleFailed(state)
	}
}

func (h *hooks) observeAction(state string, d time.Duration, failed bool) {
	if h.metrics != nil {
		h.metrics.ObserveAction(state, d, failed)
	}
}

func (h *hooks) setModules(n int) {
	if h.metrics != nil {
		h.metrics.SetModules(n)
	}
}

func (h *hooks) observeRun(target string, d time.Duration) {
	if h.metrics != nil {
		h.metrics.ObserveRun(target, d)
	}
}
