// Package metrics provides Prometheus collectors for modrun.
//
// A nil *Prometheus is valid and records nothing, so callers can keep a
// metrics field unconditionally:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	mgr, err := module.New(graph, module.WithMetrics(m))
//	http.Handle("/metrics", metrics.Handler(reg))
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "modrun"

// Prometheus records runtime statistics.
type Prometheus struct {
	stateEntries   *prometheus.CounterVec
	failures       *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	actionErrors   *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	modules        prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Prometheus{
		stateEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "state_entries_total",
			Help:      "Total number of lifecycle state entries by state",
		}, []string{"state"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "module_failures_total",
			Help:      "Total number of modules routed to the failed state, by the state they failed in",
		}, []string{"state"}),
		actionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of state actions",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"state"}),
		actionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "action_errors_total",
			Help:      "Total number of failed state actions by state",
		}, []string{"state"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of bulk state runs by target state",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "path_cache_hits_total",
			Help:      "Total number of state path cache hits",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "path_cache_misses_total",
			Help:      "Total number of state path cache misses",
		}),
		modules: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "modules",
			Help:      "Number of registered modules",
		}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// StateEntered counts a state entry.
func (p *Prometheus) StateEntered(state string) {
	if p == nil {
		return
	}
	p.stateEntries.WithLabelValues(state).Inc()
}

// ModuleFailed counts a module routed to the failed state.
func (p *Prometheus) ModuleFailed(state string) {
	if p == nil {
		return
	}
	p.failures.WithLabelValues(state).Inc()
}

// ObserveAction records an action's duration and outcome.
func (p *Prometheus) ObserveAction(state string, d time.Duration, failed bool) {
	if p == nil {
		return
	}
	p.actionDuration.WithLabelValues(state).Observe(d.Seconds())
	if failed {
		p.actionErrors.WithLabelValues(state).Inc()
	}
}

// ObserveRun records the duration of a bulk run.
func (p *Prometheus) ObserveRun(target string, d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.WithLabelValues(target).Observe(d.Seconds())
}

// SetModules sets the registered module gauge.
func (p *Prometheus) SetModules(n int) {
	if p == nil {
		return
	}
	p.modules.Set(float64(n))
}

// PathCacheHit counts a path cache hit.
func (p *Prometheus) PathCacheHit() {
	if p == nil {
		return
	}
	p.cacheHits.Inc()
}

// PathCacheMiss counts a path cache miss.
func (p *Prometheus) PathCacheMiss() {
	if p == nil {
		return
	}
	p.cacheMisses.Inc()
}
