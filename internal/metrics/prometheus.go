// Package metrics exposes Prometheus metrics for matching, cache builds and
// initialization.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
)

const namespace = "celebmatch"

// Match outcomes used as the "outcome" label
const (
	OutcomeMatched     = "matched"
	OutcomeNoFace      = "no_face"
	OutcomeNotReady    = "not_ready"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

var sequencerStates = []matching.State{
	matching.StateIdle,
	matching.StateLoadingProvider,
	matching.StateBuildingCache,
	matching.StateReady,
	matching.StateFailed,
}

// Manager owns a registry and every collector registered on it
type Manager struct {
	registry *prometheus.Registry

	matchRequests *prometheus.CounterVec
	matchLatency  prometheus.Histogram
	memoLookups   *prometheus.CounterVec

	cacheBuilds        *prometheus.CounterVec
	cacheBuildDuration prometheus.Histogram
	cacheBuildFailures *prometheus.CounterVec
	cacheEntries       prometheus.Gauge
	cacheVersion       prometheus.Gauge

	sequencerState *prometheus.GaugeVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager registers all collectors on a fresh registry, plus the Go and
// process collectors.
func NewManager() *Manager {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auto := promauto.With(registry)

	return &Manager{
		registry: registry,

		matchRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "requests_total",
			Help:      "Match requests by outcome",
		}, []string{"outcome"}),

		matchLatency: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "duration_seconds",
			Help:      "End-to-end match latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		memoLookups: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "descriptor_memo_lookups_total",
			Help:      "Descriptor memo lookups by result",
		}, []string{"result"}),

		cacheBuilds: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "builds_total",
			Help:      "Descriptor cache builds by result",
		}, []string{"result"}),

		cacheBuildDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "build_duration_seconds",
			Help:      "Descriptor cache build duration",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		cacheBuildFailures: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "build_failures_total",
			Help:      "Celebrities excluded from a build by reason",
		}, []string{"reason"}),

		cacheEntries: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries in the live descriptor snapshot",
		}),

		cacheVersion: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "snapshot_version",
			Help:      "Version of the live descriptor snapshot",
		}),

		sequencerState: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "init",
			Name:      "state",
			Help:      "1 for the current initialization state, 0 otherwise",
		}, []string{"state"}),

		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),

		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route and method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Registry exposes the registry, mainly for tests
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) ObserveMatch(outcome string, d time.Duration) {
	m.matchRequests.WithLabelValues(outcome).Inc()
	if outcome == OutcomeMatched {
		m.matchLatency.Observe(d.Seconds())
	}
}

func (m *Manager) ObserveMemo(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.memoLookups.WithLabelValues(result).Inc()
}

// ObserveBuild is registered with DescriptorCache.OnBuild
func (m *Manager) ObserveBuild(report *matching.BuildReport, err error) {
	result := "complete"
	switch {
	case err != nil:
		result = "empty"
	case report != nil && report.Partial():
		result = "partial"
	}
	m.cacheBuilds.WithLabelValues(result).Inc()

	if report == nil {
		return
	}
	m.cacheBuildDuration.Observe(report.Duration.Seconds())
	for _, f := range report.Failures {
		m.cacheBuildFailures.WithLabelValues(string(f.Reason)).Inc()
	}
}

// ObserveSnapshot is registered with DescriptorCache.OnPublish
func (m *Manager) ObserveSnapshot(snap *matching.Snapshot) {
	m.cacheEntries.Set(float64(snap.Len()))
	m.cacheVersion.Set(float64(snap.Version()))
}

// ObserveSequencer is registered with Sequencer.Observe
func (m *Manager) ObserveSequencer(st matching.Status) {
	for _, s := range sequencerStates {
		v := 0.0
		if s == st.State {
			v = 1
		}
		m.sequencerState.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Manager) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
