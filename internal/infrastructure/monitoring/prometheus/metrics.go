// Package prometheus exposes the engine's operational metrics on a private
// registry: per-component assessment timings and degradation counts, overall
// assessment outcomes, and HTTP request durations.
package prometheus

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "equitylens"

// Metrics holds every collector the engine registers.  It implements the
// application layer's Metrics port.
type Metrics struct {
	registry *prometheus.Registry

	componentDuration *prometheus.HistogramVec
	componentDegraded *prometheus.CounterVec

	assessmentsTotal    prometheus.Counter
	degradedDimensions  prometheus.Histogram
	plagiarismSuspected prometheus.Counter

	httpDuration *prometheus.HistogramVec
}

// New builds the registry with process and Go runtime collectors attached.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		componentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "component_duration_seconds",
			Help:      "Wall-clock duration of each assessment component.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"component"}),

		componentDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "component_degraded_total",
			Help:      "Assessment components that failed or timed out and were degraded.",
		}, []string{"component"}),

		assessmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "completed_total",
			Help:      "Assessments persisted, including partially degraded ones.",
		}),

		degradedDimensions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "degraded_dimensions",
			Help:      "Degraded dimension count per completed assessment.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7},
		}),

		plagiarismSuspected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "plagiarism_suspected_total",
			Help:      "Completed assessments with at least one similarity match above threshold.",
		}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route and status.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
		m.componentDuration,
		m.componentDegraded,
		m.assessmentsTotal,
		m.degradedDimensions,
		m.plagiarismSuspected,
		m.httpDuration,
	)
	return m
}

// ObserveComponent records one component run.
func (m *Metrics) ObserveComponent(component string, seconds float64, degraded bool) {
	m.componentDuration.WithLabelValues(component).Observe(seconds)
	if degraded {
		m.componentDegraded.WithLabelValues(component).Inc()
	}
}

// ObserveAssessment records a persisted assessment.
func (m *Metrics) ObserveAssessment(degradedCount int, plagiarismSuspected bool) {
	m.assessmentsTotal.Inc()
	m.degradedDimensions.Observe(float64(degradedCount))
	if plagiarismSuspected {
		m.plagiarismSuspected.Inc()
	}
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(method, route string, status int, seconds float64) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
