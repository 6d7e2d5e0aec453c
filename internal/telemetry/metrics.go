// Package telemetry records Prometheus metrics and OpenTelemetry spans for
// the preload plugin hooks.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the metrics namespace.
const Namespace = "preload"

// Artifact labels.
const (
	ArtifactRuntime  = "runtime"
	ArtifactHTML     = "html"
	ArtifactFragment = "fragment"
)

// Metrics holds the Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	rendersTotal      *prometheus.CounterVec
	renderDuration    *prometheus.HistogramVec
	configResolutions *prometheus.CounterVec
	directives        prometheus.Gauge
	htmlCache         *prometheus.CounterVec
}

// NewMetrics registers the preload collectors on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "renders_total",
			Help:      "Total number of rendered preload artifacts",
		}, []string{"artifact"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "render_duration_seconds",
			Help:      "Artifact render duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"artifact"}),

		configResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "config_resolutions_total",
			Help:      "Total number of configuration resolutions by result",
		}, []string{"result"}),

		directives: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "directives",
			Help:      "Number of route directives in the live configuration",
		}),

		htmlCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "html_cache_total",
			Help:      "Dev server transformed HTML cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveRender records one render of artifact.
func (m *Metrics) ObserveRender(artifact string, d time.Duration) {
	if m == nil {
		return
	}
	m.rendersTotal.WithLabelValues(artifact).Inc()
	m.renderDuration.WithLabelValues(artifact).Observe(d.Seconds())
}

// RecordConfigResolution records a configuration resolution. On success
// the directives gauge is set to n.
func (m *Metrics) RecordConfigResolution(err error, n int) {
	if m == nil {
		return
	}
	if err != nil {
		m.configResolutions.WithLabelValues("error").Inc()
		return
	}
	m.configResolutions.WithLabelValues("success").Inc()
	m.directives.Set(float64(n))
}

// RecordCacheHit records a transformed HTML cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.htmlCache.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a transformed HTML cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.htmlCache.WithLabelValues("miss").Inc()
}
