package reqkit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// outcomeSuccess labels requests that resolved with a 200 envelope.
const outcomeSuccess = "success"

// MetricsCollector provides Prometheus metrics for the request lifecycle.
// A nil *MetricsCollector is valid and records nothing.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal    *prometheus.CounterVec
	supersededTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec

	loadingCount   prometheus.Gauge
	loadingVisible prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registerer prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registerer)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqkit_requests_total",
				Help: "Total number of logical requests by final outcome",
			},
			[]string{"method", "path", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reqkit_request_duration_seconds",
				Help:    "Duration of logical requests including retries, in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "outcome"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reqkit_requests_in_flight",
				Help: "Number of attempts currently on the wire",
			},
			[]string{"method"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqkit_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "path", "attempt"},
		),
		supersededTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqkit_superseded_total",
				Help: "Total number of in-flight requests cancelled by an identical newer request",
			},
			[]string{"method", "path"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqkit_errors_total",
				Help: "Total number of failed attempts by error kind",
			},
			[]string{"kind", "method", "path"},
		),
		loadingCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reqkit_loading_count",
			Help: "Outstanding loading signal acquisitions",
		}),
		loadingVisible: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reqkit_loading_visible",
			Help: "1 while the loading indicator is shown",
		}),
	}
	if reg, ok := registerer.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records a finished logical request.
func (mc *MetricsCollector) RecordRequest(method, path, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}

	mc.requestsTotal.WithLabelValues(method, path, outcome).Inc()
	mc.requestDuration.WithLabelValues(method, path, outcome).Observe(duration.Seconds())
}

// RecordAttemptStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordAttemptStart(method string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method).Inc()
}

// RecordAttemptEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordAttemptEnd(method string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, path string, attempt int) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(method, path, strconv.Itoa(attempt)).Inc()
}

// RecordSuperseded increments the supersession counter.
func (mc *MetricsCollector) RecordSuperseded(method, path string) {
	if mc == nil {
		return
	}

	mc.supersededTotal.WithLabelValues(method, path).Inc()
}

// RecordError increments error counter by kind.
func (mc *MetricsCollector) RecordError(kind ErrorKind, method, path string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(string(kind), method, path).Inc()
}

// RecordLoading mirrors the loading signal state.
func (mc *MetricsCollector) RecordLoading(count int, visible bool) {
	if mc == nil {
		return
	}

	mc.loadingCount.Set(float64(count))
	if visible {
		mc.loadingVisible.Set(1)
	} else {
		mc.loadingVisible.Set(0)
	}
}

// GetRegistry exposes the underlying prometheus registry, or nil when the
// collector was built on another Registerer.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}
