// Package metrics exposes pipeline and alert counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sosfinder"

// Delivery results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds all application collectors on a private registry.
type Metrics struct {
	FramesProcessed  prometheus.Counter
	FramesClosed     prometheus.Counter
	ReadErrors       prometheus.Counter
	DetectErrors     prometheus.Counter
	AlertsTriggered  prometheus.Counter
	AlertsDropped    prometheus.Counter
	Deliveries       *prometheus.CounterVec
	WindowCount      prometheus.Gauge
	GateFired        prometheus.Gauge
	DispatchDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	m := &Metrics{
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames that reached the debouncer",
		}),
		FramesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_closed_total",
			Help:      "Frames classified as closed hand",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_read_errors_total",
			Help:      "Camera reads that failed and skipped a tick",
		}),
		DetectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detect_errors_total",
			Help:      "Landmark detections that failed and skipped a tick",
		}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_triggered_total",
			Help:      "Alert events admitted by the dispatch gate",
		}),
		AlertsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_dropped_total",
			Help:      "Alerts dropped because the dispatch queue was full",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_deliveries_total",
			Help:      "Alert deliveries by channel and result",
		}, []string{"channel", "result"}),
		WindowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_count",
			Help:      "Closed-hand samples in the current window",
		}),
		GateFired: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_fired",
			Help:      "1 while the current episode has already dispatched",
		}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent delivering one alert on one channel",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FramesProcessed,
		m.FramesClosed,
		m.ReadErrors,
		m.DetectErrors,
		m.AlertsTriggered,
		m.AlertsDropped,
		m.Deliveries,
		m.WindowCount,
		m.GateFired,
		m.DispatchDuration,
	)

	return m
}

// ObserveDelivery records the outcome and latency of one dispatch.
func (m *Metrics) ObserveDelivery(channel string, err error, took time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.Deliveries.WithLabelValues(channel, result).Inc()
	m.DispatchDuration.WithLabelValues(channel).Observe(took.Seconds())
}

// SetDebounce publishes the debouncer's current count and gate state.
func (m *Metrics) SetDebounce(count int, fired bool) {
	m.WindowCount.Set(float64(count))
	if fired {
		m.GateFired.Set(1)
	} else {
		m.GateFired.Set(0)
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
