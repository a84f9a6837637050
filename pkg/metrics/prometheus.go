package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records factorlab metrics using Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	engineRuns      prometheus.Counter
	engineDuration  prometheus.Histogram
	barsProcessed   prometheus.Counter
	aboveThreshold  prometheus.Counter
	transitions     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	externalFetches *prometheus.CounterVec
}

// New creates a recorder backed by its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		engineRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "factorlab",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total number of engine runs",
		}),
		engineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "factorlab",
			Subsystem: "engine",
			Name:      "duration_seconds",
			Help:      "Duration of engine runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		barsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "factorlab",
			Subsystem: "engine",
			Name:      "bars_processed_total",
			Help:      "Total number of price bars processed",
		}),
		aboveThreshold: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "factorlab",
			Subsystem: "engine",
			Name:      "days_above_threshold_total",
			Help:      "Total number of scored days above the threshold",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "factorlab",
			Subsystem: "analysis",
			Name:      "status_transitions_total",
			Help:      "Analysis status transitions",
		}, []string{"status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
		externalFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "factorlab",
			Subsystem: "feeds",
			Name:      "fetches_total",
			Help:      "External feed fetches by source and result",
		}, []string{"source", "result"}),
	}
}

// RecordRun records one engine run
func (r *Recorder) RecordRun(bars, aboveThreshold int, d time.Duration) {
	r.engineRuns.Inc()
	r.engineDuration.Observe(d.Seconds())
	r.barsProcessed.Add(float64(bars))
	r.aboveThreshold.Add(float64(aboveThreshold))
}

// RecordTransition records an analysis status change
func (r *Recorder) RecordTransition(status string) {
	r.transitions.WithLabelValues(status).Inc()
}

// RecordFetch records an external feed fetch
func (r *Recorder) RecordFetch(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.externalFetches.WithLabelValues(source, result).Inc()
}

// RecordHTTP records one HTTP request
func (r *Recorder) RecordHTTP(route, method string, status int, d time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the /metrics handler
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
