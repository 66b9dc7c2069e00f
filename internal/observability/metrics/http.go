package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysesTotal      *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	ocrEngineTotal     *prometheus.CounterVec
	modelEndpointTotal *prometheus.CounterVec
	chainExhausted     *prometheus.CounterVec
	enrichmentTotal    *prometheus.CounterVec
	degradedTotal      *prometheus.CounterVec
	scoreDistribution  *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "li",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "li",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "li",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analysesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "li",
			Subsystem: "pipeline",
			Name:      "analyses_total",
			Help:      "Total completed label analyses by outcome.",
		},
		[]string{"service", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "li",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	ocrEngineTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "li",
			Subsystem: "ocr",
			Name:      "engine_total",
			Help:      "OCR engine attempts by engine and outcome.",
		},
		[]string{"service", "engine", "outcome"},
	)
	modelEndpointTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "li",
			Subsystem: "model",
			Name:      "endpoint_total",
			Help:      "Model endpoint attempts by endpoint and outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	chainExhausted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "li",
			Subsystem: "model",
			Name:      "chain_exhausted_total",
			Help:      "Model fallback chains exhausted by pipeline stage.",
		},
		[]string{"service", "stage"},
	)
	enrichmentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "li",
			Subsystem: "pipeline",
			Name:      "enrichment_total",
			Help:      "Enrichment outcomes: applied, rejected, skipped, no_candidate.",
		},
		[]string{"service", "outcome"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "li",
			Subsystem: "pipeline",
			Name:      "degraded_results_total",
			Help:      "Total degraded (fallback mode) analysis results.",
		},
		[]string{"service"},
	)
	scoreDistribution := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "li",
			Subsystem: "pipeline",
			Name:      "health_score",
			Help:      "Distribution of computed health scores.",
			Buckets:   []float64{0, 10, 20, 30, 40, 55, 70, 85, 100},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analysesTotal,
		stageDuration,
		ocrEngineTotal,
		modelEndpointTotal,
		chainExhausted,
		enrichmentTotal,
		degradedTotal,
		scoreDistribution,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		analysesTotal:      analysesTotal,
		stageDuration:      stageDuration,
		ocrEngineTotal:     ocrEngineTotal,
		modelEndpointTotal: modelEndpointTotal,
		chainExhausted:     chainExhausted,
		enrichmentTotal:    enrichmentTotal,
		degradedTotal:      degradedTotal,
		scoreDistribution:  scoreDistribution,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// HandlerFor serves several private registries from a single endpoint. The
// worker uses it to expose its own counters next to the pipeline counters it
// records through the analyze usecase.
func HandlerFor(gatherers ...prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers(gatherers), promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/scans/"):
		return "/v1/scans/{scan_id}"
	case strings.HasPrefix(path, "/v1/products/"):
		return "/v1/products/{barcode}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAnalysis(service, outcome string, score int, fallback bool) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.analysesTotal.WithLabelValues(service, outcome).Inc()
	if fallback {
		m.degradedTotal.WithLabelValues(service).Inc()
		return
	}
	m.scoreDistribution.WithLabelValues(service).Observe(float64(score))
}

func (m *HTTPServerMetrics) RecordStageDuration(service, stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordOCREngine(service, engine, outcome string) {
	m.ocrEngineTotal.WithLabelValues(service, engine, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordModelEndpoint(service, endpoint, outcome string) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	m.modelEndpointTotal.WithLabelValues(service, endpoint, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordChainExhausted(service, stage string) {
	m.chainExhausted.WithLabelValues(service, stage).Inc()
}

func (m *HTTPServerMetrics) RecordEnrichment(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.enrichmentTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
