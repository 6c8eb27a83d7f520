package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	stepDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets     = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the form server.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Ticket metrics
	TicketsIssuedTotal        *prometheus.CounterVec
	TicketsAdvancedTotal      *prometheus.CounterVec
	TicketsRedeemedTotal      *prometheus.CounterVec
	TicketNotFoundTotal       prometheus.Counter
	FingerprintMismatchTotal  *prometheus.CounterVec
	TicketResolutionDuration  prometheus.Histogram

	// Navigation metrics
	ScreenResolutionsTotal    *prometheus.CounterVec
	MisconfiguredProcessTotal *prometheus.CounterVec

	// Filter metrics
	FilterRunsTotal     *prometheus.CounterVec
	FilterDuration      *prometheus.HistogramVec
	DecryptionsTotal    *prometheus.CounterVec
	MaskedValuesTotal   prometheus.Counter
	DroppedValuesTotal  *prometheus.CounterVec

	// System metrics
	DefinitionReloadTotal *prometheus.CounterVec
	DefinitionsLoaded     prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formflow_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formflow_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Tickets
		TicketsIssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_tickets_issued_total",
			Help: "Total number of request tickets issued.",
		}, []string{"process_key"}),
		TicketsAdvancedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_tickets_advanced_total",
			Help: "Total number of tickets advanced to a subsequent screen.",
		}, []string{"process_key", "submission_type"}),
		TicketsRedeemedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_tickets_redeemed_total",
			Help: "Total number of tickets successfully resolved.",
		}, []string{"process_key"}),
		TicketNotFoundTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formflow_ticket_not_found_total",
			Help: "Total number of lookups for unknown or expired tickets.",
		}),
		FingerprintMismatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_fingerprint_mismatch_total",
			Help: "Total number of ticket fingerprint mismatches by attribute.",
		}, []string{"attribute", "fatal"}),
		TicketResolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "formflow_ticket_resolution_duration_seconds",
			Help:    "Ticket resolution duration in seconds.",
			Buckets: stepDurationBuckets,
		}),

		// Navigation
		ScreenResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_screen_resolutions_total",
			Help: "Total number of screen resolutions.",
		}, []string{"process_key", "direction"}),
		MisconfiguredProcessTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_misconfigured_process_total",
			Help: "Total number of navigation failures caused by process misconfiguration.",
		}, []string{"process_key"}),

		// Filter
		FilterRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_filter_runs_total",
			Help: "Total number of data filter pipeline runs.",
		}, []string{"pipeline"}),
		FilterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formflow_filter_duration_seconds",
			Help:    "Data filter pipeline duration in seconds.",
			Buckets: stepDurationBuckets,
		}, []string{"pipeline"}),
		DecryptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_decryptions_total",
			Help: "Total number of restricted value decryptions.",
		}, []string{"status"}),
		MaskedValuesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formflow_masked_values_total",
			Help: "Total number of restricted values masked.",
		}),
		DroppedValuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_dropped_values_total",
			Help: "Total number of restricted values dropped from output.",
		}, []string{"reason"}),

		// System
		DefinitionReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_definition_reload_total",
			Help: "Total process definition reloads.",
		}, []string{"status"}),
		DefinitionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formflow_definitions_loaded",
			Help: "Number of loaded process definitions.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Tickets
		m.TicketsIssuedTotal,
		m.TicketsAdvancedTotal,
		m.TicketsRedeemedTotal,
		m.TicketNotFoundTotal,
		m.FingerprintMismatchTotal,
		m.TicketResolutionDuration,
		// Navigation
		m.ScreenResolutionsTotal,
		m.MisconfiguredProcessTotal,
		// Filter
		m.FilterRunsTotal,
		m.FilterDuration,
		m.DecryptionsTotal,
		m.MaskedValuesTotal,
		m.DroppedValuesTotal,
		// System
		m.DefinitionReloadTotal,
		m.DefinitionsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordTicketIssued records a freshly issued ticket.
func (m *Metrics) RecordTicketIssued(processKey string) {
	m.TicketsIssuedTotal.WithLabelValues(processKey).Inc()
}

// RecordTicketAdvanced records a ticket moved to a subsequent screen.
func (m *Metrics) RecordTicketAdvanced(processKey, submissionType string) {
	m.TicketsAdvancedTotal.WithLabelValues(processKey, submissionType).Inc()
}

// RecordTicketRedeemed records a successful ticket resolution.
func (m *Metrics) RecordTicketRedeemed(processKey string, duration time.Duration) {
	m.TicketsRedeemedTotal.WithLabelValues(processKey).Inc()
	m.TicketResolutionDuration.Observe(duration.Seconds())
}

// RecordTicketNotFound records a lookup for an unknown or expired ticket.
func (m *Metrics) RecordTicketNotFound() {
	m.TicketNotFoundTotal.Inc()
}

// RecordFingerprintMismatch records a ticket fingerprint mismatch on one
// attribute.
func (m *Metrics) RecordFingerprintMismatch(attribute string, fatal bool) {
	m.FingerprintMismatchTotal.WithLabelValues(attribute, strconv.FormatBool(fatal)).Inc()
}

// RecordScreenResolution records a navigation resolution. Direction is
// "current" or "next".
func (m *Metrics) RecordScreenResolution(processKey, direction string) {
	m.ScreenResolutionsTotal.WithLabelValues(processKey, direction).Inc()
}

// RecordMisconfiguredProcess records a navigation failure caused by a bad
// process definition.
func (m *Metrics) RecordMisconfiguredProcess(processKey string) {
	m.MisconfiguredProcessTotal.WithLabelValues(processKey).Inc()
}

// RecordFilterRun records a data filter pipeline execution.
func (m *Metrics) RecordFilterRun(pipeline string, duration time.Duration) {
	m.FilterRunsTotal.WithLabelValues(pipeline).Inc()
	m.FilterDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// RecordDecryption records a restricted value decryption attempt.
// Status is "ok" or "error".
func (m *Metrics) RecordDecryption(status string) {
	m.DecryptionsTotal.WithLabelValues(status).Inc()
}

// RecordMaskedValue records a restricted value replaced with a mask.
func (m *Metrics) RecordMaskedValue() {
	m.MaskedValuesTotal.Inc()
}

// RecordDroppedValue records a restricted value omitted from output.
func (m *Metrics) RecordDroppedValue(reason string) {
	m.DroppedValuesTotal.WithLabelValues(reason).Inc()
}

// RecordDefinitionReload records a definition reload.
func (m *Metrics) RecordDefinitionReload(status string) {
	m.DefinitionReloadTotal.WithLabelValues(status).Inc()
}

// SetDefinitionsLoaded sets the number of loaded process definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	m.DefinitionsLoaded.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
