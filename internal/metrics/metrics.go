package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundtrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	calculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_calculations_total",
			Help: "Propagation requests made by page sessions, by outcome.",
		},
		[]string{"outcome"},
	)

	calculationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundtrack_calculation_duration_seconds",
			Help:    "Round-trip time of propagation requests.",
			Buckets: prometheus.DefBuckets,
		},
	)

	staleResponsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_stale_responses_total",
			Help: "Calculation responses dropped because a newer submission was pending.",
		},
	)

	elementOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_element_store_operations_total",
			Help: "Persisted element-set operations, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_sessions_active",
			Help: "Number of live page sessions.",
		},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_streams_active",
			Help: "Number of open page event streams.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_connections_total",
			Help: "Page event stream connects and disconnects.",
		},
		[]string{"event"},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_messages_total",
			Help: "Page snapshots sent over event streams.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_bytes_total",
			Help: "Bytes written to event streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_errors_total",
			Help: "Event stream errors, by reason.",
		},
		[]string{"reason"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundtrack_propagation_duration_seconds",
			Help:    "Time spent serving built-in propagation requests.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	propagationSamplesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_propagation_samples_failed_total",
			Help: "Ground-track samples dropped because SGP4 failed at that time.",
		},
	)

	tleDatasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_tle_dataset_count",
			Help: "Number of element sets in the loaded catalogue.",
		},
	)

	tleDatasetAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_tle_dataset_age_seconds",
			Help: "Age of the loaded catalogue.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		calculationsTotal,
		calculationDurationSeconds,
		staleResponsesTotal,
		elementOpsTotal,
		sessionsActive,
		streamsActive,
		streamConnectionsTotal,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		propagationDurationSeconds,
		propagationSamplesFailed,
		tleDatasetCount,
		tleDatasetAge,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordCalculation(outcome string, d time.Duration) {
	calculationsTotal.WithLabelValues(outcome).Inc()
	calculationDurationSeconds.Observe(d.Seconds())
}

func IncStaleResponses() { staleResponsesTotal.Inc() }

func RecordElementOp(op, outcome string) {
	elementOpsTotal.WithLabelValues(op, outcome).Inc()
}

func SetSessionsActive(n int) { sessionsActive.Set(float64(n)) }

func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

func IncStreamMessages() { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

func ObservePropagation(d time.Duration) { propagationDurationSeconds.Observe(d.Seconds()) }
func AddPropagationSampleFailures(n int) { propagationSamplesFailed.Add(float64(n)) }

func SetTLEDatasetCount(n int) { tleDatasetCount.Set(float64(n)) }
func SetTLEDatasetAge(sec float64) { tleDatasetAge.Set(sec) }

// knownRoutes are label values passed through unchanged.
var knownRoutes = map[string]bool{
	"/":                true,
	"/healthz":         true,
	"/readyz":          true,
	"/metrics":         true,
	"/calculate":       true,
	"/index.html":      true,
	"/app.js":          true,
	"/styles.css":      true,
	"/api/v1/sessions": true,
}

// normalizeRoute collapses request paths into a bounded set of labels so
// session ids and record ids do not explode metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}

	rest, ok := strings.CutPrefix(path, "/api/v1/sessions/")
	if !ok {
		return "other"
	}
	parts := strings.Split(rest, "/")
	for _, p := range parts {
		if p == "" {
			return "other"
		}
	}

	const base = "/api/v1/sessions/{id}"
	switch len(parts) {
	case 1:
		return base
	case 2:
		switch parts[1] {
		case "events", "submit", "inputs", "elements":
			return base + "/" + parts[1]
		}
	case 3:
		switch {
		case parts[1] == "alert" && parts[2] == "ack":
			return base + "/alert/ack"
		case parts[1] == "elements" && (parts[2] == "open" || parts[2] == "close"):
			return base + "/elements/" + parts[2]
		case parts[1] == "elements":
			return base + "/elements/{rid}"
		}
	case 4:
		if parts[1] == "elements" && parts[3] == "load" {
			return base + "/elements/{rid}/load"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so event streams keep working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
