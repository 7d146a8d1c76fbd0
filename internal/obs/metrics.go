package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authGateOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_gate_outcomes_total",
			Help: "Authentication gate decisions by terminal state.",
		},
		[]string{"outcome"},
	)

	initOnce sync.Once
)

// Init registers the metrics in the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, authGateOutcomes)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAuthOutcome counts one gate decision.
func RecordAuthOutcome(outcome string) {
	authGateOutcomes.WithLabelValues(outcome).Inc()
}

// Instrument records request count, latency and in-flight gauge.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// UnmatchedPath labels every request that does not hit a known route.
const UnmatchedPath = "other"

var knownPaths = map[string]struct{}{
	"/healthz":                  {},
	"/readyz":                   {},
	"/v1/info":                  {},
	"/metrics":                  {},
	"/api/auth/register":        {},
	"/api/auth/login":           {},
	"/api/contacts":             {},
	"/api/contacts/search":      {},
	"/api/user/profile":         {},
	"/api/user/change-password": {},
	"/api/user/account":         {},
}

// CanonicalPath maps a request path onto its route pattern so the path
// label stays low cardinality. Contact ids collapse to :id and anything
// unrouted collapses to UnmatchedPath.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = "/" + strings.Trim(p, "/")
	if _, ok := knownPaths[p]; ok {
		return p
	}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "contacts" && parts[2] != "" {
		switch {
		case len(parts) == 3:
			return "/api/contacts/:id"
		case len(parts) == 4 && parts[3] == "favorite":
			return "/api/contacts/:id/favorite"
		}
	}
	return UnmatchedPath
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
