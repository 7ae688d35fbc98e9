// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload and download outcomes used as the result label.
const (
	ResultOK        = "ok"
	ResultDuplicate = "duplicate"
	ResultConflict  = "conflict"
	ResultInvalid   = "invalid"
	ResultForbidden = "forbidden"
	ResultNotFound  = "not_found"
	ResultError     = "error"
)

const unmatchedRoute = "unmatched"

// Metrics owns one registry so tests and multiple servers do not collide on
// the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	uploads      *prometheus.CounterVec
	uploadBytes  prometheus.Counter
	downloads    *prometheus.CounterVec
	gcDeleted    prometheus.Counter
	gcReclaimed  prometheus.Counter
}

// New registers all fstore collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fstore_http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fstore_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fstore_uploads_total",
			Help: "Upload attempts by result.",
		}, []string{"result"}),
		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "fstore_upload_bytes_total",
			Help: "Bytes stored by successful uploads.",
		}),
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fstore_downloads_total",
			Help: "Download resolutions by result.",
		}, []string{"result"}),
		gcDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fstore_gc_deleted_blobs_total",
			Help: "Orphan blobs removed by garbage collection.",
		}),
		gcReclaimed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fstore_gc_reclaimed_bytes_total",
			Help: "Bytes reclaimed by garbage collection.",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveUpload(result string, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
	if result == ResultOK && size > 0 {
		m.uploadBytes.Add(float64(size))
	}
}

func (m *Metrics) ObserveDownload(result string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveGC(deleted int, reclaimed int64) {
	if m == nil {
		return
	}
	if deleted > 0 {
		m.gcDeleted.Add(float64(deleted))
	}
	if reclaimed > 0 {
		m.gcReclaimed.Add(float64(reclaimed))
	}
}

// Middleware records request count and latency labelled by the ServeMux
// route pattern, which keeps ids and tokens out of the label set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
