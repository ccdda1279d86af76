// metrics.go — Prometheus HTTP метрики resportal.
// Регистрирует метрики: rp_http_requests_total, rp_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rp_http_requests_total",
			Help: "Общее количество HTTP-запросов к resportal",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rp_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к resportal в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// knownPaths — маршруты сервиса. Прочие пути попадают в метки как "other".
var knownPaths = map[string]struct{}{
	"/resources-list":          {},
	"/resources-url":           {},
	"/resources-download":      {},
	"/boards-list":             {},
	"/me":                      {},
	"/admin-upload":            {},
	"/admin-resources-delete":  {},
	"/admin-resources-replace": {},
	"/admin-resources-update":  {},
	"/admin-users-list":        {},
	"/admin-users-update":      {},
	"/health/live":             {},
	"/health/ready":            {},
	"/metrics":                 {},
}

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath ограничивает кардинальность метки path.
// Маршруты API работают через query string, поэтому путь не содержит id.
func normalizePath(path string) string {
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return "other"
}
