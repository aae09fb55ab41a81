package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shl_http_requests_total",
			Help: "Общее количество HTTP-запросов.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shl_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// WithMetrics собирает Prometheus-метрики запросов.
// В лейбл path попадает шаблон маршрута chi, а не фактический путь с секретами.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(mw, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(mw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// redactPath обрезает секретный сегмент в путях манифеста и скачивания.
func redactPath(path string) string {
	for _, prefix := range []string{"/api/shl/manifest/", "/api/shl/file/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" {
			if len(rest) > 6 {
				rest = rest[:6]
			}
			return prefix + rest + "…"
		}
	}
	return path
}
