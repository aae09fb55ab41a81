package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

var sugar = zap.NewNop().Sugar()

// SetLogger задаёт логгер для middleware.
func SetLogger(l *zap.SugaredLogger) {
	sugar = l
}

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	data *responseData
}

func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.data.size += size
	return size, err
}

func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.data.status = statusCode
}

// WithLogging логирует каждый запрос: метод, URI, статус, размер и длительность.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		data := &responseData{status: http.StatusOK}
		lw := &loggingResponseWriter{ResponseWriter: w, data: data}

		next.ServeHTTP(lw, r)

		// путь с токеном или manifest id не логируем целиком
		sugar.Infow("request",
			"method", r.Method,
			"uri", redactPath(r.URL.Path),
			"status", data.status,
			"size", data.size,
			"duration", time.Since(start),
		)
	})
}
