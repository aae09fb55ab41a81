package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requestCount читает shl_http_requests_total для заданных лейблов из реестра по умолчанию.
func requestCount(t *testing.T, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "shl_http_requests_total" {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestWithMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(WithMetrics)
	r.Get("/api/shl/file/{tokenId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	labels := map[string]string{"method": http.MethodGet, "path": "/api/shl/file/{tokenId}", "status": "410"}
	before := requestCount(t, labels)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/shl/file/secret-token", nil))

	assert.Equal(t, http.StatusGone, rr.Code)
	assert.Equal(t, before+1, requestCount(t, labels))
}

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "/api/shl/file/abcdef…", redactPath("/api/shl/file/abcdefghijkl"))
	assert.Equal(t, "/api/shl/manifest/abc…", redactPath("/api/shl/manifest/abc"))
	assert.Equal(t, "/api/shl", redactPath("/api/shl"))
	assert.Equal(t, "/health", redactPath("/health"))
}
