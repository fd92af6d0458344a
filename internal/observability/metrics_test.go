package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
}

func TestRecorderCountsAttemptsAndResolutions(t *testing.T) {
	rec := NewRecorder()

	before := testutil.ToFloat64(tierAttempts.WithLabelValues("ledger_mirror", "stale"))
	rec.RecordAttempt("ledger_mirror", "stale")
	rec.RecordAttempt("ledger_mirror", "stale")
	require.Equal(t, before+2, testutil.ToFloat64(tierAttempts.WithLabelValues("ledger_mirror", "stale")))

	before = testutil.ToFloat64(resolutions.WithLabelValues("status", "component_poll"))
	rec.RecordResolution("status", "component_poll", 8)
	require.Equal(t, before+1, testutil.ToFloat64(resolutions.WithLabelValues("status", "component_poll")))
}

func TestRequestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(RequestMetrics)
	r.Get("/v1/receipts/{receiptID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/receipts/{receiptID}", "404"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/receipts/r-1", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/receipts/{receiptID}", "404")))
}

func TestHandlerServesMetrics(t *testing.T) {
	NewRecorder().RecordAttempt("projection_cache", "miss")

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "interview_sources_attempts_total"))
}
