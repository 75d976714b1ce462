package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGeneration(t *testing.T) {
	m := New()

	m.ObserveGeneration(OutcomeCached)
	m.ObserveGeneration(OutcomeGenerated)
	m.ObserveGeneration(OutcomeGenerated)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues(OutcomeCached)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.generations.WithLabelValues(OutcomeGenerated)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.generations.WithLabelValues(OutcomeFailed)))
}

func TestHandlerExposesRequestMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/auth/me/", http.MethodGet, "200", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tubescribe_http_requests_total{method="GET",route="/api/auth/me/",status="200"} 1`)
	assert.Contains(t, string(body), "tubescribe_http_request_duration_seconds_bucket")
}
