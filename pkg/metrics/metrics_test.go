package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveIngest(t *testing.T) {
	c := New()
	c.ObserveIngest(SinkFeed, nil)
	c.ObserveIngest(SinkFeed, nil)
	c.ObserveIngest(SinkStats, errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(c.readingsIngested.WithLabelValues(SinkFeed)))
	require.Equal(t, 0.0, testutil.ToFloat64(c.readingsIngested.WithLabelValues(SinkStats)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.ingestFailures.WithLabelValues(SinkStats)))
}

func TestHandlerExposesCounters(t *testing.T) {
	c := New()
	c.ObserveRequest(http.MethodGet, "/api/v1/sites", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `redisolar_http_requests_total{method="GET",route="/api/v1/sites",status="200"} 1`)
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var c *Collectors
	require.NotPanics(t, func() {
		c.ObserveIngest(SinkFeed, nil)
		c.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}
