package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSimulation(t *testing.T) {
	before := testutil.ToFloat64(anomaliesTotal.WithLabelValues("B"))
	RecordSimulation("B", 3, 1, 970_000)

	assert.Equal(t, before+3, testutil.ToFloat64(anomaliesTotal.WithLabelValues("B")))
	assert.Equal(t, 970_000.0, testutil.ToFloat64(finalValue.WithLabelValues("B")))
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	RecordError("data")
	ObserveStage("simulation", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	NewMetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cfd_backtest_errors_total")
	assert.Contains(t, rec.Body.String(), "cfd_backtest_stage_duration_seconds")
}
