package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/sensor-notifier/pkg/metrics"
)

type fixedNext time.Time

func (f fixedNext) Next() time.Time { return time.Time(f) }

func TestHealth(t *testing.T) {
	next := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	h := NewRouter("sensor-notifier", metrics.New(), fixedNext(next), time.Now().Add(-time.Minute))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Meta    struct {
			Uptime      int       `json:"uptime_seconds"`
			NextCleanup time.Time `json:"next_cleanup"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "sensor-notifier healthy", body.Message)
	assert.GreaterOrEqual(t, body.Meta.Uptime, 59)
	assert.True(t, next.Equal(body.Meta.NextCleanup))
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.IncTrigger("state_write")
	h := NewRouter("sensor-notifier", m, nil, time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sensor_notifier_triggers_consumed_total{kind="state_write"} 1`)
}

func TestRouterWithoutMetrics(t *testing.T) {
	h := NewRouter("sensor-notifier", nil, nil, time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
