package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banktl/atmwatch/internal/metrics"
	"github.com/banktl/atmwatch/internal/scheduler"
)

func TestHealth_Empty(t *testing.T) {
	history := scheduler.NewHistory(5)
	srv := NewServer("127.0.0.1:0", history, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.CyclesStored)
	assert.Nil(t, resp.LastCycle)
}

func TestHealth_ReportsRecentCycles(t *testing.T) {
	history := scheduler.NewHistory(5)
	history.Record(scheduler.Outcome{CycleID: "c1", Duration: time.Second})
	history.Record(scheduler.Outcome{CycleID: "c2", Failover: true, Terminals: 14})

	srv := NewServer("127.0.0.1:0", history, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.CyclesStored)
	require.NotNil(t, resp.LastCycle)
	assert.Equal(t, "c2", resp.LastCycle.CycleID)
	assert.True(t, resp.LastCycle.Failover)
	require.Len(t, resp.RecentCycles, 2)
	assert.Equal(t, "c2", resp.RecentCycles[0].CycleID)
}

func TestHealth_DegradedOnFailedCycle(t *testing.T) {
	history := scheduler.NewHistory(5)
	history.Record(scheduler.Outcome{CycleID: "c1", Error: "all streams failed"})

	srv := NewServer("127.0.0.1:0", history, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestMetricsEndpoint_Scrapes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Cycles.WithLabelValues("harvest").Inc()

	history := scheduler.NewHistory(5)
	srv := NewServer("127.0.0.1:0", history, reg)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "atmwatch_cycles_total")
}
