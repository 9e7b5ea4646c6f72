package stats

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExposesCollectorsOverHTTP(t *testing.T) {
	r := NewRegistry()
	r.SetRecordCount("users", 42)
	r.SetWALEntries(7)
	r.IncOps("insert")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "monarch_collection_records")
	assert.Contains(t, body, `collection="users"`)
	assert.Contains(t, body, "monarch_wal_entries 7")
}

func TestHealthCheckerReportsUnhealthyComponent(t *testing.T) {
	now := time.Now()
	h := NewHealthChecker("test", []string{"wal"}, func() time.Time { return now })
	h.RegisterComponent("wal", false, "disk full")

	status := h.Health()
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Components["wal"], "disk full")
}

func TestReadinessWaitsForCriticalComponents(t *testing.T) {
	h := NewHealthChecker("test", []string{"wal", "checkpoint"}, nil)

	ready := h.Readiness()
	assert.Equal(t, "not_ready", ready.Status)

	h.RegisterComponent("wal", true, "")
	h.RegisterComponent("checkpoint", true, "")
	ready = h.Readiness()
	assert.Equal(t, "ready", ready.Status)
}

func TestLivenessHandlerAlwaysReportsAlive(t *testing.T) {
	h := NewHealthChecker("test", nil, nil)
	req := httptest.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}
