package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/orchestrator"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{
			Host: "localhost",
			Port: 9090,
		}

		server, err := NewServer(NewTracker(), zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.Echo())
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(NewTracker(), zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9090, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(NewTracker(), nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when tracker is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "tracker cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t, NewTracker())

	rec := serve(server, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleMetrics(t *testing.T) {
	server := setupTestServer(t, NewTracker())
	scheduler.TasksTotal.WithLabelValues(string(scheduler.StatePublished)).Add(0)

	rec := serve(server, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pkgforge_scheduler_tasks_total")
}

func TestHandleStatus(t *testing.T) {
	tracker := NewTracker()
	tracker.OnPhase(orchestrator.PhaseProgress{
		RunID:      "run-1",
		Phase:      orchestrator.PhaseBuild,
		Status:     orchestrator.StatusInProgress,
		Message:    "building 3 packages",
		Percentage: 60,
	})
	tracker.OnEvent(scheduler.Event{Package: "@acme/core", State: scheduler.StatePublished})
	tracker.OnEvent(scheduler.Event{Package: "@acme/http", State: scheduler.StateRemediating})
	tracker.OnEvent(scheduler.Event{Package: "@acme/app", State: scheduler.StateSkipped, Cause: "upstream failed"})
	server := setupTestServer(t, tracker)

	rec := serve(server, "/api/v1/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, string(orchestrator.PhaseBuild), resp.Phase)
	assert.Equal(t, 60, resp.Percentage)
	assert.Len(t, resp.Packages, 3)
	assert.Equal(t, "upstream failed", resp.Packages["@acme/app"].Cause)
	assert.Equal(t, 1, resp.Totals["PUBLISHED"])
	assert.Equal(t, 1, resp.Totals["REMEDIATING"])
}

func TestHandlePackage(t *testing.T) {
	tracker := NewTracker()
	tracker.OnEvent(scheduler.Event{Package: "@acme/core", State: scheduler.StateAwaitingHuman, Cause: "human intervention requested"})
	server := setupTestServer(t, tracker)

	t.Run("escaped scoped name", func(t *testing.T) {
		rec := serve(server, "/api/v1/packages/%40acme%2Fcore")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp PackageStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "AWAITING_HUMAN", resp.State)
	})

	t.Run("unknown package", func(t *testing.T) {
		rec := serve(server, "/api/v1/packages/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTracker_NewRunClearsPackages(t *testing.T) {
	tracker := NewTracker()
	tracker.OnPhase(orchestrator.PhaseProgress{RunID: "a", Phase: orchestrator.PhaseBuild})
	tracker.OnEvent(scheduler.Event{Package: "x", State: scheduler.StateFailed})
	tracker.OnPhase(orchestrator.PhaseProgress{RunID: "a", Phase: orchestrator.PhaseQuality})
	_, ok := tracker.Package("x")
	assert.True(t, ok)

	tracker.OnPhase(orchestrator.PhaseProgress{RunID: "b", Phase: orchestrator.PhaseDiscovery})
	_, ok = tracker.Package("x")
	assert.False(t, ok)
	assert.Empty(t, tracker.Snapshot().Packages)
}

func TestServerLifecycle(t *testing.T) {
	t.Run("starts and shuts down gracefully", func(t *testing.T) {
		server, err := NewServer(NewTracker(), zap.NewNop(), &Config{
			Host: "localhost",
			Port: 0, // random available port
		})
		require.NoError(t, err)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, server.Shutdown(ctx))

		select {
		case err := <-errChan:
			assert.True(t, err == nil || err == http.ErrServerClosed)
		case <-time.After(6 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server := setupTestServer(t, NewTracker())
		rec := serve(server, "/health")
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t, NewTracker())
		server.Echo().GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		var rec *httptest.ResponseRecorder
		assert.NotPanics(t, func() {
			rec = serve(server, "/panic")
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func serve(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T, tracker *Tracker) *Server {
	t.Helper()
	server, err := NewServer(tracker, zap.NewNop(), &Config{Host: "localhost", Port: 9090})
	require.NoError(t, err)
	return server
}
