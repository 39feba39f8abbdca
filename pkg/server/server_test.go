package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dcmnode/dcmprune/pkg/config"
	"dcmnode/dcmprune/pkg/telemetry/health"
	"dcmnode/dcmprune/pkg/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func testDaemonConfig() *config.DaemonConfig {
	return &config.DaemonConfig{
		ListenAddress:   "127.0.0.1:0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}
}

func testRoutes(t *testing.T) Routes {
	t.Helper()

	cfg := config.DefaultConfig()
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
	collector.RecordRun("noop", time.Second)

	return Routes{
		MetricsPath: "/metrics",
		Metrics:     collector.Handler(),
		Health:      health.New(time.Second),
		Version:     "test",
	}
}

func TestHandler_Routes(t *testing.T) {
	handler := New(testDaemonConfig(), testRoutes(t)).Handler()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/metrics", wantStatus: http.StatusOK, wantBody: "dcmprune_retention_runs_total"},
		{path: health.LivenessPath, wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{path: health.ReadinessPath, wantStatus: http.StatusOK, wantBody: `"status":"ready"`},
		{path: health.VersionPath, wantStatus: http.StatusOK, wantBody: `"version":"test"`},
		{path: "/unknown", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q:\n%s", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	routes := testRoutes(t)
	routes.Metrics = nil

	rec := httptest.NewRecorder()
	New(testDaemonConfig(), routes).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 with metrics disabled", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestStartShutdown(t *testing.T) {
	srv := New(testDaemonConfig(), testRoutes(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("Start() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	if !srv.IsRunning() {
		t.Error("expected server to be running")
	}

	resp, err := http.Get("http://" + srv.Addr().String() + health.LivenessPath)
	if err != nil {
		t.Fatalf("GET %s failed: %v", health.LivenessPath, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if srv.IsRunning() {
		t.Error("expected server to be stopped")
	}
}

func TestStart_ListenError(t *testing.T) {
	cfg := testDaemonConfig()
	cfg.ListenAddress = "256.0.0.1:bad"

	if err := New(cfg, Routes{}).Start(context.Background()); err == nil {
		t.Error("expected listen error")
	}
}
