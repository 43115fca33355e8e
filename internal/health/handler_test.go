package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eleven-am/glance/internal/capture"
	"github.com/eleven-am/glance/internal/gateway"
	"github.com/eleven-am/glance/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, db *gorm.DB) *Handler {
	t.Helper()
	hub := gateway.NewHub(testLogger())
	manager := stream.NewManager(stream.Config{Sink: hub}, testLogger())
	loop := capture.NewScreenLoop(nil, manager, nil, capture.ScreenLoopConfig{}, testLogger())
	return NewHandler(db, nil, hub, manager, loop, "test")
}

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Liveness(t *testing.T) {
	rec := serve(t, newTestHandler(t, nil), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_ReadinessWithDatabase(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	rec := serve(t, newTestHandler(t, db), "/health/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Components["database"].Status != StatusHealthy {
		t.Errorf("expected healthy database, got %+v", resp.Components["database"])
	}
	// Redis is absent in tests, which degrades but does not fail.
	if resp.Components["redis"].Status != StatusDegraded {
		t.Errorf("expected degraded redis, got %+v", resp.Components["redis"])
	}
	if resp.Status != StatusDegraded {
		t.Errorf("expected degraded overall, got %s", resp.Status)
	}
	if resp.Pipeline.ScreenCapturing || resp.Pipeline.AudioSessionActive {
		t.Errorf("unexpected pipeline stats %+v", resp.Pipeline)
	}
}

func TestComputeOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentStatus
		want       Status
	}{
		{
			name: "all healthy",
			components: map[string]ComponentStatus{
				"database": {Status: StatusHealthy},
				"redis":    {Status: StatusHealthy},
			},
			want: StatusHealthy,
		},
		{
			name: "one degraded",
			components: map[string]ComponentStatus{
				"database": {Status: StatusHealthy},
				"redis":    {Status: StatusDegraded},
			},
			want: StatusDegraded,
		},
		{
			name: "one unhealthy",
			components: map[string]ComponentStatus{
				"database": {Status: StatusUnhealthy},
				"redis":    {Status: StatusHealthy},
			},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeOverallStatus(tt.components); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
