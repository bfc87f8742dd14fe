package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInitMetrics_recordsDomainCounters(t *testing.T) {
	ctx := context.Background()
	handler, err := InitMeterProvider(ctx, "metrics-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := initMetrics(ctx); err != nil {
		t.Fatalf("initMetrics: %v", err)
	}
	RecordOp(ctx, "project", "create")
	RecordReviewTransition(ctx, "management", "started")
	RecordFeedbackWrite(ctx, "feedback")
	RecordQuery(ctx, "projects", 2*time.Millisecond)
	RecordChat(ctx, "ok")
	RecordSSEEvent(ctx)
	_ = handler
}

func TestAddSSEConnection_RemoveSSEConnection(t *testing.T) {
	AddSSEConnection()
	AddSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection() // should not go negative
	sseConnectionsMu.Lock()
	n := sseConnections
	sseConnectionsMu.Unlock()
	if n != 0 {
		t.Fatalf("sseConnections = %d, want 0", n)
	}
}

func TestInitMetricsWithProjectCount(t *testing.T) {
	ctx := context.Background()
	handler, err := InitMeterProvider(ctx, "projectcount-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	err = InitMetricsWithProjectCount(ctx, func(context.Context) (map[string]int64, error) {
		return map[string]int64{"in_progress": 3, "planning": 1}, nil
	})
	if err != nil {
		t.Fatalf("InitMetricsWithProjectCount: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "abeto_projects") {
		t.Fatalf("expected abeto_projects gauge in output:\n%s", rec.Body.String())
	}
}

func TestInitMetricsWithProjectCount_nilFunc(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "projectcount-nil-test")
	if err := InitMetricsWithProjectCount(ctx, nil); err != nil {
		t.Fatalf("InitMetricsWithProjectCount(nil): %v", err)
	}
}
