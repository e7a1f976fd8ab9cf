package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
)

func TestAlertHubBroadcastsHighSeverityEvent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewAlertHub()
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	h := New(tracer, nil, nil, nil, hub)

	r := gin.New()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/alerts/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial alert stream: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	report := sampleReport()
	if err := hub.NotifyReport(context.Background(), report); err != nil {
		t.Fatalf("notify: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event alertEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != "high_severity_report" {
		t.Fatalf("unexpected event type: %s", event.Type)
	}
	if event.UserID != "u-1" || event.TopSeverity != "high" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestAlertHubDropsDeadClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewAlertHub()
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	h := New(tracer, nil, nil, nil, hub)

	r := gin.New()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/alerts/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial alert stream: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()

	// The read loop notices the close and unregisters the client.
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("dead client never removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAlertHubNilReportIsNoop(t *testing.T) {
	hub := NewAlertHub()
	if err := hub.NotifyReport(context.Background(), nil); err != nil {
		t.Fatalf("nil report must be a no-op: %v", err)
	}
}

func TestStreamAlertsUnavailableWithoutHub(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	h := New(tracer, nil, nil, nil, nil)

	r := gin.New()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/alerts/stream", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
