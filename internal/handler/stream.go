package handler

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"finmentor/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const alertWriteTimeout = 5 * time.Second

// alertEvent is the wire shape pushed to websocket subscribers.
type alertEvent struct {
	Type        string  `json:"type"`
	UserID      string  `json:"user_id"`
	Month       string  `json:"month"`
	Persona     string  `json:"persona"`
	TopSeverity string  `json:"top_severity"`
	Score       float64 `json:"score"`
	GeneratedAt string  `json:"generated_at"`
}

// AlertHub fans high-severity reports out to connected websocket clients.
// It implements service.AlertSink so the evaluation path can push into it
// without knowing about websockets.
type AlertHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewAlertHub() *AlertHub {
	return &AlertHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboard origins are enforced by the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (hub *AlertHub) ClientCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

// NotifyReport broadcasts one report to every connected client. Clients
// whose writes fail are dropped.
func (hub *AlertHub) NotifyReport(ctx context.Context, report *domain.Report) error {
	_ = ctx
	if hub == nil || report == nil {
		return nil
	}

	event := alertEvent{
		Type:        "high_severity_report",
		UserID:      report.Metadata.UserID,
		Month:       report.Metadata.Month,
		Persona:     report.Metadata.Persona,
		TopSeverity: string(report.TopSeverity()),
		Score:       report.OverallScore(),
		GeneratedAt: report.Metadata.GeneratedAt,
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	for conn := range hub.clients {
		conn.SetWriteDeadline(time.Now().Add(alertWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("alert stream write failed, dropping client: %v", err)
			conn.Close()
			delete(hub.clients, conn)
		}
	}
	return nil
}

func (hub *AlertHub) add(conn *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.clients[conn] = struct{}{}
}

func (hub *AlertHub) remove(conn *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if _, ok := hub.clients[conn]; ok {
		conn.Close()
		delete(hub.clients, conn)
	}
}

// StreamAlerts godoc
// @Summary      Live alert feed
// @Description  Upgrades to a websocket that receives high-severity evaluation events
// @Tags         alerts
// @Success      101
// @Failure      503  {object}  map[string]string
// @Router       /api/alerts/stream [get]
func (h *Handler) StreamAlerts(c *gin.Context) {
	if h.alerts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert stream unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.stream-alerts")
	defer span.End()

	conn, err := h.alerts.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Printf("alert stream upgrade: %v", err)
		return
	}

	h.alerts.add(conn)
	defer h.alerts.remove(conn)

	// Clients only listen; the read loop just detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
