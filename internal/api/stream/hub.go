// Package stream pushes scan runs and monitor results to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/market"
	"github.com/sabq4org/so7ba.ai/internal/pipeline"
	"github.com/sabq4org/so7ba.ai/internal/scorecard"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

const (
	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	sendBuffer   = 16
	maxReadBytes = 512
)

// Event types
const (
	EventScanRun      = "scan_run"
	EventMonitor      = "monitor"
	EventGreeksAlerts = "greeks_alerts"
)

// Event is one message on the stream
type Event struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data"`
}

// RunDigest scan run without the full scorecard list
type RunDigest struct {
	RunID        string           `json:"run_id"`
	FinishedAt   time.Time        `json:"finished_at"`
	Evaluated    int              `json:"evaluated"`
	MaxScore     float64          `json:"scorecard_max"`
	UsedFallback bool             `json:"used_fallback"`
	Report       scorecard.Report `json:"report"`
	Market       *market.Context  `json:"market,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// =============================================================================
// Hub
// ⭐ SSOT: 실시간 브로드캐스트는 이 허브에서만
// =============================================================================

// Hub fans events out to connected websocket clients.
// Slow clients whose buffer is full are dropped.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a new hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  log.WithComponent("stream"),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves
// GET /api/stream
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.WithFields(map[string]interface{}{
		"remote":  r.RemoteAddr,
		"clients": count,
	}).Info("Stream client connected")

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast sends an event to every client
func (h *Hub) Broadcast(eventType string, data interface{}) {
	msg, err := json.Marshal(Event{Type: eventType, Time: time.Now().UTC(), Data: data})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal stream event")
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Stream client too slow, dropping")
		h.remove(c)
	}
}

// PublishRun implements pipeline.RunPublisher
func (h *Hub) PublishRun(ctx context.Context, run *pipeline.Run) {
	h.Broadcast(EventScanRun, RunDigest{
		RunID:        run.ID,
		FinishedAt:   run.FinishedAt,
		Evaluated:    len(run.Scorecards),
		MaxScore:     run.MaxScore,
		UsedFallback: run.UsedFallback,
		Report:       run.Report,
		Market:       run.Market,
		Warnings:     run.Warnings,
	})
}

// NotifyMonitor implements execution.MonitorNotifier
func (h *Hub) NotifyMonitor(ctx context.Context, report *contracts.MonitorReport) {
	h.Broadcast(EventMonitor, report)
	if len(report.Alerts) > 0 {
		h.Broadcast(EventGreeksAlerts, report.Alerts)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

// remove unregisters c and closes its send channel once
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

// readPump discards client messages and keeps the pong deadline fresh
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(maxReadBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("Stream client read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
