package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"musallago/pkg/probe"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from the same machine; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// OfflineChecker reports whether the device can reach the network.
type OfflineChecker interface {
	IsOffline(ctx context.Context) bool
}

// ConnectivityHandler serves the one-shot offline probe and the live status feed.
type ConnectivityHandler struct {
	checker OfflineChecker
	hub     *ConnectivityHub
}

func NewConnectivityHandler(c OfflineChecker, hub *ConnectivityHub) *ConnectivityHandler {
	return &ConnectivityHandler{checker: c, hub: hub}
}

// Hub returns the websocket endpoint.
func (h *ConnectivityHandler) Hub() *ConnectivityHub { return h.hub }

// HandleOffline handles GET /api/offline. It always probes afresh.
func (h *ConnectivityHandler) HandleOffline(w http.ResponseWriter, r *http.Request) {
	offline := h.checker.IsOffline(r.Context())
	writeJSON(w, http.StatusOK, probe.Status{Offline: offline, CheckedAt: time.Now()})
}

// ConnectivityHub fans probe.Status changes out to websocket subscribers.
// New subscribers immediately receive the last published status.
type ConnectivityHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    []byte
	logger  *slog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewConnectivityHub(logger *slog.Logger) *ConnectivityHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectivityHub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
}

// Publish broadcasts s to every subscriber. Slow subscribers are dropped.
func (h *ConnectivityHub) Publish(s probe.Status) {
	msg, err := json.Marshal(s)
	if err != nil {
		h.logger.Error("Failed to encode connectivity status", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping slow connectivity subscriber")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *ConnectivityHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the subscriber.
func (h *ConnectivityHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	h.logger.Debug("Connectivity subscriber connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *ConnectivityHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump only services control frames; subscribers have nothing to say.
func (h *ConnectivityHub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Connectivity subscriber read error", "error", err)
			}
			return
		}
	}
}

func (h *ConnectivityHub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
