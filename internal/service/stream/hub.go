package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
	svcmetrics "PatternScope/internal/service/metrics"
	applogger "PatternScope/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 64
)

// Hub streams finished reports to connected WebSocket clients.
// A slow client loses frames instead of stalling the publisher.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	l        *applogger.Logger
}

type client struct {
	conn   *websocket.Conn
	symbol string // empty means every symbol
	send   chan []byte
	once   sync.Once
}

func NewHub(l *applogger.Logger) *Hub {
	if l == nil {
		l = applogger.Nop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		l: l,
	}
}

// Serve upgrades the request and blocks until the client goes away.
// The optional symbol query parameter filters the stream.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	c := &client{
		conn:   conn,
		symbol: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol"))),
		send:   make(chan []byte, sendBuffer),
	}
	h.add(c)
	h.l.Info("stream client connected",
		applogger.String("remote", r.RemoteAddr),
		applogger.String("symbol", c.symbol),
	)

	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

// Publish implements ReportPublisher.
func (h *Hub) Publish(_ context.Context, report *models.PatternReport) error {
	b, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	sym := strings.ToUpper(report.Symbol)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.symbol != "" && c.symbol != sym {
			continue
		}
		select {
		case c.send <- b:
		default:
			h.l.Warn("stream client lagging, frame dropped", applogger.String("symbol", sym))
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	cs := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		cs = append(cs, c)
	}
	h.mu.Unlock()
	for _, c := range cs {
		h.remove(c)
	}
	return nil
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	svcmetrics.StreamClients.Inc()
}

func (h *Hub) remove(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		close(c.send)
		h.mu.Unlock()
		_ = c.conn.Close()
		svcmetrics.StreamClients.Dec()
	})
}

// readLoop drains control frames so pongs are processed; clients send nothing else.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.l.Debug("stream client read error", applogger.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
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

var _ domrepo.ReportPublisher = (*Hub)(nil)
