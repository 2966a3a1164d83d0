package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 256
)

// Hub channels. A viewer picks them with ?channels=a,b; all by default.
const (
	ChanSignals     = "signals"
	ChanHighSignals = "signals:high"
	ChanResults     = "results"
)

var allChannels = []string{ChanSignals, ChanHighSignals, ChanResults}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Envelope is the frame viewers receive.
type Envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
}

// Hub broadcasts signals to websocket viewers. Slow viewers lose messages
// instead of holding up a round.
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

func (h *Hub) Publish(_ context.Context, s types.ArbitrageSignal) error {
	ch := ChanSignals
	if s.Tier == types.TierHigh {
		ch = ChanHighSignals
	}
	return h.broadcast(ch, s)
}

func (h *Hub) Record(_ context.Context, r types.BranchResult) error {
	return h.broadcast(ChanResults, r)
}

func (h *Hub) broadcast(channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Envelope{Channel: channel, Data: data})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subs[channel] {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Warn("ws: dropping message for slow client", zap.String("channel", channel))
		}
	}
	return nil
}

// Clients reports the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws: upgrade failed", zap.Error(err))
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize), subs: parseChannels(r.URL.Query().Get("channels"))}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("ws: client connected", zap.Int("total_clients", h.Clients()))

	go c.writePump()
	go c.readPump()
}

func parseChannels(q string) map[string]bool {
	subs := make(map[string]bool, len(allChannels))
	for _, ch := range strings.Split(q, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			subs[ch] = true
		}
	}
	if len(subs) == 0 {
		for _, ch := range allChannels {
			subs[ch] = true
		}
	}
	return subs
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump only keeps the connection alive; viewers have nothing to say.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("ws: unexpected close", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
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
