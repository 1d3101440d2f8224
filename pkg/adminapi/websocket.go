// Copyright 2025 Takhin Data, Inc.

package adminapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamcap/throttle/pkg/logger"
	"github.com/streamcap/throttle/pkg/throttle"
)

// upgrader allows any origin: the cors middleware already governs which
// browser contexts may establish a connection, and the bearer-token
// middleware already gated the route before it reaches here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsHub fans Metrics samples out to every connected stream client, the
// same broadcast-to-subscribers shape Takhin's console package used for
// its own live consumer-lag feed, adapted here onto a single metrics
// channel instead of a per-topic one.
type wsHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	stopCh  chan struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan throttle.Metrics
}

func newWSHub() *wsHub {
	return &wsHub{
		clients: make(map[*wsClient]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// run is a no-op background loop kept for symmetry with Takhin's hub
// goroutine; broadcastMetrics is called directly from the sampler's
// observer callback rather than through a channel, since metrics samples
// are already serialized: the sampler's single goroutine delivers them
// one at a time.
func (h *wsHub) run() {
	<-h.stopCh
}

func (h *wsHub) stop() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		_ = c.conn.Close()
	}
	close(h.stopCh)
}

func (h *wsHub) broadcastMetrics(m throttle.Metrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
			// Slow consumer: drop the sample rather than block the
			// sampler's own tick-aligned goroutine.
		}
	}
}

func (h *wsHub) serveWS(w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan throttle.Metrics, 16)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	go client.readPump()
	client.writePump()
}

// readPump drains and discards client frames, solely so the library's
// ping/pong and close-frame handling keeps running; this endpoint takes
// no input from the client.
func (c *wsClient) readPump() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			payload, err := json.Marshal(m)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
