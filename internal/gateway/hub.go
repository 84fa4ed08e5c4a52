// Package gateway exposes the analysis engine over REST and WebSocket.
// The hub fans analysis snapshots out to connected WS clients; snapshots
// arrive over Redis pub/sub so every gateway instance sees scheduled runs.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"smc-enginev1/internal/metrics"
	"smc-enginev1/internal/store/redis"
)

// snapshotPattern matches every snapshot channel the engine publishes on.
const snapshotPattern = "pub:smc:*"

// Hub manages WebSocket clients and snapshot fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry // channel key -> last snapshot

	metrics *metrics.Metrics
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
}

// NewHub creates a hub. The metrics handle may be nil in tests.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		metrics: m,
	}
}

// HandleWSRequest registers an upgraded connection and starts its pumps.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters a client and closes its send channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	close(c.send)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast wraps a snapshot in an envelope and pushes it to every client.
// Slow clients are skipped rather than stalling the fan-out.
func (h *Hub) Broadcast(pair, timeframe string, payload []byte) {
	channel := pair + ":" + timeframe
	now := time.Now().UTC()
	envelope, _ := json.Marshal(map[string]any{
		"channel": channel,
		"data":    json.RawMessage(payload),
		"ts":      now.Format(time.RFC3339Nano),
	})

	h.mu.Lock()
	h.latest[channel] = latestEntry{Data: json.RawMessage(payload), TS: now}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
			if h.metrics != nil {
				h.metrics.WSDroppedPushes.Inc()
			}
		}
	}
}

// Latest returns the last snapshot seen per channel.
func (h *Hub) Latest() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// RunPubSub subscribes to the snapshot pattern and rebroadcasts everything
// that arrives. Blocks until ctx is cancelled.
func (h *Hub) RunPubSub(ctx context.Context, cache *redis.Cache) {
	sub := cache.Client().PSubscribe(ctx, snapshotPattern)
	defer sub.Close()

	log.Printf("[gateway] subscribed to %s", snapshotPattern)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			pair, timeframe, ok := splitSnapshotChannel(msg.Channel)
			if !ok {
				log.Printf("[gateway] unparseable snapshot channel %q", msg.Channel)
				continue
			}
			h.Broadcast(pair, timeframe, []byte(msg.Payload))
		}
	}
}

// splitSnapshotChannel parses "pub:smc:<pair>:<timeframe>". The pair may
// itself contain "/" but never ":".
func splitSnapshotChannel(channel string) (pair, timeframe string, ok bool) {
	rest, found := strings.CutPrefix(channel, "pub:smc:")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
