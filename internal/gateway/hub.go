package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stock-analyzer/internal/metrics"
)

// replaySize is the number of envelopes kept per channel for gap backfill.
const replaySize = 100

// Hub manages WebSocket clients and fans refreshed reports out to them.
// It keeps the latest envelope per channel so new clients start with a
// complete picture, and a replay buffer per channel for clients that
// detect a gap in channel_seq.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer

	metrics *metrics.Metrics // nil disables instrumentation
}

type latestEntry struct {
	Envelope []byte
	TS       time.Time
}

// NewHub creates an empty Hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		metrics:     m,
	}
}

// HandleConn registers an upgraded connection and starts its pumps.
// symbols restricts delivery (empty means every symbol); entries not newer
// than lastTS are skipped in the initial state.
func (h *Hub) HandleConn(conn *websocket.Conn, symbols []string, lastTS time.Time) *Client {
	client := newClient(h, conn, symbols)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.setClientGauge(count)

	log.Printf("[gateway] ws client connected (%d total)", count)

	client.sendInitialState(nil, lastTS)
	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient unregisters c and closes its send queue. Safe to call twice.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()
	h.setClientGauge(count)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client connection. The read pumps notice and
// unregister themselves.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}
}

// LatestEnvelope returns the last envelope broadcast for symbol.
func (h *Hub) LatestEnvelope(symbol string) (json.RawMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.latest[ReportChannel(symbol)]
	return e.Envelope, ok
}

// ReplayRange returns buffered envelopes for symbol with channel_seq in
// [fromSeq, toSeq].
func (h *Hub) ReplayRange(symbol string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replayBufs[ReportChannel(symbol)]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return rb.Range(fromSeq, toSeq)
}

// ChannelSeq returns the current sequence number for symbol's channel.
func (h *Hub) ChannelSeq(symbol string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[ReportChannel(symbol)]
}

func (h *Hub) setClientGauge(n int) {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}
