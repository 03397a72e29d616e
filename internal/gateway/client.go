package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendQueue  = 256
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Until the first subscription a client receives every symbol.
	subMu    sync.RWMutex
	subs     map[string]bool
	filtered bool
}

// controlMsg is what clients send: SUBSCRIBE/UNSUBSCRIBE with symbols, or
// a bare {"ping": n} for round-trip measurement.
type controlMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn, symbols []string) *Client {
	c := &Client{
		conn: conn,
		send: make(chan []byte, sendQueue),
		hub:  h,
		subs: make(map[string]bool),
	}
	for _, s := range symbols {
		if s = normSymbol(s); s != "" {
			c.subs[s] = true
			c.filtered = true
		}
	}
	return c
}

func normSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// wants reports whether reports for symbol should be delivered.
func (c *Client) wants(symbol string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return !c.filtered || c.subs[symbol]
}

// Subscriptions returns the subscribed symbols in no particular order.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for s := range c.subs {
		out = append(out, s)
	}
	return out
}

// sendInitialState queues the latest envelope of every channel the client
// wants, or only those in only when it is non-empty. Entries at or before
// since are skipped.
func (c *Client) sendInitialState(only []string, since time.Time) {
	filter := make(map[string]bool, len(only))
	for _, s := range only {
		filter[s] = true
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	for channel, entry := range c.hub.latest {
		symbol := symbolOf(channel)
		if len(filter) > 0 && !filter[symbol] {
			continue
		}
		if !c.wants(symbol) {
			continue
		}
		if !since.IsZero() && !entry.TS.After(since) {
			continue
		}
		select {
		case c.send <- entry.Envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
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

			// Coalesce queued envelopes into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		if json.Unmarshal(raw, &msg) != nil {
			c.sendJSON(map[string]any{"type": "error", "error": "invalid JSON"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg controlMsg) {
	switch strings.ToUpper(msg.Type) {
	case "SUBSCRIBE":
		added := c.subscribe(msg.Symbols)
		if len(added) == 0 {
			c.sendJSON(map[string]any{"type": "error", "error": "symbols are required"})
			return
		}
		c.sendJSON(map[string]any{"type": "subscribed", "symbols": c.Subscriptions()})
		c.sendInitialState(added, time.Time{})
	case "UNSUBSCRIBE":
		c.unsubscribe(msg.Symbols)
		c.sendJSON(map[string]any{"type": "unsubscribed", "symbols": c.Subscriptions()})
	default:
		if msg.Ping > 0 {
			c.sendJSON(map[string]any{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			return
		}
		c.sendJSON(map[string]any{"type": "error", "error": "unknown message type " + msg.Type})
	}
}

func (c *Client) subscribe(symbols []string) []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	var added []string
	for _, s := range symbols {
		if s = normSymbol(s); s != "" {
			c.subs[s] = true
			c.filtered = true
			added = append(added, s)
		}
	}
	return added
}

func (c *Client) unsubscribe(symbols []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, s := range symbols {
		delete(c.subs, normSymbol(s))
	}
}

// sendJSON queues a control reply. Dropped when the queue is full or the
// client is already gone.
func (c *Client) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}
