package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
)

func startWS(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	s := &Server{Hub: h}
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// nextMessages reads one frame and splits coalesced messages.
func nextMessages(t *testing.T, conn *websocket.Conn) [][]byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	return bytes.Split(raw, []byte{'\n'})
}

func nextEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(nextMessages(t, conn)[0], &env))
	return env
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestWS_SymbolFilterFromQuery(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, startWS(t, h), "?symbols=aapl")
	waitClients(t, h, 1)

	h.BroadcastReport(&model.Report{Symbol: "MSFT"})
	h.BroadcastReport(&model.Report{Symbol: "AAPL", Price: 190})

	env := nextEnvelope(t, conn)
	assert.Equal(t, "report:AAPL", env.Channel)
	var rep model.Report
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 190.0, rep.Price)
}

func TestWS_InitialState(t *testing.T) {
	h := NewHub(nil)
	h.BroadcastReport(&model.Report{Symbol: "AAPL", Price: 190})

	conn := dial(t, startWS(t, h), "")
	env := nextEnvelope(t, conn)
	assert.Equal(t, "report:AAPL", env.Channel)
	assert.Equal(t, int64(1), env.ChannelSeq)
}

func TestWS_InitialStateSkipsOlderThanLastTS(t *testing.T) {
	h := NewHub(nil)
	h.BroadcastReport(&model.Report{Symbol: "AAPL"})

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano)
	conn := dial(t, startWS(t, h), "?last_ts="+future)
	waitClients(t, h, 1)

	h.BroadcastReport(&model.Report{Symbol: "MSFT"})
	env := nextEnvelope(t, conn)
	assert.Equal(t, "report:MSFT", env.Channel)
}

func TestWS_SubscribeMessage(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, startWS(t, h), "")
	waitClients(t, h, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "SUBSCRIBE", "symbols": []string{"msft"}}))
	var ack struct {
		Type    string   `json:"type"`
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(nextMessages(t, conn)[0], &ack))
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, []string{"MSFT"}, ack.Symbols)

	h.BroadcastReport(&model.Report{Symbol: "AAPL"})
	h.BroadcastReport(&model.Report{Symbol: "MSFT"})
	assert.Equal(t, "report:MSFT", nextEnvelope(t, conn).Channel)
}

func TestWS_SubscribeWithoutSymbols(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, startWS(t, h), "")
	waitClients(t, h, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "SUBSCRIBE"}))
	var reply map[string]any
	require.NoError(t, json.Unmarshal(nextMessages(t, conn)[0], &reply))
	assert.Equal(t, "error", reply["type"])
}

func TestWS_Ping(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, startWS(t, h), "")
	waitClients(t, h, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"ping": 123}))
	var pong struct {
		Type     string `json:"type"`
		Ping     int64  `json:"ping"`
		ServerTS int64  `json:"server_ts"`
	}
	require.NoError(t, json.Unmarshal(nextMessages(t, conn)[0], &pong))
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, int64(123), pong.Ping)
	assert.Positive(t, pong.ServerTS)
}

func TestWS_DisconnectUpdatesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHub(metrics.NewMetrics(reg))
	conn := dial(t, startWS(t, h), "")
	waitClients(t, h, 1)
	assert.Contains(t, scrape(t, reg), "analyzer_ws_clients 1")

	conn.Close()
	waitClients(t, h, 0)
	assert.Contains(t, scrape(t, reg), "analyzer_ws_clients 0")
}

func TestHub_Shutdown(t *testing.T) {
	h := NewHub(nil)
	srv := startWS(t, h)
	dial(t, srv, "")
	dial(t, srv, "?symbols=AAPL")
	waitClients(t, h, 2)

	h.Shutdown()
	waitClients(t, h, 0)
}

type chanSubscriber struct {
	reports []*model.Report
}

func (c chanSubscriber) Subscribe(ctx context.Context, out chan<- *model.Report) error {
	for _, r := range c.reports {
		out <- r
	}
	<-ctx.Done()
	return nil
}

func TestHub_Relay(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Relay(ctx, chanSubscriber{reports: []*model.Report{{Symbol: "AAPL"}, {Symbol: "AAPL"}}})
		close(done)
	}()

	require.Eventually(t, func() bool { return h.ChannelSeq("AAPL") == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

// flakySubscriber fails its first failures calls, then delivers one report
// per call and ends the subscription.
type flakySubscriber struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (f *flakySubscriber) Subscribe(ctx context.Context, out chan<- *model.Report) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n <= f.failures {
		return errors.New("psubscribe: connection refused")
	}
	select {
	case out <- &model.Report{Symbol: "MSFT"}:
	case <-ctx.Done():
	}
	return nil
}

func TestHub_RelayResubscribesAfterFailure(t *testing.T) {
	retry, maxDelay := relayRetryDelay, relayMaxDelay
	relayRetryDelay, relayMaxDelay = time.Millisecond, 4*time.Millisecond
	t.Cleanup(func() { relayRetryDelay, relayMaxDelay = retry, maxDelay })

	h := NewHub(nil)
	sub := &flakySubscriber{failures: 3}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Relay(ctx, sub)
		close(done)
	}()

	// three failed attempts, then two subscriptions that each deliver and end
	require.Eventually(t, func() bool { return h.ChannelSeq("MSFT") >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
	sub.mu.Lock()
	assert.GreaterOrEqual(t, sub.calls, 5)
	sub.mu.Unlock()
}

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}
