package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/model"
)

// envelope is the parsed WS message structure.
type envelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
}

func TestBuildEnvelope(t *testing.T) {
	data := []byte(`{"symbol":"AAPL","price":190.5,"signals":[{"rule":"trend"}]}`)
	now := time.Date(2026, 2, 25, 21, 0, 1, 0, time.UTC)

	buf := buildEnvelope("report:AAPL", data, now, 42, 7)

	var env envelope
	require.NoError(t, json.Unmarshal(buf, &env), "raw: %s", buf)
	assert.Equal(t, "report:AAPL", env.Channel)
	assert.Equal(t, int64(42), env.Seq)
	assert.Equal(t, int64(7), env.ChannelSeq)
	assert.JSONEq(t, string(data), string(env.Data))

	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestReportChannel(t *testing.T) {
	assert.Equal(t, "report:RELIANCE.NS", ReportChannel("reliance.ns"))
	assert.Equal(t, "RELIANCE.NS", symbolOf(ReportChannel("RELIANCE.NS")))
}

func TestBroadcastReport_Sequences(t *testing.T) {
	h := NewHub(nil)
	h.BroadcastReport(&model.Report{Symbol: "AAPL"})
	h.BroadcastReport(&model.Report{Symbol: "MSFT"})
	h.BroadcastReport(&model.Report{Symbol: "AAPL", Price: 2})
	h.BroadcastReport(nil)

	assert.Equal(t, int64(2), h.ChannelSeq("AAPL"))
	assert.Equal(t, int64(1), h.ChannelSeq("MSFT"))
	assert.Equal(t, int64(0), h.ChannelSeq("GOOG"))

	raw, ok := h.LatestEnvelope("AAPL")
	require.True(t, ok)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, int64(3), env.Seq, "global seq spans channels")
	assert.Equal(t, int64(2), env.ChannelSeq)

	var rep model.Report
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 2.0, rep.Price)

	_, ok = h.LatestEnvelope("GOOG")
	assert.False(t, ok)
}
