package gateway

import (
	"strconv"
	"strings"
	"time"

	"stock-analyzer/internal/model"
)

const channelPrefix = "report:"

// ReportChannel names the WS channel carrying reports for symbol.
func ReportChannel(symbol string) string { return channelPrefix + strings.ToUpper(symbol) }

// symbolOf is the inverse of ReportChannel.
func symbolOf(channel string) string { return strings.TrimPrefix(channel, channelPrefix) }

// BroadcastReport sends r to every client subscribed to its symbol and
// records it as that symbol's latest state.
func (h *Hub) BroadcastReport(r *model.Report) {
	if r == nil {
		return
	}
	h.broadcast(ReportChannel(r.Symbol), r.JSON())
}

// broadcast wraps data in an envelope carrying a global seq and a
// per-channel seq for client-side gap detection.
func (h *Hub) broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	h.channelSeqs[channel]++
	channelSeq := h.channelSeqs[channel]
	h.seq++
	seq := h.seq

	buf := buildEnvelope(channel, data, now, seq, channelSeq)
	h.latest[channel] = latestEntry{Envelope: buf, TS: now}

	rb, ok := h.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(replaySize)
		h.replayBufs[channel] = rb
	}
	h.mu.Unlock()
	rb.Push(channelSeq, buf)

	symbol := symbolOf(channel)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(symbol) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}

// buildEnvelope hand-crafts {"channel":..,"data":..,"ts":..,"seq":..,"channel_seq":..}.
// data must already be valid JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}
