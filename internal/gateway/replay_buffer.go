package gateway

import "sync"

type replayEntry struct {
	seq  int64
	data []byte
}

// ReplayBuffer is a fixed-size ring of recent envelopes for one channel.
// Safe for concurrent use.
type ReplayBuffer struct {
	mu   sync.RWMutex
	buf  []replayEntry
	pos  int // next write position
	full bool
}

// NewReplayBuffer creates a replay buffer holding up to capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = replaySize
	}
	return &ReplayBuffer{buf: make([]replayEntry, capacity)}
}

// Push stores a copy of data under seq, evicting the oldest entry when full.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.buf[rb.pos] = replayEntry{seq: seq, data: cp}
	rb.pos = (rb.pos + 1) % len(rb.buf)
	if rb.pos == 0 {
		rb.full = true
	}
}

// Range returns envelopes with seq in [fromSeq, toSeq], oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out [][]byte
	n := rb.len()
	for i := 0; i < n; i++ {
		e := rb.buf[rb.index(i)]
		if e.seq >= fromSeq && e.seq <= toSeq {
			out = append(out, e.data)
		}
	}
	return out
}

// Len returns the number of buffered envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.len()
}

func (rb *ReplayBuffer) len() int {
	if rb.full {
		return len(rb.buf)
	}
	return rb.pos
}

// index converts a logical index (0 = oldest) to a physical one.
func (rb *ReplayBuffer) index(logical int) int {
	if rb.full {
		return (rb.pos + logical) % len(rb.buf)
	}
	return logical
}
