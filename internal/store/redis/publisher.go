package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"stock-analyzer/internal/model"
)

const (
	latestReportTTL   = 24 * time.Hour
	defaultMaxPending = 1000
)

// ReportChannel is the pub/sub channel a symbol's reports are published on.
func ReportChannel(symbol string) string { return "pub:report:" + symbol }

// ReportChannelPattern matches every report channel.
const ReportChannelPattern = "pub:report:*"

func latestKey(symbol string) string { return keyPrefix + "report:latest:" + symbol }

// Publisher stores each report as the symbol's latest and publishes it on
// ReportChannel. While the circuit is open reports are buffered locally and
// replayed once it closes.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker

	mu      sync.Mutex
	pending []*model.Report
	maxBuf  int

	// OnFlush is called after buffered reports are replayed (optional).
	OnFlush func(count int)
}

// NewPublisher creates a Publisher and hooks flush-on-close into cb.
func NewPublisher(client *goredis.Client, cb *CircuitBreaker, maxPending int) *Publisher {
	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}
	p := &Publisher{client: client, cb: cb, maxBuf: maxPending}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go p.flush(context.Background())
		}
	}
	return p
}

// PublishReport implements model.ReportPublisher. A report buffered while
// the circuit is open is not an error.
func (p *Publisher) PublishReport(ctx context.Context, r *model.Report) error {
	err := p.cb.Execute(func() error { return p.send(ctx, r) })
	if errors.Is(err, ErrCircuitOpen) {
		p.buffer(r)
		return nil
	}
	return err
}

func (p *Publisher) send(ctx context.Context, r *model.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, latestKey(r.Symbol), data, latestReportTTL)
	pipe.Publish(ctx, ReportChannel(r.Symbol), data)
	_, err = pipe.Exec(ctx)
	return err
}

// LatestReport implements model.ReportReader from the latest-report key.
func (p *Publisher) LatestReport(ctx context.Context, symbol string) (*model.Report, error) {
	var raw []byte
	err := p.cb.Execute(func() error {
		b, err := p.client.Get(ctx, latestKey(symbol)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if err != nil || raw == nil {
		return nil, err
	}
	var r model.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode latest report %s: %w", symbol, err)
	}
	return &r, nil
}

// Subscribe listens for reports on every symbol channel until ctx ends.
func (p *Publisher) Subscribe(ctx context.Context, out chan<- *model.Report) error {
	sub := p.client.PSubscribe(ctx, ReportChannelPattern)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", ReportChannelPattern, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var r model.Report
			if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
				log.Printf("[redis] bad report on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- &r:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *Publisher) buffer(r *model.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) >= p.maxBuf {
		p.pending = p.pending[1:] // drop oldest
	}
	p.pending = append(p.pending, r)
}

// flush replays buffered reports. Only the newest report per symbol is sent.
func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	toFlush := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(toFlush) == 0 {
		return
	}

	latest := make(map[string]*model.Report, len(toFlush))
	order := make([]string, 0, len(toFlush))
	for _, r := range toFlush {
		if _, seen := latest[r.Symbol]; !seen {
			order = append(order, r.Symbol)
		}
		latest[r.Symbol] = r
	}

	flushed := 0
	for _, sym := range order {
		if err := p.send(ctx, latest[sym]); err != nil {
			log.Printf("[redis] flush report %s: %v", sym, err)
			continue
		}
		flushed++
	}
	log.Printf("[redis] flushed %d buffered reports", flushed)
	if p.OnFlush != nil {
		p.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered reports.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
