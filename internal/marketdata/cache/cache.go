// Package cache puts a two-tier cache in front of a market data source:
// an in-process map first, then an optional shared remote store.
package cache

import (
	"context"
	"log"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
)

// Remote is a shared series cache, e.g. Redis.
type Remote interface {
	GetSeries(ctx context.Context, key string) (model.PriceSeries, bool, error)
	SetSeries(ctx context.Context, key string, s model.PriceSeries, ttl time.Duration) error
}

// Source caches successful fetches of an upstream source for TTL.
// Failed fetches are never cached.
type Source struct {
	upstream marketdata.Source
	local    *gocache.Cache
	remote   Remote // optional
	ttl      time.Duration
	metrics  *metrics.Metrics
}

// New wraps upstream. remote and m may be nil.
func New(upstream marketdata.Source, remote Remote, ttl time.Duration, m *metrics.Metrics) *Source {
	return &Source{
		upstream: upstream,
		local:    gocache.New(ttl, 2*ttl),
		remote:   remote,
		ttl:      ttl,
		metrics:  m,
	}
}

// Key identifies a request. Windows are keyed by calendar date so requests
// planned at different times of the same day share an entry.
func Key(req model.FetchRequest) string {
	var b strings.Builder
	b.WriteString("series:")
	b.WriteString(strings.ToUpper(req.Symbol))
	b.WriteByte(':')
	if !req.From.IsZero() {
		b.WriteString(req.From.Format("20060102"))
		b.WriteByte('-')
		to := req.To
		if to.IsZero() {
			to = time.Now()
		}
		b.WriteString(to.Format("20060102"))
	} else {
		b.WriteString(req.Range)
	}
	return b.String()
}

// Fetch implements marketdata.Source.
func (s *Source) Fetch(ctx context.Context, req model.FetchRequest) (model.PriceSeries, error) {
	key := Key(req)

	if v, ok := s.local.Get(key); ok {
		s.hit("l1")
		return v.(model.PriceSeries).Clone(), nil
	}

	if s.remote != nil {
		series, ok, err := s.remote.GetSeries(ctx, key)
		switch {
		case err != nil:
			log.Printf("[cache] remote get %s: %v", key, err)
		case ok:
			s.hit("l2")
			s.local.Set(key, series.Clone(), gocache.DefaultExpiration)
			return series, nil
		}
	}

	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}
	series, err := s.upstream.Fetch(ctx, req)
	if err != nil {
		return model.PriceSeries{}, err
	}

	s.local.Set(key, series.Clone(), gocache.DefaultExpiration)
	if s.remote != nil {
		// the remote tier is shared and serialized; missing quotes stay local
		shared, _ := series.FiniteOnly()
		if err := s.remote.SetSeries(ctx, key, shared, s.ttl); err != nil {
			log.Printf("[cache] remote set %s: %v", key, err)
		}
	}
	return series, nil
}

// Invalidate drops a request from the local tier.
func (s *Source) Invalidate(req model.FetchRequest) {
	s.local.Delete(Key(req))
}

func (s *Source) hit(tier string) {
	if s.metrics != nil {
		s.metrics.CacheHits.WithLabelValues(tier).Inc()
	}
}
