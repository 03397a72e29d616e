package fundamental

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/marketdata/fmp"
	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
)

// Source is the fundamentals provider, e.g. *fmp.Client.
type Source interface {
	Profile(ctx context.Context, symbol string) (*fmp.Profile, error)
	KeyMetrics(ctx context.Context, symbol string) (*fmp.KeyMetrics, error)
	News(ctx context.Context, symbol string, limit int) ([]fmp.NewsItem, error)
	Grades(ctx context.Context, symbol string, limit int) ([]fmp.Grade, error)
	Earnings(ctx context.Context, symbol string) (*fmp.EarningsEvent, error)
}

const (
	newsFetched   = 5
	gradesFetched = 10
)

// Service fetches every section concurrently and caches the summary per
// symbol. A failed section is left out; only a symbol with no section at
// all is an error.
type Service struct {
	src     Source
	cache   *gocache.Cache
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService wraps src. m may be nil.
func NewService(src Source, ttl time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		src:     src,
		cache:   gocache.New(ttl, 2*ttl),
		metrics: m,
		now:     time.Now,
	}
}

// Fundamentals returns the summary for symbol.
func (s *Service) Fundamentals(ctx context.Context, symbol string) (*model.Fundamentals, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if v, ok := s.cache.Get(symbol); ok {
		return v.(*model.Fundamentals), nil
	}

	start := s.now()
	d, errs := s.fetch(ctx, symbol)
	if s.metrics != nil {
		s.metrics.FetchDur.WithLabelValues("fmp").Observe(s.now().Sub(start).Seconds())
	}

	f := Summarize(symbol, d)
	f.GeneratedAt = s.now().UTC()
	if f.Empty() {
		if err := errors.Join(errs...); err != nil {
			if s.metrics != nil {
				s.metrics.FetchErrors.WithLabelValues("fmp").Inc()
			}
			return nil, fmt.Errorf("fundamentals %s: %w", symbol, err)
		}
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, marketdata.ErrNoDataFound)
	}
	s.cache.Set(symbol, &f, gocache.DefaultExpiration)
	return &f, nil
}

func (s *Service) fetch(ctx context.Context, symbol string) (Data, []error) {
	var (
		d    Data
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	run := func(section string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn()
			if err == nil || errors.Is(err, marketdata.ErrNoDataFound) {
				return
			}
			log.Printf("[fundamental] %s %s: %v", symbol, section, err)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}

	// each goroutine writes its own field of d
	run("profile", func() (err error) { d.Profile, err = s.src.Profile(ctx, symbol); return })
	run("metrics", func() (err error) { d.Metrics, err = s.src.KeyMetrics(ctx, symbol); return })
	run("news", func() (err error) { d.News, err = s.src.News(ctx, symbol, newsFetched); return })
	run("grades", func() (err error) { d.Grades, err = s.src.Grades(ctx, symbol, gradesFetched); return })
	run("earnings", func() (err error) { d.Earnings, err = s.src.Earnings(ctx, symbol); return })
	wg.Wait()
	return d, errs
}
