package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"stock-analyzer/internal/model"
)

// SeriesCache stores price series as JSON strings with a TTL.
// It implements cache.Remote.
type SeriesCache struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

// NewSeriesCache creates a SeriesCache. cb may be shared with a Publisher.
func NewSeriesCache(client *goredis.Client, cb *CircuitBreaker) *SeriesCache {
	return &SeriesCache{client: client, cb: cb}
}

// GetSeries returns the cached series; ok is false on a miss.
func (c *SeriesCache) GetSeries(ctx context.Context, key string) (model.PriceSeries, bool, error) {
	var raw []byte
	err := c.cb.Execute(func() error {
		b, err := c.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil // a miss is not a failure
		}
		raw = b
		return err
	})
	if err != nil {
		return model.PriceSeries{}, false, err
	}
	if raw == nil {
		return model.PriceSeries{}, false, nil
	}

	var s model.PriceSeries
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.PriceSeries{}, false, fmt.Errorf("decode cached series %s: %w", key, err)
	}
	return s, true, nil
}

// SetSeries stores s under key for ttl. JSON has no NaN, so bars with a
// non-finite price are left out.
func (c *SeriesCache) SetSeries(ctx context.Context, key string, s model.PriceSeries, ttl time.Duration) error {
	s, _ = s.FiniteOnly()
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.cb.Execute(func() error {
		return c.client.Set(ctx, keyPrefix+key, data, ttl).Err()
	})
}
