// Package redis holds the Redis-backed collaborators: a shared series cache
// and the report publisher. Both go through a CircuitBreaker so a Redis
// outage degrades to local-only operation.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"stock-analyzer/internal/metrics"
)

const keyPrefix = "analyzer:"

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Connect creates a client and pings the server.
func Connect(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return client, nil
}

// NewBreaker returns the breaker shared by the cache and publisher, reporting
// its state to m when m is non-nil.
func NewBreaker(m *metrics.Metrics) *CircuitBreaker {
	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit %s -> %s", from, to)
		if m == nil {
			return
		}
		m.RedisCircuitBreakerState.Set(float64(to))
		if to == StateOpen {
			m.RedisCircuitBreakerTrips.Inc()
		}
	}
	return cb
}
