package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/model"
)

type countingSource struct {
	calls int
	err   error
}

func (c *countingSource) Fetch(_ context.Context, req model.FetchRequest) (model.PriceSeries, error) {
	c.calls++
	if c.err != nil {
		return model.PriceSeries{}, c.err
	}
	return model.PriceSeries{Symbol: req.Symbol, Points: []model.PricePoint{{Close: 10}, {Close: 11}}}, nil
}

type mapRemote struct {
	mu   sync.Mutex
	data map[string]model.PriceSeries
	gets int
	err  error
}

func newMapRemote() *mapRemote { return &mapRemote{data: map[string]model.PriceSeries{}} }

func (m *mapRemote) GetSeries(_ context.Context, key string) (model.PriceSeries, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return model.PriceSeries{}, false, m.err
	}
	s, ok := m.data[key]
	return s, ok, nil
}

func (m *mapRemote) SetSeries(_ context.Context, key string, s model.PriceSeries, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = s
	return nil
}

var req = model.FetchRequest{Symbol: "AAPL", Range: "1y"}

func TestFetch_LocalHit(t *testing.T) {
	up := &countingSource{}
	c := New(up, nil, time.Minute, nil)

	s1, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	s1.Points[0].Close = 999 // caller mutation must not leak into the cache

	s2, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, 10.0, s2.Points[0].Close)
}

func TestFetch_RemoteTier(t *testing.T) {
	remote := newMapRemote()
	up := &countingSource{}

	first := New(up, remote, time.Minute, nil)
	_, err := first.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, remote.data, Key(req))

	// A fresh process sees the remote entry without calling upstream.
	second := New(up, remote, time.Minute, nil)
	s, err := second.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
	assert.Len(t, s.Points, 2)

	// and then serves it locally
	gets := remote.gets
	_, _ = second.Fetch(context.Background(), req)
	assert.Equal(t, gets, remote.gets)
}

func TestFetch_RemoteErrorFallsThrough(t *testing.T) {
	remote := newMapRemote()
	remote.err = errors.New("connection refused")
	up := &countingSource{}

	s, err := New(up, remote, time.Minute, nil).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", s.Symbol)
	assert.Equal(t, 1, up.calls)
}

func TestFetch_RemoteTierGetsFiniteBarsOnly(t *testing.T) {
	remote := newMapRemote()
	up := marketdata.SourceFunc(func(_ context.Context, req model.FetchRequest) (model.PriceSeries, error) {
		return model.PriceSeries{Symbol: req.Symbol, Points: []model.PricePoint{
			{Open: 10, High: 10, Low: 10, Close: 10},
			{Open: math.NaN(), High: math.NaN(), Low: math.NaN(), Close: math.NaN()},
			{Open: 11, High: 11, Low: 11, Close: 11},
		}}, nil
	})

	s, err := New(up, remote, time.Minute, nil).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, s.Points, 3, "the caller still sees the raw series")

	shared := remote.data[Key(req)]
	require.Len(t, shared.Points, 2)
	_, err = json.Marshal(shared)
	assert.NoError(t, err)
}

func TestFetch_ErrorsNotCached(t *testing.T) {
	up := &countingSource{err: marketdata.ErrNoDataFound}
	c := New(up, nil, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), req)
		assert.True(t, errors.Is(err, marketdata.ErrNoDataFound))
	}
	assert.Equal(t, 2, up.calls)
}

func TestKey(t *testing.T) {
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	morning := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)

	assert.Equal(t, "series:AAPL:1y", Key(model.FetchRequest{Symbol: "aapl", Range: "1y"}))
	assert.Equal(t, "series:AAPL:20240102-20240301", Key(model.FetchRequest{Symbol: "AAPL", From: from, To: morning}))
	assert.Equal(t,
		Key(model.FetchRequest{Symbol: "AAPL", From: from, To: morning}),
		Key(model.FetchRequest{Symbol: "AAPL", From: from, To: evening}))
}

func TestInvalidate(t *testing.T) {
	up := &countingSource{}
	c := New(up, nil, time.Minute, nil)
	_, _ = c.Fetch(context.Background(), req)
	c.Invalidate(req)
	_, _ = c.Fetch(context.Background(), req)
	assert.Equal(t, 2, up.calls)
}
