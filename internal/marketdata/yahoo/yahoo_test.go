package yahoo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/model"
)

// 2024-03-04 and 2024-03-05, 14:30 UTC (09:30 New York).
const chartOK = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","exchangeTimezoneName":"America/New_York"},
  "timestamp":[1709562600,1709649000,1709735400],
  "indicators":{"quote":[{
    "open":[175.1,176.2,null],
    "high":[176.0,177.5,null],
    "low":[174.0,175.0,null],
    "close":[175.5,177.0,null],
    "volume":[1000,2000,null]
  }]}
}],"error":null}}`

func newTestClient(url string, retries int) *Client {
	return New(Options{BaseURL: url, Timeout: 2 * time.Second, Retries: retries, RetryWait: time.Millisecond})
}

func TestFetch_ParsesChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "6mo", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartOK))
	}))
	defer srv.Close()

	s, err := newTestClient(srv.URL, 0).Fetch(context.Background(), model.FetchRequest{Symbol: "AAPL", Range: "6mo"})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", s.Symbol)
	require.Len(t, s.Points, 3)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), s.Points[0].TS)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), s.Points[1].TS)
	assert.Equal(t, 177.0, s.Points[1].Close)
	assert.Equal(t, int64(2000), s.Points[1].Volume)
	// null samples are kept as NaN for the validator to reject
	assert.True(t, math.IsNaN(s.Points[2].Close))
	assert.Zero(t, s.Points[2].Volume)
}

func TestFetch_PeriodWindow(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1704067200", q.Get("period1"))
		assert.Equal(t, "1709251200", q.Get("period2"))
		assert.Empty(t, q.Get("range"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartOK))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Fetch(context.Background(),
		model.FetchRequest{Symbol: "AAPL", Range: "1y", From: from, To: to})
	require.NoError(t, err)
}

func TestFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Fetch(context.Background(), model.FetchRequest{Symbol: "NOPE"})
	assert.True(t, errors.Is(err, marketdata.ErrNoDataFound), "got %v", err)
}

func TestFetch_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Fetch(context.Background(), model.FetchRequest{Symbol: "X"})
	assert.True(t, errors.Is(err, marketdata.ErrNoDataFound))
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartOK))
	}))
	defer srv.Close()

	s, err := newTestClient(srv.URL, 2).Fetch(context.Background(), model.FetchRequest{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Len(t, s.Points, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 1).Fetch(context.Background(), model.FetchRequest{Symbol: "AAPL"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, marketdata.ErrNoDataFound))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
