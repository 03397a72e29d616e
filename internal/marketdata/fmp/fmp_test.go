package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/marketdata"
)

func newTestClient(url string, retries int) *Client {
	return New(Options{APIKey: "k3y", BaseURL: url, Timeout: 2 * time.Second, Retries: retries, RetryWait: time.Millisecond})
}

// serve answers each path with a fixed JSON body.
func serve(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k3y", r.URL.Query().Get("apikey"))
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProfile(t *testing.T) {
	srv := serve(t, map[string]string{
		"/profile/AAPL": `[{"symbol":"AAPL","companyName":"Apple Inc.","sector":"Technology",
			"mktCap":2950000000000,"exchangeShortName":"NASDAQ","fullTimeEmployees":"161000"}]`,
		"/profile/MSFT": `[{"symbol":"MSFT","companyName":"Microsoft","fullTimeEmployees":221000}]`,
		"/profile/NONE": `[]`,
	})
	c := newTestClient(srv.URL, 0)
	ctx := context.Background()

	p, err := c.Profile(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", p.CompanyName)
	assert.Equal(t, 2.95e12, p.MktCap)
	assert.Equal(t, "NASDAQ", p.ExchangeShortName)
	assert.Equal(t, flexString("161000"), p.FullTimeEmployees)

	p, err = c.Profile(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, flexString("221000"), p.FullTimeEmployees, "numeric employees decode too")

	_, err = c.Profile(ctx, "NONE")
	assert.ErrorIs(t, err, marketdata.ErrNoDataFound)
}

func TestKeyMetrics_NullRatios(t *testing.T) {
	var limit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"symbol":"AAPL","date":"2023-09-30","peRatio":28.5,"pbRatio":null,"roe":1.56,"currentRatio":0.98}]`))
	}))
	defer srv.Close()

	m, err := newTestClient(srv.URL, 0).KeyMetrics(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "1", limit)
	require.NotNil(t, m.PERatio)
	assert.Equal(t, 28.5, *m.PERatio)
	assert.Nil(t, m.PBRatio)
	assert.Nil(t, m.DebtToEquity)
	assert.Equal(t, 1.56, *m.ROE)
}

func TestNewsAndGrades_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/stock_news":
			assert.Equal(t, "AAPL", q.Get("tickers"))
			assert.Equal(t, "5", q.Get("limit"))
			w.Write([]byte(`[{"symbol":"AAPL","publishedDate":"2024-03-08 16:00:00","title":"Apple ships","site":"x.com","url":"https://x.com/a"}]`))
		case "/grade/AAPL":
			assert.Equal(t, "10", q.Get("limit"))
			w.Write([]byte(`[{"symbol":"AAPL","date":"2024-03-01","gradingCompany":"Acme","previousGrade":"Hold","newGrade":"Buy"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := newTestClient(srv.URL, 0)

	news, err := c.News(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "Apple ships", news[0].Title)

	grades, err := c.Grades(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, "Buy", grades[0].NewGrade)
	assert.Equal(t, "Acme", grades[0].GradingCompany)
}

func TestEarnings_FiltersBySymbol(t *testing.T) {
	srv := serve(t, map[string]string{
		"/earnings-calendar": `[
			{"symbol":"MSFT","date":"2024-04-20","epsEstimated":2.8},
			{"symbol":"AAPL","date":"2024-05-02","epsEstimated":1.5,"revenueEstimated":null}
		]`,
	})
	c := newTestClient(srv.URL, 0)

	e, err := c.Earnings(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", e.Date)
	assert.Equal(t, 1.5, *e.EPSEstimated)
	assert.Nil(t, e.RevenueEstimated)

	_, err = c.Earnings(context.Background(), "TSLA")
	assert.ErrorIs(t, err, marketdata.ErrNoDataFound)
}

func TestGet_Errors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/profile/AAPL":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"Error Message":"Invalid API KEY."}`))
		case "/profile/FLAKY":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := newTestClient(srv.URL, 2)
	ctx := context.Background()

	_, err := c.Profile(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Invalid API KEY.")
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")

	calls.Store(0)
	_, err = c.Profile(ctx, "FLAKY")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	_, err = c.Grades(ctx, "NOPE", 10)
	assert.ErrorIs(t, err, marketdata.ErrNoDataFound)
}
