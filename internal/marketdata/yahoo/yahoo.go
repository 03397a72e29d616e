// Package yahoo fetches daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-resty/resty/v2"

	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/model"
)

// DefaultBaseURL is the public chart host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Retries after the first attempt on transport errors and 5xx responses.
	Retries int
	// RetryWait is the initial backoff between attempts.
	RetryWait time.Duration
}

// Client is a marketdata.Source backed by the chart API.
type Client struct {
	client *resty.Client
}

// New creates a Client. Zero option fields take defaults.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4 * opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		})

	return &Client{client: client}
}

// Fetch implements marketdata.Source. From/To take precedence over Range;
// with neither set the range defaults to one year.
func (c *Client) Fetch(ctx context.Context, req model.FetchRequest) (model.PriceSeries, error) {
	params := map[string]string{
		"interval": "1d",
		"events":   "div,splits",
	}
	switch {
	case !req.From.IsZero():
		to := req.To
		if to.IsZero() {
			to = time.Now()
		}
		params["period1"] = strconv.FormatInt(req.From.Unix(), 10)
		params["period2"] = strconv.FormatInt(to.Unix(), 10)
	case req.Range != "":
		params["range"] = req.Range
	default:
		params["range"] = "1y"
	}

	var chart chartResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", req.Symbol).
		SetQueryParams(params).
		SetResult(&chart).
		SetError(&chart).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w", req.Symbol, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w", req.Symbol, marketdata.ErrNoDataFound)
	}
	if !resp.IsSuccess() {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: status %d", req.Symbol, resp.StatusCode())
	}
	if chart.Chart.Error != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %s: %w",
			req.Symbol, chart.Chart.Error.Description, marketdata.ErrNoDataFound)
	}
	return chart.series(req.Symbol)
}

// ── wire format ──

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol           string `json:"symbol"`
		ExchangeTimezone string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quote `json:"quote"`
	} `json:"indicators"`
}

// Individual samples are null on halted sessions.
type quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// series converts the chart payload. Null prices become NaN so the validator
// can report and drop them; bar timestamps are truncated to the session date
// in the exchange's time zone.
func (r *chartResponse) series(symbol string) (model.PriceSeries, error) {
	if len(r.Chart.Result) == 0 || len(r.Chart.Result[0].Timestamp) == 0 ||
		len(r.Chart.Result[0].Indicators.Quote) == 0 {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: empty chart: %w", symbol, marketdata.ErrNoDataFound)
	}
	res := r.Chart.Result[0]
	q := res.Indicators.Quote[0]

	loc := time.UTC
	if res.Meta.ExchangeTimezone != "" {
		if l, err := time.LoadLocation(res.Meta.ExchangeTimezone); err == nil {
			loc = l
		} else {
			log.Printf("[yahoo] unknown exchange timezone %q, using UTC", res.Meta.ExchangeTimezone)
		}
	}

	pts := make([]model.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		local := time.Unix(ts, 0).In(loc)
		pts = append(pts, model.PricePoint{
			TS:     time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   floatAt(q.Open, i),
			High:   floatAt(q.High, i),
			Low:    floatAt(q.Low, i),
			Close:  floatAt(q.Close, i),
			Volume: intAt(q.Volume, i),
		})
	}
	return model.PriceSeries{Symbol: symbol, Points: pts}, nil
}

func floatAt(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return math.NaN()
	}
	return *xs[i]
}

func intAt(xs []*int64, i int) int64 {
	if i >= len(xs) || xs[i] == nil {
		return 0
	}
	return *xs[i]
}
