// Package fmp fetches company fundamentals from the Financial Modeling Prep
// v3 REST API.
package fmp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stock-analyzer/internal/marketdata"
)

// DefaultBaseURL is the v3 API root.
const DefaultBaseURL = "https://financialmodelingprep.com/api/v3"

// ErrUnauthorized is returned when the API key is missing or rejected.
var ErrUnauthorized = errors.New("fmp: api key rejected")

// Options configures a Client.
type Options struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
}

// Client calls the FMP endpoints used for fundamentals.
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
		SetRetryMaxWaitTime(4*opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetQueryParam("apikey", opts.APIKey).
		SetHeader("Accept", "application/json")

	return &Client{client: client}
}

// ── wire format ──

// Profile is one /profile entry.
type Profile struct {
	Symbol            string     `json:"symbol"`
	CompanyName       string     `json:"companyName"`
	Sector            string     `json:"sector"`
	Industry          string     `json:"industry"`
	MktCap            float64    `json:"mktCap"`
	Description       string     `json:"description"`
	CEO               string     `json:"ceo"`
	Website           string     `json:"website"`
	ExchangeShortName string     `json:"exchangeShortName"`
	Country           string     `json:"country"`
	FullTimeEmployees flexString `json:"fullTimeEmployees"`
}

// KeyMetrics is one /key-metrics period. Ratios are null when undefined.
type KeyMetrics struct {
	Symbol       string   `json:"symbol"`
	Date         string   `json:"date"`
	PERatio      *float64 `json:"peRatio"`
	PBRatio      *float64 `json:"pbRatio"`
	DebtToEquity *float64 `json:"debtToEquity"`
	ROE          *float64 `json:"roe"` // fraction, 0.25 = 25%
	ROA          *float64 `json:"roa"`
	CurrentRatio *float64 `json:"currentRatio"`
}

// NewsItem is one /stock_news article.
type NewsItem struct {
	Symbol        string `json:"symbol"`
	PublishedDate string `json:"publishedDate"`
	Title         string `json:"title"`
	Site          string `json:"site"`
	URL           string `json:"url"`
}

// Grade is one /grade rating action.
type Grade struct {
	Symbol         string `json:"symbol"`
	Date           string `json:"date"`
	GradingCompany string `json:"gradingCompany"`
	PreviousGrade  string `json:"previousGrade"`
	NewGrade       string `json:"newGrade"`
}

// EarningsEvent is one /earnings-calendar row.
type EarningsEvent struct {
	Symbol           string   `json:"symbol"`
	Date             string   `json:"date"`
	EPSEstimated     *float64 `json:"epsEstimated"`
	RevenueEstimated *float64 `json:"revenueEstimated"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

type apiError struct {
	Message string `json:"Error Message"`
}

// ── endpoints ──

// Profile returns the company profile, or marketdata.ErrNoDataFound.
func (c *Client) Profile(ctx context.Context, symbol string) (*Profile, error) {
	var out []Profile
	if err := c.get(ctx, "/profile/"+symbol, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fmp profile %s: %w", symbol, marketdata.ErrNoDataFound)
	}
	return &out[0], nil
}

// KeyMetrics returns the most recent reporting period.
func (c *Client) KeyMetrics(ctx context.Context, symbol string) (*KeyMetrics, error) {
	var out []KeyMetrics
	if err := c.get(ctx, "/key-metrics/"+symbol, map[string]string{"limit": "1"}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fmp key-metrics %s: %w", symbol, marketdata.ErrNoDataFound)
	}
	return &out[0], nil
}

// News returns up to limit recent articles, newest first.
func (c *Client) News(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	var out []NewsItem
	err := c.get(ctx, "/stock_news", map[string]string{
		"tickers": symbol,
		"limit":   strconv.Itoa(limit),
	}, &out)
	return out, err
}

// Grades returns up to limit recent rating actions, newest first.
func (c *Client) Grades(ctx context.Context, symbol string, limit int) ([]Grade, error) {
	var out []Grade
	err := c.get(ctx, "/grade/"+symbol, map[string]string{"limit": strconv.Itoa(limit)}, &out)
	return out, err
}

// Earnings returns the next scheduled release for symbol. The calendar
// endpoint may list other symbols, so rows are filtered.
func (c *Client) Earnings(ctx context.Context, symbol string) (*EarningsEvent, error) {
	var out []EarningsEvent
	if err := c.get(ctx, "/earnings-calendar", map[string]string{"symbol": symbol}, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if strings.EqualFold(out[i].Symbol, symbol) {
			return &out[i], nil
		}
	}
	return nil, fmt.Errorf("fmp earnings %s: %w", symbol, marketdata.ErrNoDataFound)
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("fmp %s: %w", path, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	case code == http.StatusNotFound:
		return fmt.Errorf("fmp %s: %w", path, marketdata.ErrNoDataFound)
	case !resp.IsSuccess():
		return fmt.Errorf("fmp %s: status %d %s", path, code, apiErr.Message)
	}
	return nil
}
