package fundamental

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/marketdata/fmp"
	"stock-analyzer/internal/metrics"
)

// fakeSource answers from fixed values; a non-nil err field fails that section.
type fakeSource struct {
	calls atomic.Int32

	profile  *fmp.Profile
	metrics  *fmp.KeyMetrics
	news     []fmp.NewsItem
	grades   []fmp.Grade
	earnings *fmp.EarningsEvent

	profileErr, metricsErr, newsErr, gradesErr, earningsErr error
}

func (f *fakeSource) Profile(context.Context, string) (*fmp.Profile, error) {
	f.calls.Add(1)
	return f.profile, f.profileErr
}

func (f *fakeSource) KeyMetrics(context.Context, string) (*fmp.KeyMetrics, error) {
	return f.metrics, f.metricsErr
}

func (f *fakeSource) News(_ context.Context, _ string, limit int) ([]fmp.NewsItem, error) {
	return f.news, f.newsErr
}

func (f *fakeSource) Grades(_ context.Context, _ string, limit int) ([]fmp.Grade, error) {
	return f.grades, f.gradesErr
}

func (f *fakeSource) Earnings(context.Context, string) (*fmp.EarningsEvent, error) {
	return f.earnings, f.earningsErr
}

func fullSource() *fakeSource {
	pe := 22.0
	return &fakeSource{
		profile:  &fmp.Profile{Symbol: "AAPL", CompanyName: "Apple Inc.", MktCap: 2.9e12},
		metrics:  &fmp.KeyMetrics{PERatio: &pe},
		news:     []fmp.NewsItem{{Title: "headline", PublishedDate: "2024-03-08"}},
		grades:   []fmp.Grade{{NewGrade: "Buy"}, {NewGrade: "Hold"}},
		earnings: &fmp.EarningsEvent{Symbol: "AAPL", Date: "2024-05-02"},
	}
}

func TestService_Fundamentals(t *testing.T) {
	src := fullSource()
	svc := NewService(src, time.Minute, nil)

	got, err := svc.Fundamentals(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.False(t, got.GeneratedAt.IsZero())
	require.NotNil(t, got.Profile)
	assert.Equal(t, "$2.90T", got.Profile.MarketCapFmt)
	assert.Equal(t, "Fair Value", got.Metrics.PEBand)
	assert.Equal(t, 1, got.News.Count)
	assert.Equal(t, 2, got.Ratings.Total)
	assert.Equal(t, "2024-05-02", got.Earnings.Date)
}

func TestService_PartialFailure(t *testing.T) {
	src := fullSource()
	src.newsErr = errors.New("upstream timeout")
	src.gradesErr = marketdata.ErrNoDataFound
	src.earnings = nil
	src.earningsErr = marketdata.ErrNoDataFound

	got, err := NewService(src, time.Minute, nil).Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.NotNil(t, got.Profile)
	assert.NotNil(t, got.Metrics)
	assert.Nil(t, got.News)
	assert.Nil(t, got.Ratings)
	assert.Nil(t, got.Earnings)
}

func TestService_AllSectionsFail(t *testing.T) {
	reg := prometheus.NewRegistry()
	boom := errors.New("boom")
	src := &fakeSource{
		profileErr:  fmp.ErrUnauthorized,
		metricsErr:  boom,
		newsErr:     boom,
		gradesErr:   boom,
		earningsErr: boom,
	}

	_, err := NewService(src, time.Minute, metrics.NewMetrics(reg)).Fundamentals(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, fmp.ErrUnauthorized)
	assert.ErrorIs(t, err, boom)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `analyzer_fetch_errors_total{source="fmp"} 1`)
	assert.Contains(t, rec.Body.String(), `analyzer_fetch_duration_seconds_count{source="fmp"} 1`)
}

func TestService_UnknownSymbol(t *testing.T) {
	nf := marketdata.ErrNoDataFound
	src := &fakeSource{profileErr: nf, metricsErr: nf, gradesErr: nf, earningsErr: nf}

	_, err := NewService(src, time.Minute, nil).Fundamentals(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, marketdata.ErrNoDataFound)
}

func TestService_Caches(t *testing.T) {
	src := fullSource()
	svc := NewService(src, time.Minute, nil)

	first, err := svc.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	second, err := svc.Fundamentals(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())

	// failures are not cached
	bad := &fakeSource{profileErr: errors.New("down")}
	svc = NewService(bad, time.Minute, nil)
	_, err = svc.Fundamentals(context.Background(), "AAPL")
	require.Error(t, err)
	bad.profileErr = nil
	bad.profile = &fmp.Profile{CompanyName: "Apple Inc."}
	got, err := svc.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", got.Profile.CompanyName)
	assert.Equal(t, int32(2), bad.calls.Load())
}
