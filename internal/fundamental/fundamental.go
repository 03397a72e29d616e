// Package fundamental turns raw company data into a descriptive summary:
// profile, valuation and health ratios placed in interpretation bands, recent
// headlines, an analyst consensus and the next earnings date.
//
// The functions here are pure; Service does the fetching and caching.
package fundamental

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"stock-analyzer/internal/marketdata/fmp"
	"stock-analyzer/internal/model"
)

// NotAvailable is the band of a missing or meaningless ratio.
const NotAvailable = "N/A"

const (
	descriptionLen = 200
	maxArticles    = 5
	gradesCounted  = 5
	gradesShown    = 3
)

// Data is everything fetched for one symbol. Nil fields were unavailable.
type Data struct {
	Profile  *fmp.Profile
	Metrics  *fmp.KeyMetrics
	News     []fmp.NewsItem
	Grades   []fmp.Grade
	Earnings *fmp.EarningsEvent
}

// Summarize builds every section of the summary from d.
func Summarize(symbol string, d Data) model.Fundamentals {
	return model.Fundamentals{
		Symbol:   symbol,
		Profile:  ProfileOf(d.Profile),
		Metrics:  MetricsOf(d.Metrics),
		News:     NewsOf(d.News),
		Ratings:  RatingsOf(d.Grades),
		Earnings: EarningsOf(d.Earnings),
	}
}

// ProfileOf copies the descriptive fields and formats the market cap.
func ProfileOf(p *fmp.Profile) *model.CompanyProfile {
	if p == nil {
		return nil
	}
	return &model.CompanyProfile{
		CompanyName:  p.CompanyName,
		Sector:       p.Sector,
		Industry:     p.Industry,
		MarketCap:    p.MktCap,
		MarketCapFmt: FormatMarketCap(p.MktCap),
		Description:  truncate(p.Description, descriptionLen),
		CEO:          p.CEO,
		Website:      p.Website,
		Exchange:     p.ExchangeShortName,
		Country:      p.Country,
		Employees:    string(p.FullTimeEmployees),
	}
}

// MetricsOf places each ratio in its band. A zero or missing ratio is null.
func MetricsOf(m *fmp.KeyMetrics) *model.KeyMetrics {
	if m == nil {
		return nil
	}
	return &model.KeyMetrics{
		PE:            ratio(m.PERatio, 1),
		PEBand:        PEBand(m.PERatio),
		PB:            ratio(m.PBRatio, 1),
		PBBand:        PBBand(m.PBRatio),
		ROE:           ratio(m.ROE, 100),
		ROEBand:       ROEBand(m.ROE),
		ROA:           ratio(m.ROA, 100),
		DebtToEquity:  ratio(m.DebtToEquity, 1),
		DebtBand:      DebtBand(m.DebtToEquity),
		CurrentRatio:  ratio(m.CurrentRatio, 1),
		LiquidityBand: LiquidityBand(m.CurrentRatio),
	}
}

func ratio(x *float64, scale float64) model.Value {
	if x == nil || *x == 0 {
		return model.Null
	}
	return model.Some(*x * scale)
}

// PEBand: below 15 undervalued, below 25 fair, else overvalued.
// Non-positive earnings have no meaningful P/E.
func PEBand(pe *float64) string {
	switch {
	case pe == nil || *pe <= 0:
		return NotAvailable
	case *pe < 15:
		return "Undervalued"
	case *pe < 25:
		return "Fair Value"
	default:
		return "Overvalued"
	}
}

// PBBand: below 1 undervalued, below 3 fair, else overvalued.
func PBBand(pb *float64) string {
	switch {
	case pb == nil || *pb <= 0:
		return NotAvailable
	case *pb < 1:
		return "Undervalued"
	case *pb < 3:
		return "Fair Value"
	default:
		return "Overvalued"
	}
}

// ROEBand takes ROE as a fraction: above 20% excellent, 15% good, 10% average.
func ROEBand(roe *float64) string {
	if roe == nil || *roe == 0 {
		return NotAvailable
	}
	switch pct := *roe * 100; {
	case pct > 20:
		return "Excellent"
	case pct > 15:
		return "Good"
	case pct > 10:
		return "Average"
	default:
		return "Poor"
	}
}

// DebtBand: debt/equity below 0.5 low, below 1.5 moderate, else high.
func DebtBand(de *float64) string {
	switch {
	case de == nil || *de == 0:
		return NotAvailable
	case *de < 0.5:
		return "Low Debt"
	case *de < 1.5:
		return "Moderate Debt"
	default:
		return "High Debt"
	}
}

// LiquidityBand: current ratio above 2 strong, above 1 adequate, else weak.
func LiquidityBand(cr *float64) string {
	switch {
	case cr == nil || *cr == 0:
		return NotAvailable
	case *cr > 2:
		return "Strong Liquidity"
	case *cr > 1:
		return "Adequate Liquidity"
	default:
		return "Weak Liquidity"
	}
}

// NewsOf keeps the newest headlines. Input is newest first.
func NewsOf(items []fmp.NewsItem) *model.NewsDigest {
	if len(items) == 0 {
		return nil
	}
	n := min(len(items), maxArticles)
	d := &model.NewsDigest{
		Count:    len(items),
		Latest:   items[0].PublishedDate,
		Articles: make([]model.Article, n),
	}
	for i, it := range items[:n] {
		d.Articles[i] = model.Article{Title: it.Title, Published: it.PublishedDate, Site: it.Site, URL: it.URL}
	}
	return d
}

// GradeSide maps a rating label onto buy, hold or sell. Unrecognised labels
// return "".
func GradeSide(grade string) string {
	g := strings.ToLower(grade)
	switch {
	case strings.Contains(g, "underperform"), strings.Contains(g, "underweight"), strings.Contains(g, "sell"):
		return "sell"
	case strings.Contains(g, "buy"), strings.Contains(g, "outperform"), strings.Contains(g, "overweight"):
		return "buy"
	case strings.Contains(g, "hold"), strings.Contains(g, "neutral"),
		strings.Contains(g, "perform"), strings.Contains(g, "equal"):
		return "hold"
	}
	return ""
}

// RatingsOf tallies the most recent actions into a consensus. It returns
// nil when none of them is recognised.
func RatingsOf(grades []fmp.Grade) *model.AnalystRatings {
	counted := grades[:min(len(grades), gradesCounted)]
	r := &model.AnalystRatings{Recent: []model.Grade{}}
	for _, g := range counted {
		switch GradeSide(g.NewGrade) {
		case "buy":
			r.Buy++
		case "hold":
			r.Hold++
		case "sell":
			r.Sell++
		}
	}
	r.Total = r.Buy + r.Hold + r.Sell
	if r.Total == 0 {
		return nil
	}
	for _, g := range counted[:min(len(counted), gradesShown)] {
		r.Recent = append(r.Recent, model.Grade{
			Date: g.Date, Company: g.GradingCompany, Previous: g.PreviousGrade, New: g.NewGrade,
		})
	}

	buy, sell := float64(r.Buy)/float64(r.Total), float64(r.Sell)/float64(r.Total)
	switch {
	case buy > 0.6:
		r.Consensus = "Strong Buy"
	case buy > 0.4:
		r.Consensus = "Buy"
	case sell > 0.6:
		r.Consensus = "Strong Sell"
	case sell > 0.4:
		r.Consensus = "Sell"
	default:
		r.Consensus = "Hold"
	}
	r.BuyPct = float64(int(buy*1000+0.5)) / 10
	return r
}

// EarningsOf copies the next release date and estimates.
func EarningsOf(e *fmp.EarningsEvent) *model.EarningsPreview {
	if e == nil {
		return nil
	}
	out := &model.EarningsPreview{Date: e.Date}
	if e.EPSEstimated != nil {
		out.EPSEstimated = model.Some(*e.EPSEstimated)
	}
	if e.RevenueEstimated != nil {
		out.RevenueEstimated = model.Some(*e.RevenueEstimated)
	}
	return out
}

// FormatMarketCap renders a capitalisation as $1.23T, $4.56B or $7.89M.
func FormatMarketCap(c float64) string {
	switch {
	case c >= 1e12:
		return fmt.Sprintf("$%.2fT", c/1e12)
	case c >= 1e9:
		return fmt.Sprintf("$%.2fB", c/1e9)
	case c >= 1e6:
		return fmt.Sprintf("$%.2fM", c/1e6)
	default:
		return fmt.Sprintf("$%.0f", c)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
