package model

import "time"

// Fundamentals is the company-level summary shown next to a Report.
// A nil section means its data was unavailable.
type Fundamentals struct {
	Symbol      string           `json:"symbol"`
	GeneratedAt time.Time        `json:"generated_at"`
	Profile     *CompanyProfile  `json:"profile"`
	Metrics     *KeyMetrics      `json:"metrics"`
	News        *NewsDigest      `json:"news"`
	Ratings     *AnalystRatings  `json:"ratings"`
	Earnings    *EarningsPreview `json:"earnings"`
}

// Empty reports whether no section is available.
func (f *Fundamentals) Empty() bool {
	return f.Profile == nil && f.Metrics == nil && f.News == nil && f.Ratings == nil && f.Earnings == nil
}

// CompanyProfile describes the issuer.
type CompanyProfile struct {
	CompanyName  string  `json:"company_name"`
	Sector       string  `json:"sector,omitempty"`
	Industry     string  `json:"industry,omitempty"`
	MarketCap    float64 `json:"market_cap"`
	MarketCapFmt string  `json:"market_cap_formatted"`
	Description  string  `json:"description,omitempty"` // first 200 characters
	CEO          string  `json:"ceo,omitempty"`
	Website      string  `json:"website,omitempty"`
	Exchange     string  `json:"exchange,omitempty"`
	Country      string  `json:"country,omitempty"`
	Employees    string  `json:"employees,omitempty"`
}

// KeyMetrics are the latest ratios with their interpretation bands.
// ROE and ROA are percentages.
type KeyMetrics struct {
	PE            Value  `json:"pe_ratio"`
	PEBand        string `json:"pe_interpretation"`
	PB            Value  `json:"pb_ratio"`
	PBBand        string `json:"pb_interpretation"`
	ROE           Value  `json:"roe"`
	ROEBand       string `json:"roe_interpretation"`
	ROA           Value  `json:"roa"`
	DebtToEquity  Value  `json:"debt_to_equity"`
	DebtBand      string `json:"debt_interpretation"`
	CurrentRatio  Value  `json:"current_ratio"`
	LiquidityBand string `json:"liquidity_interpretation"`
}

// Article is one news headline.
type Article struct {
	Title     string `json:"title"`
	Published string `json:"published_date"`
	Site      string `json:"site,omitempty"`
	URL       string `json:"url,omitempty"`
}

// NewsDigest holds the most recent headlines.
type NewsDigest struct {
	Count    int       `json:"count"`
	Latest   string    `json:"latest_date"`
	Articles []Article `json:"articles"`
}

// Grade is one analyst rating action.
type Grade struct {
	Date     string `json:"date"`
	Company  string `json:"company"`
	Previous string `json:"previous_grade,omitempty"`
	New      string `json:"new_grade"`
}

// AnalystRatings tallies recent rating actions into a consensus.
type AnalystRatings struct {
	Buy       int     `json:"buy"`
	Hold      int     `json:"hold"`
	Sell      int     `json:"sell"`
	Total     int     `json:"total"`
	Consensus string  `json:"consensus"`
	BuyPct    float64 `json:"buy_percentage"`
	Recent    []Grade `json:"recent_ratings"`
}

// EarningsPreview is the next scheduled earnings release.
type EarningsPreview struct {
	Date             string `json:"date"`
	EPSEstimated     Value  `json:"eps_estimated"`
	RevenueEstimated Value  `json:"revenue_estimated"`
}
