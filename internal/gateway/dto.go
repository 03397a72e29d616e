package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"stock-analyzer/internal/indicator"
	"stock-analyzer/internal/marketdata"
)

// ErrorResponse is the body of every non-2xx REST reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AnalysisParams are the parsed query parameters of /api/v1/analysis.
type AnalysisParams struct {
	Symbol     string
	Range      string
	Config     indicator.Config
	Indicators bool // include full indicator series in the reply
}

// intParams maps query keys onto the config field they override.
var intParams = []struct {
	key string
	set func(*indicator.Config, int)
}{
	{"sma_short", func(c *indicator.Config, v int) { c.SMAShort = v }},
	{"sma_long", func(c *indicator.Config, v int) { c.SMALong = v }},
	{"rsi", func(c *indicator.Config, v int) { c.RSIPeriod = v }},
	{"macd_fast", func(c *indicator.Config, v int) { c.MACDFast = v }},
	{"macd_slow", func(c *indicator.Config, v int) { c.MACDSlow = v }},
	{"macd_signal", func(c *indicator.Config, v int) { c.MACDSignal = v }},
}

// ParseAnalysisParams reads q on top of defaults. Missing keys keep the
// default; malformed or out-of-range values are errors.
func ParseAnalysisParams(q url.Values, defaults indicator.Config, defaultRange string) (AnalysisParams, error) {
	p := AnalysisParams{
		Symbol:     normSymbol(q.Get("symbol")),
		Range:      strings.TrimSpace(q.Get("range")),
		Config:     defaults,
		Indicators: true,
	}
	if p.Symbol == "" {
		return p, fmt.Errorf("symbol is required")
	}
	if p.Range == "" {
		p.Range = defaultRange
	}
	if !marketdata.ValidRange(p.Range) {
		return p, fmt.Errorf("range %q not one of %s", p.Range, strings.Join(marketdata.Ranges, ", "))
	}
	for _, ip := range intParams {
		raw := q.Get(ip.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("%s=%q is not an integer", ip.key, raw)
		}
		ip.set(&p.Config, v)
	}
	if raw := q.Get("indicators"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("indicators=%q is not a boolean", raw)
		}
		p.Indicators = b
	}
	if err := p.Config.CheckRanges(); err != nil {
		return p, err
	}
	if err := p.Config.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
