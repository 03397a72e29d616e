package model

import "encoding/json"

// Category is the colour-coded class of a signal.
type Category string

const (
	Bullish Category = "BULLISH"
	Bearish Category = "BEARISH"
	Neutral Category = "NEUTRAL"
)

// Rule identifies which classifier rule produced a signal.
type Rule string

const (
	RuleTrend        Rule = "TREND"        // SMA short/long crossover
	RuleMomentum     Rule = "MOMENTUM"     // RSI thresholds
	RuleConfirmation Rule = "CONFIRMATION" // MACD vs signal line
)

// Input is one named number that justified a signal.
type Input struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Signal is a classified indicator state with its rationale.
type Signal struct {
	Rule     Rule     `json:"rule"`
	Category Category `json:"category"`
	// Bias is set on Neutral trend signals to show which side the averages lean to.
	Bias    Category `json:"bias,omitempty"`
	Label   string   `json:"label"`   // e.g. "golden cross", "overbought"
	Message string   `json:"message"` // filled template
	Detail  string   `json:"detail,omitempty"`
	Inputs  []Input  `json:"inputs"`
}

// Input returns the named input value.
func (s Signal) Input(name string) (float64, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in.Value, true
		}
	}
	return 0, false
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Rating is the coarse label of an Outlook score.
type Rating string

const (
	RatingStrongBullish Rating = "STRONGLY BULLISH"
	RatingBullish       Rating = "BULLISH"
	RatingNeutral       Rating = "NEUTRAL"
	RatingBearish       Rating = "BEARISH"
	RatingStrongBearish Rating = "STRONGLY BEARISH"
)

// Outlook aggregates the individual readings into one descriptive score.
type Outlook struct {
	Score   int      `json:"score"`
	Rating  Rating   `json:"rating"`
	Reasons []string `json:"reasons"`
}

// TrendState describes where price sits relative to the two averages.
type TrendState string

const (
	TrendStrongUp   TrendState = "Strong Uptrend"
	TrendUp         TrendState = "Uptrend"
	TrendStrongDown TrendState = "Strong Downtrend"
	TrendDown       TrendState = "Downtrend"
	TrendSideways   TrendState = "Sideways"
	TrendUnknown    TrendState = "Unknown"
)
