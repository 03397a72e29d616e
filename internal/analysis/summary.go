package analysis

import (
	"math"
	"sort"

	"stock-analyzer/internal/model"
)

const (
	// StatsWindow is the session count behind the volume and volatility stats.
	StatsWindow = 20
	// LevelWindow is the centred rolling window for support/resistance.
	LevelWindow = 20
	// MaxLevels caps the support and resistance lists.
	MaxLevels = 5

	tradingDaysPerYear = 252
	insufficient       = "Insufficient data"
)

// PriceChange returns the latest close, the previous close and the percent
// change between them. A single-bar series reports itself as the previous
// close with zero change.
func PriceChange(s model.PriceSeries) (price, prev, pct float64) {
	n := s.Len()
	if n == 0 {
		return 0, 0, 0
	}
	price = s.Points[n-1].Close
	prev = price
	if n > 1 {
		prev = s.Points[n-2].Close
	}
	if prev != 0 {
		pct = (price - prev) / prev * 100
	}
	return price, prev, pct
}

// VolumeOf compares the latest volume with the mean of the last 20 sessions
// (latest included). Ratio above 1.5 is High, above 0.5 Normal, else Low.
func VolumeOf(s model.PriceSeries) model.VolumeStats {
	n := s.Len()
	if n < StatsWindow {
		return model.VolumeStats{Status: insufficient}
	}
	var sum int64
	for _, p := range s.Points[n-StatsWindow:] {
		sum += p.Volume
	}
	avg := float64(sum) / StatsWindow
	cur := s.Points[n-1].Volume

	ratio := 1.0
	if avg > 0 {
		ratio = float64(cur) / avg
	}
	st := model.VolumeStats{Current: cur, Average: int64(avg), Ratio: ratio}
	switch {
	case ratio > 1.5:
		st.Status = "High"
	case ratio > 0.5:
		st.Status = "Normal"
	default:
		st.Status = "Low"
	}
	return st
}

// VolatilityOf annualises the sample standard deviation of the last 20 daily
// returns (in percent). Above 40 is High, above 20 Moderate, else Low.
func VolatilityOf(s model.PriceSeries) model.VolatilityStats {
	n := s.Len()
	if n < StatsWindow+1 {
		return model.VolatilityStats{Status: insufficient}
	}
	rets := make([]float64, 0, StatsWindow)
	for i := n - StatsWindow; i < n; i++ {
		prev := s.Points[i-1].Close
		rets = append(rets, s.Points[i].Close/prev-1)
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var ss float64
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	vol := math.Sqrt(ss/float64(len(rets)-1)) * math.Sqrt(tradingDaysPerYear) * 100

	st := model.VolatilityStats{Annualized: vol}
	switch {
	case vol > 40:
		st.Status = "High"
	case vol > 20:
		st.Status = "Moderate"
	default:
		st.Status = "Low"
	}
	return st
}

// SupportResistance finds lows that are the minimum of their centred window
// and highs that are the maximum of theirs. Index i's window spans
// [i-window/2, i+(window-1)/2]; windows that fall off either end are skipped.
// Levels are de-duplicated, sorted ascending and the top MaxLevels kept.
// Series shorter than 2*window yield empty lists.
func SupportResistance(s model.PriceSeries, window int) (support, resistance []float64) {
	support, resistance = []float64{}, []float64{}
	n := s.Len()
	if window < 1 || n < 2*window {
		return support, resistance
	}

	lows := map[float64]struct{}{}
	highs := map[float64]struct{}{}
	left, right := window/2, (window-1)/2
	for i := left; i+right < n; i++ {
		lo, hi := s.Points[i].Low, s.Points[i].High
		minLow, maxHigh := lo, hi
		for j := i - left; j <= i+right; j++ {
			minLow = math.Min(minLow, s.Points[j].Low)
			maxHigh = math.Max(maxHigh, s.Points[j].High)
		}
		if lo == minLow {
			lows[lo] = struct{}{}
		}
		if hi == maxHigh {
			highs[hi] = struct{}{}
		}
	}
	return topLevels(lows), topLevels(highs)
}

func topLevels(set map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	if len(out) > MaxLevels {
		out = out[len(out)-MaxLevels:]
	}
	return out
}
