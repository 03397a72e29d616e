package signal

import "stock-analyzer/internal/model"

// Outlook scores the window into one descriptive rating:
//
//	RSI overbought −2 / oversold +2
//	MACD crossing its signal line between prior and latest ±3
//	close > short SMA > long SMA +2, close < short SMA < long SMA −2
//
// Ratings: ≥3 strongly bullish, ≥1 bullish, ≤−3 strongly bearish, ≤−1 bearish.
func Outlook(w Window, th Thresholds) model.Outlook {
	o := model.Outlook{Reasons: []string{}}

	if rsi, ok := w.Latest.RSI.Get(); ok {
		switch {
		case rsi > th.Overbought:
			o.Score -= 2
			o.Reasons = append(o.Reasons, "RSI Overbought")
		case rsi < th.Oversold:
			o.Score += 2
			o.Reasons = append(o.Reasons, "RSI Oversold")
		}
	}

	m, ok1 := w.Latest.MACD.Get()
	sl, ok2 := w.Latest.MACDSig.Get()
	pm, ok3 := w.Prior.MACD.Get()
	psl, ok4 := w.Prior.MACDSig.Get()
	if ok1 && ok2 && ok3 && ok4 {
		prior, latest := compare(pm, psl, th.Tolerance), compare(m, sl, th.Tolerance)
		switch {
		case prior < 0 && latest > 0:
			o.Score += 3
			o.Reasons = append(o.Reasons, "MACD Bullish Crossover")
		case prior > 0 && latest < 0:
			o.Score -= 3
			o.Reasons = append(o.Reasons, "MACD Bearish Crossover")
		}
	}

	c, okC := w.Latest.Close.Get()
	s, okS := w.Latest.SMAShort.Get()
	l, okL := w.Latest.SMALong.Get()
	if okC && okS && okL {
		cs, sl := compare(c, s, th.Tolerance), compare(s, l, th.Tolerance)
		switch {
		case cs > 0 && sl > 0:
			o.Score += 2
			o.Reasons = append(o.Reasons, "Price Above Key MAs")
		case cs < 0 && sl < 0:
			o.Score -= 2
			o.Reasons = append(o.Reasons, "Price Below Key MAs")
		}
	}

	switch {
	case o.Score >= 3:
		o.Rating = model.RatingStrongBullish
	case o.Score >= 1:
		o.Rating = model.RatingBullish
	case o.Score <= -3:
		o.Rating = model.RatingStrongBearish
	case o.Score <= -1:
		o.Rating = model.RatingBearish
	default:
		o.Rating = model.RatingNeutral
	}
	return o
}

// TrendStateOf places the latest close relative to the two averages.
func TrendStateOf(snap Snapshot, th Thresholds) model.TrendState {
	c, okC := snap.Close.Get()
	s, okS := snap.SMAShort.Get()
	l, okL := snap.SMALong.Get()
	if !okC || !okS || !okL {
		return model.TrendUnknown
	}
	cs, sl := compare(c, s, th.Tolerance), compare(s, l, th.Tolerance)
	switch {
	case cs > 0 && sl > 0:
		return model.TrendStrongUp
	case cs > 0:
		return model.TrendUp
	case cs < 0 && sl < 0:
		return model.TrendStrongDown
	case cs < 0:
		return model.TrendDown
	default:
		return model.TrendSideways
	}
}
