// Package signal classifies the latest indicator readings into bullish,
// bearish or neutral signals with plain-language rationale.
//
// The classifier only ever looks at two points: the latest index and the one
// before it. Everything here is a pure function of a Window.
package signal

import "stock-analyzer/internal/model"

// Snapshot is every reading the classifier needs at one index.
type Snapshot struct {
	Close     model.Value
	SMAShort  model.Value
	SMALong   model.Value
	RSI       model.Value
	MACD      model.Value
	MACDSig   model.Value
	Histogram model.Value
}

// Window is the fixed two-point lookback the rules evaluate.
type Window struct {
	Latest Snapshot
	Prior  Snapshot
}

// SnapshotAt reads index i from the computed series. Out-of-range indices
// read as null, and so does Close for a negative index.
func SnapshotAt(s model.PriceSeries, ind model.Indicators, i int) Snapshot {
	snap := Snapshot{
		SMAShort:  ind.SMAShort.At(i),
		SMALong:   ind.SMALong.At(i),
		RSI:       ind.RSI.At(i),
		MACD:      ind.MACD.Line.At(i),
		MACDSig:   ind.MACD.Signal.At(i),
		Histogram: ind.MACD.Histogram.At(i),
	}
	if i >= 0 && i < s.Len() {
		snap.Close = model.Some(s.Points[i].Close)
	}
	return snap
}

// WindowAt builds the window ending at index i.
func WindowAt(s model.PriceSeries, ind model.Indicators, i int) Window {
	return Window{
		Latest: SnapshotAt(s, ind, i),
		Prior:  SnapshotAt(s, ind, i-1),
	}
}

// LatestWindow is WindowAt for the last bar of s.
func LatestWindow(s model.PriceSeries, ind model.Indicators) Window {
	return WindowAt(s, ind, s.Len()-1)
}
