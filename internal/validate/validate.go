// Package validate normalizes raw daily bars before any indicator is computed.
//
// Validation is pure: it never mutates the input slice and always returns a new
// series. Bad points are dropped by default; Strict mode fails instead.
package validate

import (
	"errors"
	"fmt"

	"stock-analyzer/internal/model"
)

var (
	// ErrEmptySeries is returned when no usable point remains.
	ErrEmptySeries = errors.New("empty price series")

	// ErrInsufficientHistory is advisory: the series is returned alongside it
	// and indicators will simply be null where history is missing.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrInvalidPoint is returned in Strict mode for the first rejected point.
	ErrInvalidPoint = errors.New("invalid price point")
)

// Reason explains why a point was dropped.
type Reason string

const (
	ReasonNonPositiveClose Reason = "non-positive close"
	ReasonNonFinite        Reason = "non-finite price"
	ReasonDuplicate        Reason = "duplicate timestamp"
	ReasonOutOfOrder       Reason = "non-monotonic timestamp"
)

// Rejection records a dropped input point by its original index.
type Rejection struct {
	Index  int              `json:"index"`
	Point  model.PricePoint `json:"point"`
	Reason Reason           `json:"reason"`
}

// Options tunes validation.
type Options struct {
	// Lookback is the longest indicator window the caller intends to compute.
	// Zero disables the InsufficientHistory check.
	Lookback int
	// Strict fails on the first bad point instead of dropping it.
	Strict bool
}

// Result is a validated series plus what was removed from it.
type Result struct {
	Series   model.PriceSeries
	Rejected []Rejection
}

// Validate checks and normalizes a raw series.
//
// Errors:
//   - ErrEmptySeries when the input (or what survives dropping) has no points;
//     the Result is then zero.
//   - ErrInvalidPoint (Strict only) wrapping the offending index and reason.
//   - ErrInsufficientHistory when fewer than opts.Lookback points survive; the
//     Result is fully populated and usable.
//
// On duplicate timestamps the earliest-seen point is kept. A point whose
// timestamp is earlier than the last kept point is treated as out of order.
func Validate(raw model.PriceSeries, opts Options) (Result, error) {
	if len(raw.Points) == 0 {
		return Result{}, fmt.Errorf("%s: %w", raw.Symbol, ErrEmptySeries)
	}

	kept := make([]model.PricePoint, 0, len(raw.Points))
	seen := make(map[int64]struct{}, len(raw.Points))
	var rejected []Rejection

	for i, p := range raw.Points {
		reason, ok := check(p, kept, seen)
		if ok {
			kept = append(kept, p)
			seen[p.TS.UnixNano()] = struct{}{}
			continue
		}
		if opts.Strict {
			return Result{}, fmt.Errorf("%s: index %d (%s): %s: %w",
				raw.Symbol, i, p.TS.Format("2006-01-02"), reason, ErrInvalidPoint)
		}
		rejected = append(rejected, Rejection{Index: i, Point: p, Reason: reason})
	}

	if len(kept) == 0 {
		return Result{}, fmt.Errorf("%s: all %d points rejected: %w", raw.Symbol, len(raw.Points), ErrEmptySeries)
	}

	res := Result{
		Series:   model.PriceSeries{Symbol: raw.Symbol, Points: kept},
		Rejected: rejected,
	}
	if opts.Lookback > 0 && len(kept) < opts.Lookback {
		return res, fmt.Errorf("%s: have %d points, need %d: %w",
			raw.Symbol, len(kept), opts.Lookback, ErrInsufficientHistory)
	}
	return res, nil
}

func check(p model.PricePoint, kept []model.PricePoint, seen map[int64]struct{}) (Reason, bool) {
	if !p.Finite() {
		return ReasonNonFinite, false
	}
	if p.Close <= 0 {
		return ReasonNonPositiveClose, false
	}
	if _, dup := seen[p.TS.UnixNano()]; dup {
		return ReasonDuplicate, false
	}
	if n := len(kept); n > 0 && p.TS.Before(kept[n-1].TS) {
		return ReasonOutOfOrder, false
	}
	return "", true
}

// IsFatal reports whether err blocks any indicator from being shown.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrInsufficientHistory)
}
