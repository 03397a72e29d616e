// Package indicator computes technical indicators over a daily price series.
//
// Every exported function is a pure left-to-right fold: it allocates fresh
// output, borrows its input read-only and keeps no state between calls.
// Outputs are index-aligned with the input series; indices without enough
// history hold model.Null rather than a sentinel number.
package indicator

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidConfig is returned before any computation when periods are unusable.
var ErrInvalidConfig = errors.New("invalid indicator config")

// ErrOutOfRange is returned by CheckRanges for user input outside the documented ranges.
var ErrOutOfRange = errors.New("indicator period out of range")

// Documented user-facing ranges. The engine itself accepts any valid period;
// presentation layers constrain input with CheckRanges.
const (
	SMAShortMin, SMAShortMax   = 5, 50
	SMALongMin, SMALongMax     = 50, 200
	RSIPeriodMin, RSIPeriodMax = 5, 30
)

// Config holds the periods for one computation.
// Bollinger and ATR periods of zero disable those series (all null).
type Config struct {
	SMAShort   int `json:"sma_short" yaml:"sma_short"`
	SMALong    int `json:"sma_long" yaml:"sma_long"`
	RSIPeriod  int `json:"rsi_period" yaml:"rsi_period"`
	MACDFast   int `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow   int `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal int `json:"macd_signal" yaml:"macd_signal"`

	BollingerPeriod int     `json:"bollinger_period" yaml:"bollinger_period"`
	BollingerK      float64 `json:"bollinger_k" yaml:"bollinger_k"`
	ATRPeriod       int     `json:"atr_period" yaml:"atr_period"`
}

// DefaultConfig returns the standard daily-chart settings.
func DefaultConfig() Config {
	return Config{
		SMAShort:        20,
		SMALong:         50,
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerK:      2,
		ATRPeriod:       14,
	}
}

// Validate checks period relationships. It never clamps.
func (c Config) Validate() error {
	switch {
	case c.SMAShort < 1:
		return fmt.Errorf("sma_short=%d must be >= 1: %w", c.SMAShort, ErrInvalidConfig)
	case c.SMALong < 1:
		return fmt.Errorf("sma_long=%d must be >= 1: %w", c.SMALong, ErrInvalidConfig)
	case c.SMAShort >= c.SMALong:
		return fmt.Errorf("sma_short=%d must be < sma_long=%d: %w", c.SMAShort, c.SMALong, ErrInvalidConfig)
	case c.RSIPeriod < 2:
		return fmt.Errorf("rsi_period=%d must be >= 2: %w", c.RSIPeriod, ErrInvalidConfig)
	}
	if err := validateMACD(c.MACDFast, c.MACDSlow, c.MACDSignal); err != nil {
		return err
	}
	switch {
	case c.BollingerPeriod < 0 || c.BollingerPeriod == 1:
		return fmt.Errorf("bollinger_period=%d must be 0 or >= 2: %w", c.BollingerPeriod, ErrInvalidConfig)
	case c.BollingerPeriod > 0 && c.BollingerK <= 0:
		return fmt.Errorf("bollinger_k=%g must be > 0: %w", c.BollingerK, ErrInvalidConfig)
	case c.ATRPeriod < 0:
		return fmt.Errorf("atr_period=%d must be >= 0: %w", c.ATRPeriod, ErrInvalidConfig)
	}
	return nil
}

func validateMACD(fast, slow, signal int) error {
	switch {
	case fast < 1:
		return fmt.Errorf("macd_fast=%d must be >= 1: %w", fast, ErrInvalidConfig)
	case slow <= fast:
		return fmt.Errorf("macd_slow=%d must be > macd_fast=%d: %w", slow, fast, ErrInvalidConfig)
	case signal < 1:
		return fmt.Errorf("macd_signal=%d must be >= 1: %w", signal, ErrInvalidConfig)
	}
	return nil
}

// CheckRanges enforces the documented user ranges for the SMA and RSI periods.
func (c Config) CheckRanges() error {
	if c.SMAShort < SMAShortMin || c.SMAShort > SMAShortMax {
		return fmt.Errorf("sma_short=%d not in [%d,%d]: %w", c.SMAShort, SMAShortMin, SMAShortMax, ErrOutOfRange)
	}
	if c.SMALong < SMALongMin || c.SMALong > SMALongMax {
		return fmt.Errorf("sma_long=%d not in [%d,%d]: %w", c.SMALong, SMALongMin, SMALongMax, ErrOutOfRange)
	}
	if c.RSIPeriod < RSIPeriodMin || c.RSIPeriod > RSIPeriodMax {
		return fmt.Errorf("rsi_period=%d not in [%d,%d]: %w", c.RSIPeriod, RSIPeriodMin, RSIPeriodMax, ErrOutOfRange)
	}
	return nil
}

// MaxLookback is the number of bars needed before every core series has a
// value at the latest index.
func (c Config) MaxLookback() int {
	n := c.SMALong
	if c.RSIPeriod+1 > n {
		n = c.RSIPeriod + 1
	}
	if m := c.MACDSlow + c.MACDSignal - 1; m > n {
		n = m
	}
	if c.BollingerPeriod > n {
		n = c.BollingerPeriod
	}
	if c.ATRPeriod > n {
		n = c.ATRPeriod
	}
	return n
}

// Name builds a series name such as "SMA_20".
func Name(kind string, periods ...int) string {
	s := kind
	for _, p := range periods {
		s += "_" + strconv.Itoa(p)
	}
	return s
}
