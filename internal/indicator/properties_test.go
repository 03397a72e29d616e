package indicator

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	talib "github.com/markcheno/go-talib"

	"stock-analyzer/internal/model"
)

// randomWalk returns n strictly positive closes from a seeded walk.
func randomWalk(seed int64, n int) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	price := 100.0
	for i := range out {
		price *= 1 + (r.Float64()-0.5)*0.04
		out[i] = price
	}
	return out
}

func naiveSMA(cs []float64, period, i int) float64 {
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += cs[j]
	}
	return sum / float64(period)
}

func TestSMA_MatchesNaiveReference(t *testing.T) {
	cs := randomWalk(1, 300)
	s := closes(cs...)
	for _, period := range []int{1, 2, 5, 20, 50, 200, 300, 301} {
		got, err := SMA(s, period)
		if err != nil {
			t.Fatal(err)
		}
		if got.Len() != len(cs) {
			t.Fatalf("SMA(%d): len %d, want %d", period, got.Len(), len(cs))
		}
		for i := range cs {
			if i < period-1 {
				assertNull(t, "SMA warmup", got.At(i))
				continue
			}
			assertValue(t, "SMA vs naive", got.At(i), naiveSMA(cs, period, i), 1e-9)
		}
	}
}

func TestRSI_Bounded(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		got, _ := RSI(closes(randomWalk(seed, 250)...), 14)
		for i, p := range got.Points {
			if v, ok := p.Value.Get(); ok && (v < 0 || v > 100) {
				t.Fatalf("seed %d idx %d: RSI %.4f out of [0,100]", seed, i, v)
			}
		}
	}
}

func TestMACD_HistogramIdentity(t *testing.T) {
	got, err := MACD(closes(randomWalk(7, 200)...), 12, 26, 9)
	if err != nil {
		t.Fatal(err)
	}
	checked := 0
	for i := range got.Histogram.Points {
		h := got.Histogram.At(i)
		if !h.Valid {
			continue
		}
		checked++
		assertClose(t, "hist = line - signal", h.Float, got.Line.At(i).Float-got.Signal.At(i).Float, 1e-9)
	}
	if checked != 200-(26+9-1)+1 {
		t.Errorf("checked %d histogram values", checked)
	}
}

func TestCompute_ShortSeriesDegradesToNull(t *testing.T) {
	s := closes(10, 11, 12)
	got, err := Compute(s, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, series := range []model.IndicatorSeries{
		got.SMAShort, got.SMALong, got.RSI,
		got.MACD.Line, got.MACD.Signal, got.MACD.Histogram,
		got.Bollinger.Middle, got.ATR,
	} {
		if series.Len() != 3 {
			t.Errorf("%s: len %d, want 3", series.Name, series.Len())
		}
		if series.FirstValid() != -1 {
			t.Errorf("%s: expected all null", series.Name)
		}
	}
}

func TestCompute_EmptySeriesDoesNotPanic(t *testing.T) {
	got, err := Compute(model.PriceSeries{}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got.RSI.Len() != 0 {
		t.Errorf("expected empty output")
	}
}

func TestCompute_Idempotent(t *testing.T) {
	s := closes(randomWalk(3, 260)...)
	a, err := Compute(s, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Compute(s, DefaultConfig())
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two computations over the same input differ")
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	s := closes(randomWalk(4, 80)...)
	before := s.Clone()
	if _, err := Compute(s, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, s) {
		t.Fatal("input series was mutated")
	}
}

func TestCompute_InvalidConfigFailsFast(t *testing.T) {
	cases := map[string]func(*Config){
		"zero short":       func(c *Config) { c.SMAShort = 0 },
		"short >= long":    func(c *Config) { c.SMAShort = 50 },
		"rsi < 2":          func(c *Config) { c.RSIPeriod = 1 },
		"slow <= fast":     func(c *Config) { c.MACDSlow = 12 },
		"signal zero":      func(c *Config) { c.MACDSignal = 0 },
		"negative fast":    func(c *Config) { c.MACDFast = -1 },
		"bollinger k zero": func(c *Config) { c.BollingerK = 0 },
		"negative atr":     func(c *Config) { c.ATRPeriod = -3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			got, err := Compute(closes(1, 2, 3), cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if got.SMAShort.Len() != 0 {
				t.Error("expected no partial results")
			}
		})
	}
}

func TestConfig_MaxLookback(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.MaxLookback(); got != 50 {
		t.Errorf("default lookback: got %d, want 50", got)
	}
	cfg.SMALong = 30
	// MACD slow + signal - 1 = 34
	if got := cfg.MaxLookback(); got != 34 {
		t.Errorf("lookback: got %d, want 34", got)
	}
}

func TestName(t *testing.T) {
	cases := []struct {
		kind    string
		periods []int
		want    string
	}{
		{"SMA", []int{200}, "SMA_200"},
		{"MACD", []int{12, 26, 9}, "MACD_12_26_9"},
		{"BB", []int{0}, "BB_0"},
		{"ATR", nil, "ATR"},
	}
	for _, c := range cases {
		if got := Name(c.kind, c.periods...); got != c.want {
			t.Errorf("Name(%q, %v) = %q, want %q", c.kind, c.periods, got, c.want)
		}
	}
}

func TestConfig_CheckRanges(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.CheckRanges(); err != nil {
		t.Fatalf("defaults should be in range: %v", err)
	}
	cfg.SMALong = 250
	if err := cfg.CheckRanges(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	// Out of documented range is still computable.
	if err := cfg.Validate(); err != nil {
		t.Errorf("engine should not clamp: %v", err)
	}
}

// ────────────────────────────────────────────────────────────
// Cross-check against TA-Lib
// ────────────────────────────────────────────────────────────

func TestReference_TALib(t *testing.T) {
	cs := randomWalk(11, 240)
	s := closes(cs...)

	sma, _ := SMA(s, 20)
	ema, _ := EMA(s, 12)
	rsi, _ := RSI(s, 14)

	refSMA := talib.Sma(cs, 20)
	refEMA := talib.Ema(cs, 12)
	refRSI := talib.Rsi(cs, 14)

	for i := range cs {
		if i >= 19 {
			assertValue(t, "SMA vs talib", sma.At(i), refSMA[i], 1e-9)
		}
		if i >= 11 {
			assertValue(t, "EMA vs talib", ema.At(i), refEMA[i], 1e-9)
		}
		if i >= 14 {
			assertValue(t, "RSI vs talib", rsi.At(i), refRSI[i], 1e-6)
		}
	}
	if math.IsNaN(rsi.At(len(cs) - 1).Float) {
		t.Fatal("unexpected NaN")
	}
}
