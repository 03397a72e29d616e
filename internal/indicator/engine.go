package indicator

import "stock-analyzer/internal/model"

// Compute validates cfg and derives every indicator series for s.
// InvalidConfig is reported before anything is computed. A series shorter
// than a lookback simply yields nulls for that indicator.
func Compute(s model.PriceSeries, cfg Config) (model.Indicators, error) {
	if err := cfg.Validate(); err != nil {
		return model.Indicators{}, err
	}

	var (
		out model.Indicators
		err error
	)
	if out.SMAShort, err = SMA(s, cfg.SMAShort); err != nil {
		return model.Indicators{}, err
	}
	if out.SMALong, err = SMA(s, cfg.SMALong); err != nil {
		return model.Indicators{}, err
	}
	if out.RSI, err = RSI(s, cfg.RSIPeriod); err != nil {
		return model.Indicators{}, err
	}
	if out.MACD, err = MACD(s, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal); err != nil {
		return model.Indicators{}, err
	}
	if out.Bollinger, err = Bollinger(s, cfg.BollingerPeriod, cfg.BollingerK); err != nil {
		return model.Indicators{}, err
	}
	if out.ATR, err = ATR(s, cfg.ATRPeriod); err != nil {
		return model.Indicators{}, err
	}
	return out, nil
}
