package models

import "time"

// Trend is the OLS fit of close against bar index.
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  Value   `json:"r_squared"`
}

// IndicatorSet holds per-bar overlays aligned to the input bars.
type IndicatorSet struct {
	Times           []time.Time `json:"times"`
	RSI             []Value     `json:"rsi"`
	BollingerUpper  []Value     `json:"bb_upper"`
	BollingerMiddle []Value     `json:"bb_middle"`
	BollingerLower  []Value     `json:"bb_lower"`
	Regression      []Value     `json:"regression"`
	Trend           Trend       `json:"trend"`
}

// LatestRSI returns the RSI at the last bar.
func (s IndicatorSet) LatestRSI() Value {
	if len(s.RSI) == 0 {
		return None()
	}
	return s.RSI[len(s.RSI)-1]
}

// Latest returns a snapshot of the last bar's indicators.
func (s IndicatorSet) Latest() IndicatorSnapshot {
	n := len(s.Times)
	if n == 0 {
		return IndicatorSnapshot{}
	}
	return IndicatorSnapshot{
		Time:            s.Times[n-1],
		RSI:             s.RSI[n-1],
		BollingerUpper:  s.BollingerUpper[n-1],
		BollingerMiddle: s.BollingerMiddle[n-1],
		BollingerLower:  s.BollingerLower[n-1],
		Regression:      s.Regression[n-1],
	}
}

// IndicatorSnapshot is the indicator state at a single bar.
type IndicatorSnapshot struct {
	Time            time.Time `json:"t"`
	RSI             Value     `json:"rsi"`
	BollingerUpper  Value     `json:"bb_upper"`
	BollingerMiddle Value     `json:"bb_middle"`
	BollingerLower  Value     `json:"bb_lower"`
	Regression      Value     `json:"regression"`
}

// BetaStatus tells callers whether beta was computed or fell back to the default.
type BetaStatus string

const (
	BetaComputed  BetaStatus = "computed"
	BetaDefaulted BetaStatus = "defaulted"
)

// DefaultBeta is used when beta cannot be computed.
const DefaultBeta = 1.0

// RiskMetrics is the fixed scalar risk/performance record for one asset.
type RiskMetrics struct {
	Volatility  Value      `json:"annualized_volatility"`
	MaxDrawdown Value      `json:"max_drawdown"`
	Sharpe      Value      `json:"sharpe"`
	VaR95       Value      `json:"var_95"`
	Beta        float64    `json:"beta"`
	BetaStatus  BetaStatus `json:"beta_status"`
	TrendSlope  Value      `json:"trend_slope"`
	RSquared    Value      `json:"r_squared"`
	LastPrice   float64    `json:"last_price"`
	Warnings    []string   `json:"warnings,omitempty"`
}
