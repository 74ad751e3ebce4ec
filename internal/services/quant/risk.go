package quant

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"Ares/internal/domain/models"
	"Ares/internal/services/features"
)

// RiskConfig holds annualization parameters.
type RiskConfig struct {
	RiskFreeRate float64 // annual
	TradingDays  int
}

// DefaultRiskConfig returns a 4% risk-free rate and 252 trading days.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{RiskFreeRate: 0.04, TradingDays: features.TradingDaysPerYear}
}

func (c RiskConfig) withDefaults() RiskConfig {
	if c.TradingDays <= 0 {
		c.TradingDays = features.TradingDaysPerYear
	}
	return c
}

// Warning prefixes attached to RiskMetrics.Warnings.
const (
	WarnSharpeDegenerate = "sharpe_degenerate"
	WarnBetaDefaulted    = "beta_defaulted"
)

// ComputeRisk computes volatility, drawdown, Sharpe, VaR and beta from daily log returns.
// Benchmark returns are inner-joined on date before beta is computed.
func ComputeRisk(returns, benchmark models.ReturnSeries, cfg RiskConfig) (models.RiskMetrics, error) {
	cfg = cfg.withDefaults()
	if returns.Len() < 2 {
		return models.RiskMetrics{}, fmt.Errorf("%w: risk needs 2 returns, got %d",
			models.ErrInsufficientData, returns.Len())
	}
	r := returns.Values
	days := float64(cfg.TradingDays)
	out := models.RiskMetrics{}

	mean, std := stat.MeanStdDev(r, nil)
	out.Volatility = models.Some(std * math.Sqrt(days))
	out.MaxDrawdown = models.Some(MaxDrawdown(r))
	out.VaR95 = models.Some(Percentile(r, 5))

	if std > 0 {
		out.Sharpe = models.Some((mean - cfg.RiskFreeRate/days) / std * math.Sqrt(days))
	} else {
		out.Warnings = append(out.Warnings, WarnSharpeDegenerate+": zero return volatility")
	}

	out.Beta, out.BetaStatus = models.DefaultBeta, models.BetaDefaulted
	xa, xb := features.AlignReturns(returns, benchmark)
	switch {
	case len(xa) < 2:
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%s: %d common dates with benchmark", WarnBetaDefaulted, len(xa)))
	default:
		varB := stat.Variance(xb, nil)
		if varB > 0 && !math.IsNaN(varB) {
			out.Beta = stat.Covariance(xa, xb, nil) / varB
			out.BetaStatus = models.BetaComputed
		} else {
			out.Warnings = append(out.Warnings, WarnBetaDefaulted+": zero benchmark variance")
		}
	}
	return out, nil
}

// MaxDrawdown compounds returns as Π(1+r) and returns the worst decline from a running peak.
// The result is ≤ 0.
func MaxDrawdown(r []float64) float64 {
	if len(r) == 0 {
		return 0
	}
	cum, peak, worst := 1.0, 0.0, 0.0
	for i, v := range r {
		cum *= 1 + v
		if i == 0 || cum > peak {
			peak = cum
		}
		if dd := cum/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// Percentile returns the p-th percentile (0..100) with linear interpolation between
// closest ranks. x is not modified.
func Percentile(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	s := make([]float64, n)
	copy(s, x)
	sort.Float64s(s)
	h := float64(n-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return s[n-1]
	}
	if lo < 0 {
		return s[0]
	}
	return s[lo] + (h-float64(lo))*(s[lo+1]-s[lo])
}

// Config bundles indicator and risk parameters.
type Config struct {
	Indicators IndicatorConfig
	Risk       RiskConfig
}

// DefaultConfig returns the default indicator and risk configuration.
func DefaultConfig() Config {
	return Config{Indicators: DefaultIndicatorConfig(), Risk: DefaultRiskConfig()}
}

// Analyze runs both engines over one series and merges the trend and last price into the risk record.
func Analyze(series models.PriceSeries, benchmark models.ReturnSeries, cfg Config) (models.IndicatorSet, models.RiskMetrics, error) {
	ind, err := ComputeIndicators(series, cfg.Indicators)
	if err != nil {
		return models.IndicatorSet{}, models.RiskMetrics{}, err
	}
	risk, err := ComputeRisk(features.ComputeLogReturns(series), benchmark, cfg.Risk)
	if err != nil {
		return models.IndicatorSet{}, models.RiskMetrics{}, err
	}
	risk.TrendSlope = models.Some(ind.Trend.Slope)
	risk.RSquared = ind.Trend.RSquared
	risk.LastPrice = series.Last().Close
	return ind, risk, nil
}
