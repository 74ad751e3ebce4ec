package quant

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ares/internal/domain/models"
	"Ares/internal/services/features"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func seriesOf(symbol string, closes ...float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.Bars = append(s.Bars, models.Bar{
			Time: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000,
		})
	}
	return s
}

func returnsOf(values ...float64) models.ReturnSeries {
	r := models.ReturnSeries{}
	for i, v := range values {
		r.Times = append(r.Times, day0.AddDate(0, 0, i+1))
		r.Values = append(r.Values, v)
	}
	return r
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestRSIMonotoneIncreaseIs100(t *testing.T) {
	rsi := RSI(ramp(15, 100, 1), 14)
	require.Len(t, rsi, 15)
	for i := 0; i < 14; i++ {
		assert.False(t, rsi[i].OK, "bar %d should be undefined", i)
	}
	require.True(t, rsi[14].OK)
	assert.Equal(t, 100.0, rsi[14].V)
}

func TestRSIFlatIsNeutral(t *testing.T) {
	rsi := RSI(constant(20, 50), 14)
	assert.Equal(t, 50.0, rsi[19].V)
}

func TestRSIMonotoneDecreaseIsZero(t *testing.T) {
	rsi := RSI(ramp(20, 200, -2), 14)
	assert.InDelta(t, 0.0, rsi[19].V, 1e-12)
}

func TestRSIStaysInRange(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	for i, v := range RSI(closes, 14) {
		if !v.OK {
			continue
		}
		assert.GreaterOrEqual(t, v.V, 0.0, "bar %d", i)
		assert.LessOrEqual(t, v.V, 100.0, "bar %d", i)
	}
}

func TestBollingerConstantSeriesCollapses(t *testing.T) {
	upper, middle, lower := Bollinger(constant(30, 100), 20, 2)
	assert.False(t, middle[18].OK)
	require.True(t, middle[19].OK)
	for i := 19; i < 30; i++ {
		assert.InDelta(t, 100.0, upper[i].V, 1e-9)
		assert.InDelta(t, 100.0, middle[i].V, 1e-9)
		assert.InDelta(t, 100.0, lower[i].V, 1e-9)
	}
}

func TestBollingerFlatWindowIsExactPrice(t *testing.T) {
	// 17.17 is not representable, so a summed mean would drift in the last digit
	upper, middle, lower := Bollinger(constant(30, 17.17), 20, 2)
	for i := 19; i < 30; i++ {
		assert.Equal(t, 17.17, middle[i].V)
		assert.Equal(t, 17.17, upper[i].V)
		assert.Equal(t, 17.17, lower[i].V)
	}
}

func TestBollingerBandOrdering(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 50 + 5*math.Cos(float64(i))
	}
	upper, middle, lower := Bollinger(closes, 20, 2)
	for i := 19; i < len(closes); i++ {
		assert.GreaterOrEqual(t, upper[i].V, middle[i].V)
		assert.GreaterOrEqual(t, middle[i].V, lower[i].V)
	}
}

func TestBollingerUsesSampleStd(t *testing.T) {
	// window [1,2,3]: mean 2, sample std 1
	upper, middle, lower := Bollinger([]float64{1, 2, 3}, 3, 2)
	assert.InDelta(t, 2.0, middle[2].V, 1e-12)
	assert.InDelta(t, 4.0, upper[2].V, 1e-12)
	assert.InDelta(t, 0.0, lower[2].V, 1e-12)
}

func TestLinearTrend(t *testing.T) {
	trend, line := LinearTrend(ramp(25, 10, 2))
	assert.InDelta(t, 2.0, trend.Slope, 1e-9)
	assert.InDelta(t, 10.0, trend.Intercept, 1e-9)
	require.True(t, trend.RSquared.OK)
	assert.InDelta(t, 1.0, trend.RSquared.V, 1e-9)
	assert.InDelta(t, 58.0, line[24].V, 1e-9)
}

func TestLinearTrendFlatHasNoRSquared(t *testing.T) {
	trend, _ := LinearTrend(constant(25, 42))
	assert.False(t, trend.RSquared.OK)
	assert.InDelta(t, 0.0, trend.Slope, 1e-9)
}

func TestComputeIndicatorsInsufficientData(t *testing.T) {
	_, err := ComputeIndicators(seriesOf("AAA", ramp(19, 10, 1)...), DefaultIndicatorConfig())
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestComputeIndicatorsInvalidSeries(t *testing.T) {
	closes := ramp(25, 10, 1)
	closes[5] = 0
	_, err := ComputeIndicators(seriesOf("AAA", closes...), DefaultIndicatorConfig())
	assert.ErrorIs(t, err, models.ErrInvalidSeries)
}

func TestComputeIndicatorsAligned(t *testing.T) {
	s := seriesOf("AAA", ramp(40, 10, 0.5)...)
	set, err := ComputeIndicators(s, DefaultIndicatorConfig())
	require.NoError(t, err)
	assert.Len(t, set.RSI, 40)
	assert.Len(t, set.BollingerUpper, 40)
	assert.Len(t, set.Regression, 40)
	assert.Equal(t, s.Bars[39].Time, set.Latest().Time)
	assert.Equal(t, 100.0, set.LatestRSI().V)
}

func TestPercentileInterpolates(t *testing.T) {
	assert.InDelta(t, 1.2, Percentile([]float64{5, 4, 3, 2, 1}, 5), 1e-12)
	assert.InDelta(t, -0.17, Percentile([]float64{0.1, -0.2, 0.3}, 5), 1e-12)
	assert.InDelta(t, 7.0, Percentile([]float64{7}, 5), 1e-12)
	assert.True(t, math.IsNaN(Percentile(nil, 5)))
}

func TestPercentileDoesNotMutate(t *testing.T) {
	x := []float64{3, 1, 2}
	Percentile(x, 50)
	assert.Equal(t, []float64{3, 1, 2}, x)
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.5, MaxDrawdown([]float64{0.1, -0.5, 0.2}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{0.01, 0.02, 0}))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestComputeRiskConstantSeries(t *testing.T) {
	s := seriesOf("FLAT", constant(30, 100)...)
	risk, err := ComputeRisk(features.ComputeLogReturns(s), models.ReturnSeries{}, DefaultRiskConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.0, risk.Volatility.V)
	assert.Equal(t, 0.0, risk.MaxDrawdown.V)
	assert.False(t, risk.Sharpe.OK)
	assert.Equal(t, models.BetaDefaulted, risk.BetaStatus)
	assert.Equal(t, models.DefaultBeta, risk.Beta)
	require.Len(t, risk.Warnings, 2)
	assert.Contains(t, risk.Warnings[0], WarnSharpeDegenerate)
	assert.Contains(t, risk.Warnings[1], WarnBetaDefaulted)
}

func TestComputeRiskBeta(t *testing.T) {
	bench := returnsOf(0.01, -0.02, 0.015, 0.003, -0.007, 0.012)
	asset := returnsOf(0.02, -0.04, 0.03, 0.006, -0.014, 0.024)
	risk, err := ComputeRisk(asset, bench, DefaultRiskConfig())
	require.NoError(t, err)
	assert.Equal(t, models.BetaComputed, risk.BetaStatus)
	assert.InDelta(t, 2.0, risk.Beta, 1e-9)
	assert.Empty(t, risk.Warnings)
}

func TestComputeRiskBetaUsesCommonDatesOnly(t *testing.T) {
	bench := returnsOf(0.01, -0.02, 0.015, 0.003)
	asset := returnsOf(0.02, -0.04, 0.03, 0.006, 0.5, -0.5)
	risk, err := ComputeRisk(asset, bench, DefaultRiskConfig())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, risk.Beta, 1e-9)
}

func TestComputeRiskBetaDefaultsWithoutOverlap(t *testing.T) {
	asset := returnsOf(0.01, -0.01, 0.02)
	bench := models.ReturnSeries{
		Times:  []time.Time{day0.AddDate(1, 0, 0), day0.AddDate(1, 0, 1)},
		Values: []float64{0.01, 0.02},
	}
	risk, err := ComputeRisk(asset, bench, DefaultRiskConfig())
	require.NoError(t, err)
	assert.Equal(t, models.BetaDefaulted, risk.BetaStatus)
	assert.Equal(t, 1.0, risk.Beta)
	assert.Contains(t, risk.Warnings[0], "0 common dates")
}

func TestComputeRiskSharpeAndVaR(t *testing.T) {
	r := returnsOf(0.01, -0.01, 0.02, -0.02, 0.03)
	risk, err := ComputeRisk(r, models.ReturnSeries{}, DefaultRiskConfig())
	require.NoError(t, err)

	mean := 0.006
	var ss float64
	for _, v := range r.Values {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / 4)
	assert.InDelta(t, std*math.Sqrt(252), risk.Volatility.V, 1e-12)
	assert.InDelta(t, (mean-0.04/252)/std*math.Sqrt(252), risk.Sharpe.V, 1e-9)
	// sorted: -0.02 -0.01 0.01 0.02 0.03, h = 0.2
	assert.InDelta(t, -0.018, risk.VaR95.V, 1e-12)
	assert.LessOrEqual(t, risk.MaxDrawdown.V, 0.0)
}

func TestEnginesAreIdempotent(t *testing.T) {
	closes := make([]float64, 80)
	p := 50.0
	for i := range closes {
		p *= 1 + 0.02*math.Sin(float64(i)*0.7) + 0.001
		closes[i] = p
	}
	s := seriesOf("AAA", closes...)
	before := s.Closes()

	first, err := ComputeIndicators(s, DefaultIndicatorConfig())
	require.NoError(t, err)
	second, err := ComputeIndicators(s, DefaultIndicatorConfig())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	r := features.ComputeLogReturns(s)
	bench := features.ComputeLogReturns(seriesOf("SPY", ramp(80, 400, 1.5)...))
	riskA, err := ComputeRisk(r, bench, DefaultRiskConfig())
	require.NoError(t, err)
	riskB, err := ComputeRisk(r, bench, DefaultRiskConfig())
	require.NoError(t, err)
	assert.Equal(t, riskA, riskB)

	assert.Equal(t, before, s.Closes())
}

func TestComputeRiskInsufficientReturns(t *testing.T) {
	_, err := ComputeRisk(returnsOf(0.01), models.ReturnSeries{}, DefaultRiskConfig())
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestAnalyzeMergesTrend(t *testing.T) {
	s := seriesOf("AAA", ramp(30, 100, 1)...)
	bench := features.ComputeLogReturns(seriesOf("SPY", ramp(30, 400, 2)...))
	ind, risk, err := Analyze(s, bench, DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, ind.Trend.Slope, risk.TrendSlope.V, 1e-12)
	assert.Equal(t, 129.0, risk.LastPrice)
	assert.Equal(t, models.BetaComputed, risk.BetaStatus)
}
