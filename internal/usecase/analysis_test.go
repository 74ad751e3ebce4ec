package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ares/internal/domain/models"
	"Ares/internal/services/quant"
)

func newAnalysis(bars *fakeBars, fund *fakeFundamentals, m *recordingMetrics) *AnalysisUseCase {
	return NewAnalysisUseCase(bars, fund, m, nil, AnalysisConfig{
		Benchmark: "SPY",
		Lookback:  60,
		Quant:     quant.DefaultConfig(),
	})
}

func TestAnalyzeStrongBuy(t *testing.T) {
	bars := &fakeBars{series: map[string]models.PriceSeries{
		"AAPL": seriesFrom("AAPL", falling(60)),
		"SPY":  seriesFrom("SPY", wave(60, 0.9, 0.0005)),
	}}
	fund := &fakeFundamentals{data: map[string]models.Fundamentals{"AAPL": healthyFundamentals()}}
	m := &recordingMetrics{}

	report, err := newAnalysis(bars, fund, m).Analyze(context.Background(), AnalyzeParams{Symbol: " aapl "})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", report.Symbol)
	assert.Equal(t, 60, report.Bars)
	assert.Equal(t, 141.0, report.LastPrice)
	assert.Equal(t, 0.0, report.Indicators.RSI.Or(-1))
	assert.Equal(t, 3.0, report.Signal.Score)
	assert.Equal(t, models.VerdictStrongBuy, report.Signal.Verdict)
	assert.Len(t, report.Signal.Rationale, 4)
	assert.Equal(t, models.BetaComputed, report.Risk.BetaStatus)
	assert.Empty(t, report.Warnings)

	assert.Equal(t, []string{string(models.VerdictStrongBuy)}, m.analyses)
	assert.Zero(t, m.betaDefaulted)
	assert.Contains(t, m.latencies, "analysis")
}

func TestAnalyzeDegradesWithoutBenchmarkOrFundamentals(t *testing.T) {
	bars := &fakeBars{series: map[string]models.PriceSeries{
		"AAPL": seriesFrom("AAPL", falling(60)),
	}}
	m := &recordingMetrics{}

	report, err := newAnalysis(bars, &fakeFundamentals{}, m).Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL"})
	require.NoError(t, err)

	assert.Equal(t, models.BetaDefaulted, report.Risk.BetaStatus)
	assert.Equal(t, models.DefaultBeta, report.Risk.Beta)
	assert.Contains(t, report.Warnings, "benchmark_unavailable: SPY")
	assert.Contains(t, report.Warnings, WarnFundamentalsMissing)
	// RSI +1, FCF -1, debt -0.5, neutral sentiment 0
	assert.Equal(t, -0.5, report.Signal.Score)
	assert.Equal(t, models.VerdictSell, report.Signal.Verdict)
	assert.Equal(t, 1, m.betaDefaulted)
}

func TestAnalyzeUsesPreloadedFundamentals(t *testing.T) {
	bars := &fakeBars{series: map[string]models.PriceSeries{
		"AAPL": seriesFrom("AAPL", falling(60)),
		"SPY":  seriesFrom("SPY", wave(60, 0.9, 0.0005)),
	}}
	// the store would fail; the preloaded snapshot must win
	fund := &fakeFundamentals{err: errors.New("redis: connection refused")}
	snap := healthyFundamentals()

	report, err := newAnalysis(bars, fund, &recordingMetrics{}).
		Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL", Fundamentals: &snap})
	require.NoError(t, err)
	assert.NotContains(t, report.Warnings, WarnFundamentalsUnavailable)
	assert.Equal(t, 3.0, report.Signal.Score)
}

func TestAnalyzeFundamentalsBackendError(t *testing.T) {
	bars := &fakeBars{series: map[string]models.PriceSeries{
		"SPY": seriesFrom("SPY", wave(60, 0.9, 0.0005)),
	}}
	fund := &fakeFundamentals{err: errors.New("redis: connection refused")}

	report, err := newAnalysis(bars, fund, &recordingMetrics{}).Analyze(context.Background(), AnalyzeParams{Symbol: "SPY"})
	require.NoError(t, err)
	assert.Contains(t, report.Warnings, WarnFundamentalsUnavailable)
	// benchmark against itself
	assert.Equal(t, models.BetaComputed, report.Risk.BetaStatus)
	assert.InDelta(t, 1.0, report.Risk.Beta, 1e-9)
}

func TestAnalyzeErrors(t *testing.T) {
	m := &recordingMetrics{}
	uc := newAnalysis(&fakeBars{series: map[string]models.PriceSeries{
		"TINY": seriesFrom("TINY", falling(10)),
	}}, &fakeFundamentals{}, m)

	_, err := uc.Analyze(context.Background(), AnalyzeParams{Symbol: "   "})
	assert.Error(t, err)

	_, err = uc.Analyze(context.Background(), AnalyzeParams{Symbol: "MSFT"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = uc.Analyze(context.Background(), AnalyzeParams{Symbol: "TINY"})
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	assert.Equal(t, []string{"analysis_bars", "analysis_compute"}, m.errors)
	assert.Empty(t, m.analyses)
}
