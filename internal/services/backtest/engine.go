// Package backtest replays the signal rules bar by bar and compares the result with buy and hold.
package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"Ares/internal/domain/models"
	"Ares/internal/services/quant"
	"Ares/internal/services/signal"
)

// Config controls a replay.
type Config struct {
	InitialCapital decimal.Decimal
	RSIPeriod      int
}

// DefaultConfig starts with 10,000 of cash and RSI(14).
func DefaultConfig() Config {
	return Config{InitialCapital: decimal.NewFromInt(10000), RSIPeriod: 14}
}

var hundred = decimal.NewFromInt(100)

// Run replays Synthesize over every bar. Fundamentals are held static for the whole run.
// A score ≥ 0.5 spends all cash on whole shares; a score ≤ −0.5 liquidates the position.
func Run(series models.PriceSeries, fundamentals models.Fundamentals, cfg Config) (models.BacktestResult, error) {
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = DefaultConfig().RSIPeriod
	}
	if !cfg.InitialCapital.IsPositive() {
		return models.BacktestResult{}, fmt.Errorf("initial capital must be positive, got %s", cfg.InitialCapital)
	}
	if err := series.Validate(); err != nil {
		return models.BacktestResult{}, err
	}
	if series.Len() < 2 {
		return models.BacktestResult{}, fmt.Errorf("%w: backtest needs 2 bars, got %d", models.ErrInsufficientData, series.Len())
	}

	rsi := quant.RSI(series.Closes(), cfg.RSIPeriod)
	cash := cfg.InitialCapital
	var shares int64
	trades := make([]models.SimulatedTrade, 0)

	for i, bar := range series.Bars {
		price := decimal.NewFromFloat(bar.Close)
		sig := signal.Synthesize(signal.Inputs{RSI: rsi[i], Fundamentals: fundamentals})

		switch {
		case sig.Score >= signal.BuyAt:
			if cash.GreaterThan(price) {
				n := cash.Div(price).Floor().IntPart()
				if n > 0 {
					cash = cash.Sub(price.Mul(decimal.NewFromInt(n)))
					shares += n
					trades = append(trades, models.SimulatedTrade{
						Time: bar.Time, Side: models.SideBuy, Shares: n, Price: price, Verdict: sig.Verdict,
					})
				}
			}
		case sig.Score <= signal.SellAt:
			if shares > 0 {
				cash = cash.Add(price.Mul(decimal.NewFromInt(shares)))
				trades = append(trades, models.SimulatedTrade{
					Time: bar.Time, Side: models.SideSell, Shares: shares, Price: price, Verdict: sig.Verdict,
				})
				shares = 0
			}
		}
	}

	first := decimal.NewFromFloat(series.Bars[0].Close)
	last := decimal.NewFromFloat(series.Last().Close)
	final := cash.Add(last.Mul(decimal.NewFromInt(shares)))
	roi := final.Sub(cfg.InitialCapital).Div(cfg.InitialCapital).Mul(hundred).Round(4)
	bh := last.Sub(first).Div(first).Mul(hundred).Round(4)

	return models.BacktestResult{
		Symbol:          series.Symbol,
		From:            series.Bars[0].Time,
		To:              series.Last().Time,
		InitialCapital:  cfg.InitialCapital,
		FinalValue:      final.Round(2),
		StrategyROI:     roi,
		BuyHoldROI:      bh,
		BeatsBuyAndHold: roi.GreaterThan(bh),
		Trades:          trades,
	}, nil
}
