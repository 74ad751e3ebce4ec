package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"Ares/internal/domain/models"
	domrepo "Ares/internal/domain/repository"
	"Ares/internal/services/backtest"
	"Ares/pkg/logger"
	"Ares/pkg/util"
)

type BacktestConfig struct {
	Lookback       int
	InitialCapital float64
	RSIPeriod      int
}

// BacktestUseCase replays the signal rules over stored history.
type BacktestUseCase struct {
	bars         domrepo.BarStore
	fundamentals domrepo.FundamentalsStore
	metrics      domrepo.Metrics
	log          *logger.Logger
	cfg          BacktestConfig
}

func NewBacktestUseCase(bars domrepo.BarStore, fundamentals domrepo.FundamentalsStore, metrics domrepo.Metrics, log *logger.Logger, cfg BacktestConfig) *BacktestUseCase {
	d := backtest.DefaultConfig()
	if cfg.Lookback <= 0 {
		cfg.Lookback = 1260
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = d.InitialCapital.InexactFloat64()
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = d.RSIPeriod
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BacktestUseCase{bars: bars, fundamentals: fundamentals, metrics: metrics, log: log.Component("backtest"), cfg: cfg}
}

// BacktestParams selects the replayed history. A non-zero From replays the
// bars in [From, To] (zero To means now) instead of the latest Lookback bars.
type BacktestParams struct {
	Symbol   string
	Capital  float64
	Lookback int
	From     time.Time
	To       time.Time
}

func (uc *BacktestUseCase) Run(ctx context.Context, p BacktestParams) (*models.BacktestResult, error) {
	start := time.Now()
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Lookback <= 0 {
		p.Lookback = uc.cfg.Lookback
	}
	if p.Capital <= 0 {
		p.Capital = uc.cfg.InitialCapital
	}

	series, err := uc.loadBars(ctx, p)
	if err != nil {
		uc.metrics.RecordError("backtest_bars")
		return nil, fmt.Errorf("load bars %s: %w", p.Symbol, err)
	}

	fund, err := uc.fundamentals.GetFundamentals(ctx, p.Symbol)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		uc.log.Warn("no fundamentals snapshot, replaying with zero values", logger.String("symbol", p.Symbol))
	default:
		uc.log.Error("fundamentals lookup failed", logger.String("symbol", p.Symbol), logger.Error(err))
	}

	res, err := backtest.Run(series, fund, backtest.Config{
		InitialCapital: decimal.NewFromFloat(p.Capital),
		RSIPeriod:      uc.cfg.RSIPeriod,
	})
	if err != nil {
		uc.metrics.RecordError("backtest_run")
		return nil, fmt.Errorf("backtest %s: %w", p.Symbol, err)
	}
	res.Symbol = p.Symbol
	uc.metrics.RecordLatency("backtest", time.Since(start).Seconds())
	uc.log.Debug("backtest complete",
		logger.String("symbol", p.Symbol),
		logger.Int("trades", len(res.Trades)),
		logger.Bool("beats_buy_and_hold", res.BeatsBuyAndHold))
	return &res, nil
}

func (uc *BacktestUseCase) loadBars(ctx context.Context, p BacktestParams) (models.PriceSeries, error) {
	if p.From.IsZero() {
		return uc.bars.GetLatestNBars(ctx, p.Symbol, p.Lookback, time.Time{})
	}
	to := p.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if to.Before(p.From) {
		return models.PriceSeries{}, fmt.Errorf("%w: range ends before it starts", models.ErrInvalidSeries)
	}
	return uc.bars.GetBars(ctx, p.Symbol, p.From, to)
}
