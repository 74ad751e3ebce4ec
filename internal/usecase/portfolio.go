package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Ares/internal/domain/models"
	domrepo "Ares/internal/domain/repository"
	"Ares/internal/services/features"
	"Ares/internal/services/portfolio"
	"Ares/pkg/logger"
	"Ares/pkg/util"
)

// PortfolioConfig holds the solver and annualization parameters.
type PortfolioConfig struct {
	Lookback    int
	TradingDays int
	RiskFree    float64
	Solver      portfolio.SolverConfig
	Scenarios   []portfolio.Scenario
	Timeout     time.Duration
}

// PortfolioUseCase loads aligned returns for a basket and runs the optimizer.
type PortfolioUseCase struct {
	bars    domrepo.BarStore
	metrics domrepo.Metrics
	log     *logger.Logger
	cfg     PortfolioConfig
}

func NewPortfolioUseCase(bars domrepo.BarStore, metrics domrepo.Metrics, log *logger.Logger, cfg PortfolioConfig) *PortfolioUseCase {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 504
	}
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = features.TradingDaysPerYear
	}
	if len(cfg.Scenarios) == 0 {
		cfg.Scenarios = portfolio.DefaultScenarios()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PortfolioUseCase{bars: bars, metrics: metrics, log: log.Component("portfolio"), cfg: cfg}
}

type OptimizeParams struct {
	Symbols          []string
	Objective        models.Objective
	TargetVolatility float64
	Lookback         int
}

// Optimize solves a single objective and returns weights rounded to 4 decimals.
func (uc *PortfolioUseCase) Optimize(ctx context.Context, p OptimizeParams) (*models.PortfolioSolution, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	in, _, err := uc.loadInputs(ctx, p.Symbols, p.Lookback)
	if err != nil {
		return nil, err
	}

	sc := portfolio.Scenario{Objective: p.Objective, TargetVolatility: p.TargetVolatility}
	sol, err := portfolio.Optimize(in, sc, uc.cfg.Solver)
	uc.metrics.RecordLatency("optimize", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordOptimization(string(p.Objective), "failed")
		uc.log.Warn("optimization failed",
			logger.Strings("symbols", in.Assets), logger.String("objective", string(p.Objective)), logger.Error(err))
		return nil, err
	}
	uc.metrics.RecordOptimization(string(p.Objective), "ok")

	out := sol.Rounded()
	return &out, nil
}

type ScenariosParams struct {
	Symbols  []string
	Lookback int
}

// Scenarios runs the configured scenario batch and reports the return correlation matrix.
func (uc *PortfolioUseCase) Scenarios(ctx context.Context, p ScenariosParams) (*models.PortfolioReport, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	in, returns, err := uc.loadInputs(ctx, p.Symbols, p.Lookback)
	if err != nil {
		return nil, err
	}

	results := portfolio.RunScenarios(ctx, in, uc.cfg.Scenarios, uc.cfg.Solver)
	for i, r := range results {
		objective := string(uc.cfg.Scenarios[i].Objective)
		if r.Solution == nil {
			uc.metrics.RecordOptimization(objective, "failed")
			continue
		}
		uc.metrics.RecordOptimization(objective, "ok")
		rounded := r.Solution.Rounded()
		results[i].Solution = &rounded
	}
	uc.metrics.RecordLatency("scenarios", time.Since(start).Seconds())

	return &models.PortfolioReport{
		Assets:       in.Assets,
		Observations: len(returns),
		Correlation:  portfolio.Correlation(returns),
		Scenarios:    results,
	}, nil
}

// loadInputs fetches every symbol in parallel, joins closes on common dates
// and annualizes the simple return moments.
func (uc *PortfolioUseCase) loadInputs(ctx context.Context, symbols []string, lookback int) (portfolio.Inputs, [][]float64, error) {
	symbols = util.NormalizeSymbols(symbols)
	if len(symbols) < 2 {
		return portfolio.Inputs{}, nil, fmt.Errorf("%w: portfolio needs 2 distinct symbols, got %d",
			models.ErrInsufficientData, len(symbols))
	}
	if lookback <= 0 {
		lookback = uc.cfg.Lookback
	}

	type item struct {
		idx    int
		series models.PriceSeries
		err    error
	}
	ch := make(chan item, len(symbols))
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			s, err := uc.bars.GetLatestNBars(ctx, sym, lookback, time.Time{})
			ch <- item{i, s, err}
		}(i, sym)
	}
	go func() { wg.Wait(); close(ch) }()

	series := make([]models.PriceSeries, len(symbols))
	var firstErr error
	for it := range ch {
		if it.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("load bars %s: %w", symbols[it.idx], it.err)
			}
			continue
		}
		series[it.idx] = it.series
	}
	if firstErr != nil {
		uc.metrics.RecordError("portfolio_bars")
		return portfolio.Inputs{}, nil, firstErr
	}
	for _, s := range series {
		if err := s.Validate(); err != nil {
			return portfolio.Inputs{}, nil, fmt.Errorf("%s: %w", s.Symbol, err)
		}
	}

	aligned, err := features.AlignCloses(series)
	if err != nil {
		return portfolio.Inputs{}, nil, err
	}
	returns := aligned.SimpleReturnMatrix()
	in, err := portfolio.NewInputs(symbols, returns, float64(uc.cfg.TradingDays), uc.cfg.RiskFree)
	if err != nil {
		return portfolio.Inputs{}, nil, err
	}
	uc.log.Debug("portfolio inputs ready",
		logger.Strings("symbols", symbols), logger.Int("observations", len(returns)))
	return in, returns, nil
}
