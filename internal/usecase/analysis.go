package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Ares/internal/domain/models"
	domrepo "Ares/internal/domain/repository"
	"Ares/internal/services/features"
	"Ares/internal/services/quant"
	"Ares/internal/services/signal"
	"Ares/pkg/logger"
	"Ares/pkg/util"
)

// Report warnings added by the analysis use case.
const (
	WarnBenchmarkUnavailable    = "benchmark_unavailable"
	WarnFundamentalsMissing     = "fundamentals_missing"
	WarnFundamentalsUnavailable = "fundamentals_unavailable"
)

// AnalysisConfig holds the parameters shared by every analysis run.
type AnalysisConfig struct {
	Benchmark string
	Lookback  int
	Quant     quant.Config
	Timeout   time.Duration
}

// AnalysisUseCase loads bars and fundamentals for a symbol and runs the quant pipeline.
type AnalysisUseCase struct {
	bars         domrepo.BarStore
	fundamentals domrepo.FundamentalsStore
	metrics      domrepo.Metrics
	log          *logger.Logger
	cfg          AnalysisConfig
}

func NewAnalysisUseCase(bars domrepo.BarStore, fundamentals domrepo.FundamentalsStore, metrics domrepo.Metrics, log *logger.Logger, cfg AnalysisConfig) *AnalysisUseCase {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 504
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AnalysisUseCase{
		bars:         bars,
		fundamentals: fundamentals,
		metrics:      metrics,
		log:          log.Component("analysis"),
		cfg:          cfg,
	}
}

type AnalyzeParams struct {
	Symbol   string
	Lookback int
	AsOf     time.Time
	// Fundamentals, when set, is used instead of a store lookup.
	Fundamentals *models.Fundamentals
}

func (uc *AnalysisUseCase) Analyze(ctx context.Context, p AnalyzeParams) (*models.AnalysisReport, error) {
	start := time.Now()
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Lookback <= 0 {
		p.Lookback = uc.cfg.Lookback
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	benchmark := util.NormalizeSymbol(uc.cfg.Benchmark)
	withBenchmark := benchmark != "" && benchmark != p.Symbol

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.bars.GetLatestNBars(ctx, p.Symbol, p.Lookback, p.AsOf)
		ch <- item{"bars", v, err}
	}()
	if withBenchmark {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.bars.GetLatestNBars(ctx, benchmark, p.Lookback, p.AsOf)
			ch <- item{"benchmark", v, err}
		}()
	}
	if p.Fundamentals != nil {
		ch <- item{"fundamentals", *p.Fundamentals, nil}
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.fundamentals.GetFundamentals(ctx, p.Symbol)
			ch <- item{"fundamentals", v, err}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	var (
		series      models.PriceSeries
		benchSeries models.PriceSeries
		fund        models.Fundamentals
		barsErr     error
		warnings    []string
	)
	for it := range ch {
		switch it.name {
		case "bars":
			if it.err != nil {
				barsErr = it.err
				continue
			}
			series = it.val.(models.PriceSeries)
		case "benchmark":
			if it.err != nil {
				uc.log.Warn("benchmark bars unavailable",
					logger.String("symbol", p.Symbol), logger.String("benchmark", benchmark), logger.Error(it.err))
				warnings = append(warnings, fmt.Sprintf("%s: %s", WarnBenchmarkUnavailable, benchmark))
				continue
			}
			benchSeries = it.val.(models.PriceSeries)
		case "fundamentals":
			switch {
			case it.err == nil:
				fund = it.val.(models.Fundamentals)
			case errors.Is(it.err, models.ErrNotFound):
				warnings = append(warnings, WarnFundamentalsMissing)
			default:
				uc.log.Error("fundamentals lookup failed", logger.String("symbol", p.Symbol), logger.Error(it.err))
				warnings = append(warnings, WarnFundamentalsUnavailable)
			}
		}
	}
	if barsErr != nil {
		uc.metrics.RecordError("analysis_bars")
		return nil, fmt.Errorf("load bars %s: %w", p.Symbol, barsErr)
	}
	if !withBenchmark {
		benchSeries = series
	}

	report, err := uc.analyzeSeries(series, benchSeries, fund)
	if err != nil {
		uc.metrics.RecordError("analysis_compute")
		return nil, fmt.Errorf("analyze %s: %w", p.Symbol, err)
	}
	report.Symbol = p.Symbol
	report.Warnings = append(warnings, report.Warnings...)

	uc.metrics.RecordAnalysis(string(report.Signal.Verdict))
	if report.Risk.BetaStatus == models.BetaDefaulted {
		uc.metrics.RecordBetaDefaulted()
	}
	uc.metrics.RecordLatency("analysis", time.Since(start).Seconds())
	uc.log.Debug("analysis complete",
		logger.String("symbol", p.Symbol),
		logger.Int("bars", report.Bars),
		logger.String("verdict", string(report.Signal.Verdict)),
		logger.Duration("elapsed", time.Since(start)))
	return report, nil
}

func (uc *AnalysisUseCase) analyzeSeries(series, benchmark models.PriceSeries, fund models.Fundamentals) (*models.AnalysisReport, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: no bars", models.ErrInsufficientData)
	}
	var benchReturns models.ReturnSeries
	if benchmark.Len() > 1 {
		benchReturns = features.ComputeLogReturns(benchmark)
	}
	ind, risk, err := quant.Analyze(series, benchReturns, uc.cfg.Quant)
	if err != nil {
		return nil, err
	}
	last := series.Last()
	sig := signal.Synthesize(signal.Inputs{RSI: ind.LatestRSI(), Fundamentals: fund})

	return &models.AnalysisReport{
		Symbol:       series.Symbol,
		AsOf:         last.Time,
		Bars:         series.Len(),
		LastPrice:    last.Close,
		Indicators:   ind.Latest(),
		Trend:        ind.Trend,
		Risk:         risk,
		Fundamentals: fund,
		Signal:       sig,
		Warnings:     risk.Warnings,
	}, nil
}
