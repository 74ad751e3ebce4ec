package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"Ares/internal/domain/models"
	"Ares/internal/service/ratelimit"
	"Ares/internal/usecase"
	"Ares/pkg/cache"
	xhttp "Ares/pkg/http"
	xlogger "Ares/pkg/logger"
	"Ares/pkg/util"
)

type PortfolioService interface {
	Optimize(ctx context.Context, p usecase.OptimizeParams) (*models.PortfolioSolution, error)
	Scenarios(ctx context.Context, p usecase.ScenariosParams) (*models.PortfolioReport, error)
}

type BacktestService interface {
	Run(ctx context.Context, p usecase.BacktestParams) (*models.BacktestResult, error)
}

type ScanService interface {
	Trigger(ctx context.Context, symbols []string) (string, error)
}

// AnalyticsHandler serves the analysis, portfolio, backtest and scan endpoints.
type AnalyticsHandler struct {
	logger    *xlogger.Logger
	analysis  usecase.Analyzer
	portfolio PortfolioService
	backtest  BacktestService
	scan      ScanService
	cache     cache.Service
	cacheTTL  time.Duration
	limiter   *ratelimit.Limiter
	checks    []healthCheck
}

type healthCheck struct {
	name  string
	check func(context.Context) error
}

type Option func(*AnalyticsHandler)

// WithReportCache caches analysis reports for ttl.
func WithReportCache(c cache.Service, ttl time.Duration) Option {
	return func(h *AnalyticsHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithHealthCheck adds a dependency check to /healthz.
func WithHealthCheck(name string, check func(context.Context) error) Option {
	return func(h *AnalyticsHandler) {
		if check != nil {
			h.checks = append(h.checks, healthCheck{name: name, check: check})
		}
	}
}

// WithRateLimit limits the portfolio endpoints.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return func(h *AnalyticsHandler) { h.limiter = l }
}

func NewAnalyticsHandler(logger *xlogger.Logger, analysis usecase.Analyzer, portfolio PortfolioService, backtest BacktestService, scan ScanService, opts ...Option) *AnalyticsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &AnalyticsHandler{
		logger:    logger.Component("api"),
		analysis:  analysis,
		portfolio: portfolio,
		backtest:  backtest,
		scan:      scan,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/analysis", h.Analysis)
	g.GET("/backtest", h.Backtest)
	g.POST("/scan", h.Scan)

	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, h.limiter.Middleware())
	}
	pg := g.Group("/portfolio", mw...)
	pg.POST("/optimize", h.Optimize)
	pg.POST("/scenarios", h.Scenarios)
}

// Health reports "ok" when every check passes and 503 "degraded" otherwise.
func (h *AnalyticsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for _, hc := range h.checks {
		if err := hc.check(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("dependency", hc.name), xlogger.Error(err))
			status[hc.name] = "down"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[hc.name] = "up"
	}
	return xhttp.DataResponse(c, code, status)
}

func (h *AnalyticsHandler) Analysis(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var asOf time.Time
	if req.AsOf != "" {
		t, ok := util.ParseTime(req.AsOf)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.FormatError("as_of", "as_of must be a date or timestamp"))
		}
		asOf = util.EndOfDay(t)
	}

	symbol := util.NormalizeSymbol(req.Symbol)
	cacheKey := cache.GenerateKeyWithParams("report", symbol, req.Lookback, asOf)
	ctx := c.Request().Context()
	if h.cache != nil {
		var cached models.AnalysisReport
		err := h.cache.Get(ctx, cacheKey, &cached)
		switch {
		case err == nil:
			h.logger.Debug("analysis cache_hit", xlogger.String("key", cacheKey))
			return xhttp.SuccessResponse(c, &cached)
		case !errors.Is(err, cache.ErrCacheMiss):
			h.logger.Warn("analysis cache_get_error", xlogger.Error(err))
		}
	}

	report, err := h.analysis.Analyze(ctx, usecase.AnalyzeParams{Symbol: symbol, Lookback: req.Lookback, AsOf: asOf})
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, report, h.cacheTTL); err != nil {
			h.logger.Warn("analysis cache_set_error", xlogger.Error(err))
		}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, report)
}

func (h *AnalyticsHandler) Optimize(c echo.Context) error {
	req := &models.OptimizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	objective, err := models.ParseObjective(req.Objective)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	sol, err := h.portfolio.Optimize(c.Request().Context(), usecase.OptimizeParams{
		Symbols:          req.Symbols,
		Objective:        objective,
		TargetVolatility: req.TargetVolatility,
		Lookback:         req.Lookback,
	})
	if err != nil {
		return h.fail(c, "optimize", err)
	}
	return xhttp.SuccessResponse(c, sol)
}

func (h *AnalyticsHandler) Scenarios(c echo.Context) error {
	req := &models.ScenariosRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	report, err := h.portfolio.Scenarios(c.Request().Context(), usecase.ScenariosParams{
		Symbols:  req.Symbols,
		Lookback: req.Lookback,
	})
	if err != nil {
		return h.fail(c, "scenarios", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *AnalyticsHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params := usecase.BacktestParams{
		Symbol:   req.Symbol,
		Capital:  req.Capital,
		Lookback: req.Lookback,
	}
	for _, r := range []struct {
		field, raw string
		dst        *time.Time
		endOfDay   bool
	}{
		{"from", req.From, &params.From, false},
		{"to", req.To, &params.To, true},
	} {
		if r.raw == "" {
			continue
		}
		t, ok := util.ParseTime(r.raw)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.FormatError(r.field, r.field+" must be a date or timestamp"))
		}
		if r.endOfDay {
			t = util.EndOfDay(t)
		}
		*r.dst = t
	}
	res, err := h.backtest.Run(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "backtest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) Scan(c echo.Context) error {
	req := &models.ScanTriggerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	runID, err := h.scan.Trigger(c.Request().Context(), req.Symbols)
	if err != nil {
		return h.fail(c, "scan", err)
	}
	return xhttp.AcceptedResponse(c, map[string]string{"run_id": runID})
}

func (h *AnalyticsHandler) fail(c echo.Context, endpoint string, err error) error {
	mapped := toAppError(err)
	if mapped == err {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" request rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, mapped)
}
