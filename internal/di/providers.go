package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"Ares/internal/domain/models"
	"Ares/internal/domain/repository"
	"Ares/internal/handler/api"
	internalrepo "Ares/internal/repository"
	"Ares/internal/service/ratelimit"
	"Ares/internal/services/portfolio"
	"Ares/internal/services/quant"
	"Ares/internal/usecase"
	"Ares/pkg/cache"
	pkgch "Ares/pkg/clickhouse"
	"Ares/pkg/config"
	xhttp "Ares/pkg/http"
	pkgkafka "Ares/pkg/kafka"
	applogger "Ares/pkg/logger"
	"Ares/pkg/metrics"
	"Ares/pkg/server"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ProvideRegistry creates the registry shared by the HTTP, Kafka and
// application collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideLogger builds the root logger. When collection is enabled and Kafka
// is available, error aggregates are shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	log, err := applogger.New(&applogger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		CollectWarn: cfg.Logging.Collect.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collect.Enabled && producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collect.TimeInterval,
			CountThreshold: cfg.Logging.Collect.CountThreshold,
			Topic:          cfg.Logging.Collect.Topic,
			Publisher:      producer,
		})
	}
	return log.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(metrics.WithRegisterer(reg))
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithReadOnly(),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the ClickHouse daily bar repository.
func ProvideBarStore(ch *pkgch.Client, cfg *config.Config, log *applogger.Logger) (repository.BarStore, error) {
	store, err := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.BarsTable)
	if err != nil {
		return nil, err
	}
	store.SetLogger(log)
	return store, nil
}

// ProvideCache returns Redis when enabled, otherwise an in-process cache.
func ProvideCache(cfg *config.Config, log *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		log.Warn("redis disabled, using in-memory cache")
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideFundamentalsStore reads fundamentals snapshots from the cache.
func ProvideFundamentalsStore(c cache.Service) repository.FundamentalsStore {
	return internalrepo.NewCacheFundamentalsStore(c)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts, cfg.Kafka.Compression),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAutoCreateTopics(cfg.Environment == "development"),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the scan request consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroup(cfg.Kafka.Consumer.GroupID, cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook{},
		pkgkafka.LogHook{Log: log.Component("kafka_hook")},
	))
	return consumer, nil
}

// ProvideHub creates the websocket signal feed.
func ProvideHub(cfg *config.Config, log *applogger.Logger) *api.Hub {
	return api.NewHub(log, cfg.Server.StreamBuffer)
}

// ProvideSignalPublisher publishes scan signals to Kafka and the live feed.
func ProvideSignalPublisher(producer *pkgkafka.Producer, hub *api.Hub, cfg *config.Config) repository.SignalPublisher {
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topics.Signals, hub)
}

// ProvideScanRequester returns a nil interface when Kafka is disabled so scans
// run in process.
func ProvideScanRequester(producer *pkgkafka.Producer, cfg *config.Config) repository.ScanRequester {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaScanRequester(producer, cfg.Kafka.Topics.ScanRequests)
}

func quantConfig(cfg *config.Config) quant.Config {
	return quant.Config{
		Indicators: quant.IndicatorConfig{
			RSIPeriod:       cfg.Quant.RSIPeriod,
			BollingerWindow: cfg.Quant.BollingerWindow,
			BollingerK:      cfg.Quant.BollingerK,
		},
		Risk: quant.RiskConfig{
			RiskFreeRate: cfg.Quant.RiskFreeRate,
			TradingDays:  cfg.Quant.TradingDays,
		},
	}
}

// ProvideAnalysisUseCase creates the single-symbol analysis use case.
func ProvideAnalysisUseCase(bars repository.BarStore, fund repository.FundamentalsStore, m repository.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(bars, fund, m, log, usecase.AnalysisConfig{
		Benchmark: cfg.Quant.Benchmark,
		Lookback:  cfg.Quant.LookbackDays,
		Quant:     quantConfig(cfg),
	})
}

// ProvidePortfolioUseCase creates the optimizer use case with the configured presets.
func ProvidePortfolioUseCase(bars repository.BarStore, m repository.Metrics, log *applogger.Logger, cfg *config.Config) (*usecase.PortfolioUseCase, error) {
	scenarios := make([]portfolio.Scenario, 0, len(cfg.Portfolio.Scenarios))
	for _, s := range cfg.Portfolio.Scenarios {
		obj, err := models.ParseObjective(s.Objective)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		scenarios = append(scenarios, portfolio.Scenario{Name: s.Name, Objective: obj, TargetVolatility: s.TargetVolatility})
	}
	return usecase.NewPortfolioUseCase(bars, m, log, usecase.PortfolioConfig{
		Lookback:    cfg.Portfolio.LookbackDays,
		TradingDays: cfg.Quant.TradingDays,
		RiskFree:    cfg.Quant.RiskFreeRate,
		Solver: portfolio.SolverConfig{
			MaxIterations:        cfg.Portfolio.MaxIterations,
			Tolerance:            cfg.Portfolio.Tolerance,
			FeasibilityTolerance: cfg.Portfolio.FeasibilityTolerance,
			MaxOuterIterations:   cfg.Portfolio.MaxOuterIterations,
		},
		Scenarios: scenarios,
	}), nil
}

// ProvideBacktestUseCase creates the historical replay use case.
func ProvideBacktestUseCase(bars repository.BarStore, fund repository.FundamentalsStore, m repository.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(bars, fund, m, log, usecase.BacktestConfig{
		Lookback:       cfg.Backtest.LookbackDays,
		InitialCapital: cfg.Backtest.InitialCapital,
		RSIPeriod:      cfg.Quant.RSIPeriod,
	})
}

// ProvideScanHandler creates the scan request handler. The cache doubles as
// the run lock.
func ProvideScanHandler(analysis *usecase.AnalysisUseCase, fund repository.FundamentalsStore, pub repository.SignalPublisher, c cache.Service, m repository.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.ScanHandler {
	return usecase.NewScanHandler(analysis, fund, pub, c, m, log, usecase.ScanConfig{
		Topic:   cfg.Kafka.Topics.ScanRequests,
		LockTTL: cfg.Scan.LockTTL,
		Timeout: cfg.Scan.Timeout,
	})
}

// ProvideScanUseCase creates the scan trigger.
func ProvideScanUseCase(req repository.ScanRequester, scanner *usecase.ScanHandler, log *applogger.Logger) *usecase.ScanUseCase {
	return usecase.NewScanUseCase(req, scanner, log)
}

// ProvideAnalyticsHandler creates the REST handler.
func ProvideAnalyticsHandler(
	log *applogger.Logger,
	analysis *usecase.AnalysisUseCase,
	pf *usecase.PortfolioUseCase,
	bt *usecase.BacktestUseCase,
	scan *usecase.ScanUseCase,
	c cache.Service,
	ch *pkgch.Client,
	cfg *config.Config,
) *api.AnalyticsHandler {
	opts := []api.Option{
		api.WithRateLimit(ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)),
		api.WithHealthCheck("clickhouse", ch.Health),
	}
	if p, ok := c.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, api.WithHealthCheck("redis", p.Ping))
	}
	if cfg.Server.ReportCacheTTL > 0 {
		opts = append(opts, api.WithReportCache(c, cfg.Server.ReportCacheTTL))
	}
	return api.NewAnalyticsHandler(log, analysis, pf, bt, scan, opts...)
}

// ProvideHTTPServer creates the echo server hosting the REST API and the feed.
func ProvideHTTPServer(cfg *config.Config, log *applogger.Logger, reg *prometheus.Registry, h *api.AnalyticsHandler, hub *api.Hub) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(
		[]xhttp.Handler{h, hub},
		xhttp.WithAddr(cfg.Server.Host, cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins),
		xhttp.WithLogger(log),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithPrometheus(reg, reg),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server and registers everything it
// has to start or close.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	scanHandler *usecase.ScanHandler,
	hub *api.Hub,
	ch *pkgch.Client,
	c cache.Service,
	producer *pkgkafka.Producer,
) *server.App {
	app := server.New(cfg, log, httpServer, consumer)
	if consumer != nil {
		app.Consume(scanHandler)
	}
	app.OnShutdown(hub)

	// closed in reverse: the log collector flushes through the producer
	if producer != nil {
		app.CloseOnExit("kafka producer", producer)
	}
	app.CloseOnExit("log collector", closerFunc(func() error {
		log.RemoveCollector()
		return nil
	}))
	app.CloseOnExit("clickhouse", ch)
	if cl, ok := c.(io.Closer); ok {
		app.CloseOnExit("cache", cl)
	}
	return app
}
