//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"Ares/pkg/config"
	"Ares/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideRegistry,
		ProvideMetrics,
		ProvideLogger,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarStore,
		ProvideFundamentalsStore,
		ProvideHub,
		ProvideSignalPublisher,
		ProvideScanRequester,

		// Use cases
		ProvideAnalysisUseCase,
		ProvidePortfolioUseCase,
		ProvideBacktestUseCase,
		ProvideScanHandler,
		ProvideScanUseCase,

		// Transport and application server
		ProvideAnalyticsHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
