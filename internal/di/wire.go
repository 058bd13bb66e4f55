//go:build wireinject
// +build wireinject

package di

import (
	"SignalFlow/pkg/config"
	"SignalFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup releases infrastructure clients and must run after App.Run returns.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvidePredictionPublisher,
		ProvideCandleStore,

		// Services
		ProvideMarketDataProvider,
		ProvideIndicatorCalculator,
		ProvideJudgmentOracle,

		// Use cases
		ProvideAnalysisUseCase,
		ProvideKafkaRequestsHandler,

		// Transport
		ProvideKafkaConsumer,
		ProvideAnalysisHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
