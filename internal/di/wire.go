//go:build wireinject
// +build wireinject

package di

import (
	"PatternScope/pkg/config"
	"PatternScope/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegisterer,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories and outputs
		ProvideMarketData,
		ProvideHistoryStore,
		ProvideReportCache,
		ProvideHub,
		ProvideReportPipeline,
		ProvideReportPublisher,

		// Use cases
		ProvideNarrator,
		ProvidePatternEngine,
		ProvideAnalysisUseCase,
		ProvideAnalysisRequestHandler,

		// Transport
		ProvidePatternsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
