//go:build wireinject
// +build wireinject

package di

import (
	"MarketGate/pkg/config"
	"MarketGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideAuditSink,

		// Core services
		ProvideMemoryCache,
		ProvideRecordCache,
		ProvideLimiter,
		ProvideNormalizer,
		ProvideWorkerPool,
		ProvideDataProvider,
		ProvideApprovalRegistry,
		ProvideValidator,
		ProvideScreeningEngine,

		// Use cases and transport
		ProvideGate,
		ProvideHandler,
		ProvideApprovalsConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
