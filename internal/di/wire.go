//go:build wireinject
// +build wireinject

package di

import (
	"PriceCast/internal/usecase"
	"PriceCast/pkg/config"
	"PriceCast/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideRedis,
	ProvideCache,
	ProvideLimiter,
	ProvideClickHouseClient,
	ProvideSQL,
	ProvideKafkaProducer,
)

var domainSet = wire.NewSet(
	ProvideMarketData,
	ProvideArtifactStore,
	ProvideBarStore,
	ProvideEventPublisher,
	ProvideEngine,
	ProvideTrainingConfig,
	ProvideFitter,
	ProvidePredictor,
	ProvideTrainer,
)

// InitializeApp wires the HTTP API process.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		domainSet,
		ProvideStock,
		ProvideQueue,
		ProvideJobPublisher,
		ProvideHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeWorker wires a process that only consumes training jobs.
func InitializeWorker(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		domainSet,
		ProvideWorkerQueue,
		ProvideJobPublisher,
		ProvideWorker,
	)
	return nil, nil, nil
}

// InitializeTrainer wires the trainer for one-shot commands.
func InitializeTrainer(cfg *config.Config) (*usecase.TrainerUseCase, func(), error) {
	wire.Build(
		infraSet,
		domainSet,
		ProvideNoJobs,
	)
	return nil, nil, nil
}
