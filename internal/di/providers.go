package di

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/service/twelvedata"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/lstm"
	"PriceCast/internal/services/training"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/cache"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	"PriceCast/pkg/sqldb"
	"PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/queue"
	"PriceCast/pkg/server"

	"github.com/jmoiron/sqlx"
)

// ProvideLogger builds the process logger from the logging section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logging.Config)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics registers the service metrics on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

// ProvideRedis connects to Redis when enabled; otherwise it returns nil and
// the cache and locks stay in process.
func ProvideRedis(cfg *config.Config, l *logger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	l.Info("redis connected", logger.String("addr", cfg.Redis.Addr))
	return rc, func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", logger.Error(err))
		}
	}, nil
}

// ProvideCache layers an in-process cache over Redis (when present).
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
	)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.TwelveData.RequestsPerMinute, cfg.TwelveData.Burst)
}

// ProvideMarketData builds the Twelve Data client.
func ProvideMarketData(cfg *config.Config, c cache.Service, lim *ratelimit.Limiter, rec *metrics.Recorder, l *logger.Logger) repository.MarketData {
	if cfg.TwelveData.APIKey == "" {
		l.Warn("TWELVE_DATA_API_KEY is not set; market data requests will fail")
	}
	return twelvedata.New(cfg.TwelveData.APIKey,
		twelvedata.WithBaseURL(cfg.TwelveData.BaseURL),
		twelvedata.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.TwelveData.Timeout))),
		twelvedata.WithLimiter(lim),
		twelvedata.WithCache(c, cfg.Cache.TTL),
		twelvedata.WithMetrics(rec),
		twelvedata.WithLogger(l),
	)
}

func ProvideArtifactStore(cfg *config.Config, l *logger.Logger) (repository.ArtifactStore, error) {
	s, err := internalrepo.NewFileArtifactStore(cfg.Model.Dir, l)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	return s, nil
}

// ProvideClickHouseClient connects and creates the bars table when the
// clickhouse bar backend is selected; otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Bars.Backend != "clickhouse" {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.BarSchema(client.Database())); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", logger.String("database", client.Database()))
	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", logger.Error(err))
		}
	}, nil
}

// ProvideSQL opens the pool for the postgres or sqlite bar backends.
func ProvideSQL(cfg *config.Config, l *logger.Logger) (*sqlx.DB, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Bars.Backend {
	case "postgres":
		pc := cfg.Postgres
		db, err = sqldb.OpenPostgres(ctx, sqldb.PostgresConfig{
			Host:           pc.Host,
			Port:           pc.Port,
			User:           pc.User,
			Password:       pc.Password,
			Database:       pc.Database,
			SSLMode:        pc.SSLMode,
			ConnectTimeout: pc.ConnectTimeout,
			Pool: sqldb.Pool{
				MaxOpenConns:    pc.MaxOpenConns,
				MaxIdleConns:    pc.MaxIdleConns,
				ConnMaxLifetime: pc.ConnMaxLifetime,
			},
		})
	case "sqlite":
		db, err = sqldb.OpenSQLite(ctx, cfg.Bars.SQLitePath)
	default:
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	l.Info("sql bar store ready", logger.String("driver", db.DriverName()))
	return db, func() {
		if err := db.Close(); err != nil {
			l.Warn("sql close error", logger.Error(err))
		}
	}, nil
}

// ProvideBarStore selects the history backend named by bars.backend.
func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, db *sqlx.DB, l *logger.Logger) (repository.BarStore, error) {
	switch cfg.Bars.Backend {
	case "clickhouse":
		return internalrepo.NewClickHouseBarStore(ch, l), nil
	case "postgres", "sqlite":
		s := internalrepo.NewSQLBarStore(db, l)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.InitSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := internalrepo.NewFileBarStore(cfg.Bars.Dir, cfg.Bars.Backend)
	if err != nil {
		return nil, fmt.Errorf("bar store: %w", err)
	}
	return s, nil
}

// ProvideKafkaProducer creates the event producer when kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithBatch(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreateTopic),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Logging.Collect.Enabled {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collect.FlushInterval,
			CountThreshold: cfg.Logging.Collect.Threshold,
			Topic:          cfg.Logging.Collect.Topic,
			Publisher:      producer,
		})
	}
	l.Info("kafka producer ready", logger.Strings("brokers", cfg.Kafka.Brokers), logger.String("topic", cfg.Kafka.Topic))
	return producer, func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka close error", logger.Error(err))
		}
	}, nil
}

// ProvideEventPublisher publishes lifecycle events to Kafka, or drops them.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

func ProvideEngine(cfg *config.Config) service.Forecaster {
	return forecast.NewEngine(cfg.Forecast.MaxSteps)
}

// ProvideTrainingConfig maps the model section onto the training pipeline.
func ProvideTrainingConfig(cfg *config.Config) training.Config {
	return training.Config{
		Network: lstm.Config{
			Window:       cfg.Model.Window,
			Units:        cfg.Model.Units,
			Dropout:      cfg.Model.Dropout,
			LearningRate: cfg.Model.LearningRate,
			Seed:         cfg.Model.Seed,
		},
		Epochs:        cfg.Model.Epochs,
		BatchSize:     cfg.Model.BatchSize,
		TrainFraction: cfg.Model.TrainFraction,
	}
}

func ProvideFitter(tc training.Config, l *logger.Logger) service.ModelFitter {
	return training.NewPipeline(tc, l)
}

func ProvidePredictor(
	cfg *config.Config,
	store repository.ArtifactStore,
	market repository.MarketData,
	engine service.Forecaster,
	events repository.EventPublisher,
	rec *metrics.Recorder,
	l *logger.Logger,
) *usecase.PredictorUseCase {
	return usecase.NewPredictorUseCase(store, market, engine, usecase.PredictorOptions{
		MaxSteps:     cfg.Forecast.MaxSteps,
		MaxArtifacts: cfg.Cache.MaxArtifacts,
		Events:       events,
		Metrics:      rec,
		Logger:       l,
	})
}

func ProvideStock(market repository.MarketData, predictor *usecase.PredictorUseCase, l *logger.Logger) *usecase.StockUseCase {
	return usecase.NewStockUseCase(market, predictor, l)
}

func queueConfig(cfg *config.Config) *queue.QueueConfig {
	return &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		JobTimeout: cfg.Queue.JobTimeout,
	}
}

// ProvideQueue builds the training queue for the API process. With
// queue.workers set to 0 the API only enqueues and a separate worker trains.
func ProvideQueue(cfg *config.Config, l *logger.Logger, rc *cache.RedisCache) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	mode := queue.ModeProducerConsumer
	if cfg.Queue.Workers <= 0 {
		mode = queue.ModeProducerOnly
	}
	return queue.NewRedisQueue(l, queueConfig(cfg), rc.Client(), mode,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
}

// ProvideWorkerQueue builds a consumer-only queue for the trainer worker.
func ProvideWorkerQueue(cfg *config.Config, l *logger.Logger, rc *cache.RedisCache) (*queue.RedisQueue, error) {
	if rc == nil {
		return nil, fmt.Errorf("worker: redis is required")
	}
	return queue.NewRedisQueue(l, queueConfig(cfg), rc.Client(), queue.ModeConsumerOnly,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue")), nil
}

// ProvideJobPublisher exposes the queue for enqueueing; without one,
// training requests are refused.
func ProvideJobPublisher(q *queue.RedisQueue) queue.Publisher {
	if q == nil {
		return queue.Disabled{}
	}
	return q
}

func ProvideTrainer(
	cfg *config.Config,
	market repository.MarketData,
	bars repository.BarStore,
	store repository.ArtifactStore,
	fitter service.ModelFitter,
	locks cache.Service,
	jobs queue.Publisher,
	events repository.EventPublisher,
	predictor *usecase.PredictorUseCase,
	rec *metrics.Recorder,
	l *logger.Logger,
) *usecase.TrainerUseCase {
	return usecase.NewTrainerUseCase(usecase.TrainerDeps{
		Market:    market,
		Bars:      bars,
		Store:     store,
		Fitter:    fitter,
		Locker:    locks,
		Jobs:      jobs,
		Events:    events,
		Artifacts: predictor,
		Metrics:   rec,
		Logger:    l,
		LockTTL:   cfg.Cache.LockTTL,
	})
}

// ProvideHandler registers the stock, forecast and training routes.
func ProvideHandler(l *logger.Logger, stock *usecase.StockUseCase, predictor *usecase.PredictorUseCase, trainer *usecase.TrainerUseCase) xhttp.Handler {
	return xhttp.Handlers{
		api.NewStockHandler(l, stock),
		api.NewForecastHandler(l, predictor),
		api.NewTrainHandler(l, trainer),
	}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h, l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
	)
}

// ProvideApp assembles the API process. The trainer job is registered when
// the queue runs workers in process.
func ProvideApp(cfg *config.Config, l *logger.Logger, srv *xhttp.Server, q *queue.RedisQueue, trainer *usecase.TrainerUseCase) *server.App {
	return server.New(l, srv, q, cfg.Server.ShutdownTimeout, trainer.Job())
}

// ProvideWorker assembles a queue-only process that runs training jobs.
func ProvideWorker(cfg *config.Config, l *logger.Logger, q *queue.RedisQueue, trainer *usecase.TrainerUseCase) *server.App {
	return server.New(l, nil, q, cfg.Server.ShutdownTimeout, trainer.Job())
}

// ProvideNoJobs is the publisher for one-shot commands that train inline.
func ProvideNoJobs() queue.Publisher { return queue.Disabled{} }
