package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"PatternScope/internal/domain/repository"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/handler/api"
	mid "PatternScope/internal/middleware"
	internalrepo "PatternScope/internal/repository"
	icache "PatternScope/internal/service/cache"
	"PatternScope/internal/service/stream"
	"PatternScope/internal/services/narrative"
	"PatternScope/internal/usecase"
	pkgch "PatternScope/pkg/clickhouse"
	"PatternScope/pkg/config"
	pkgkafka "PatternScope/pkg/kafka"
	applogger "PatternScope/pkg/logger"
	"PatternScope/pkg/metrics"
	"PatternScope/pkg/server"
)

// ProvideLogger creates the application logger from log.* settings.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", "patternscope")), nil
}

// ProvideRegisterer returns the registry served on /metrics.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) repository.Metrics {
	return metrics.New(reg)
}

// ProvideClickHouseClient creates a ClickHouse client and the tables it serves.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{fmt.Sprintf(internalrepo.SamplesSchema, cfg.ClickHouse.SamplesTable)}
	if cfg.History.Backend == "clickhouse" {
		stmts = append(stmts, fmt.Sprintf(internalrepo.HistorySchema, internalrepo.DefaultHistoryTable))
	}
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisClient returns nil unless Redis backs the cache or the history.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled && cfg.History.Backend != "redis" {
		return nil
	}
	return icache.NewRedisClient(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideMarketData creates the ClickHouse sample reader.
func ProvideMarketData(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.MarketDataProvider {
	return internalrepo.NewCHMarketData(ch, cfg.ClickHouse.SamplesTable, l)
}

// ProvideHistoryStore selects the history backend from history.backend.
func ProvideHistoryStore(cfg *config.Config, ch *pkgch.Client, rdb *redis.Client, l *applogger.Logger) repository.HistoryStore {
	switch cfg.History.Backend {
	case "clickhouse":
		return internalrepo.NewCHHistory(ch, l)
	case "redis":
		return internalrepo.NewRedisHistory(rdb)
	default:
		return internalrepo.NewMemoryHistory()
	}
}

// ProvideReportCache shares cached reports through Redis when enabled.
func ProvideReportCache(cfg *config.Config, rdb *redis.Client) icache.BytesCache {
	if cfg.Redis.Enabled && rdb != nil {
		return icache.NewRedisCache(rdb)
	}
	return icache.NewTTLCache()
}

// ProvideHub creates the WebSocket report hub.
func ProvideHub(l *applogger.Logger) *stream.Hub {
	return stream.NewHub(l)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReportPipeline buffers Kafka report delivery; nil without a producer.
func ProvideReportPipeline(cfg *config.Config, producer *pkgkafka.Producer, m repository.Metrics) *mid.ReportPipeline {
	if producer == nil {
		return nil
	}
	kp := internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportTopic)
	return mid.NewReportPipeline(kp, m,
		mid.WithBufferSize(1024),
		mid.WithBackoff(cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
}

// ProvideReportPublisher fans reports out to the hub and, when enabled, Kafka.
func ProvideReportPublisher(hub *stream.Hub, pipeline *mid.ReportPipeline) repository.ReportPublisher {
	pubs := internalrepo.MultiPublisher{hub}
	if pipeline != nil {
		pubs = append(pubs, pipeline)
	}
	return pubs
}

// ProvideNarrator creates the narrative client.
func ProvideNarrator(cfg *config.Config, l *applogger.Logger) domsvc.Narrator {
	return narrative.NewNarrator(cfg, l)
}

// ProvidePatternEngine creates the detector engine.
func ProvidePatternEngine(history repository.HistoryStore, m repository.Metrics, l *applogger.Logger, pub repository.ReportPublisher) *usecase.PatternEngine {
	return usecase.NewPatternEngine(history, m, l, usecase.WithPublisher(pub))
}

// ProvideAnalysisUseCase creates the analysis use case.
func ProvideAnalysisUseCase(
	cfg *config.Config,
	provider repository.MarketDataProvider,
	engine *usecase.PatternEngine,
	narrator domsvc.Narrator,
	history repository.HistoryStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(provider, engine, narrator, history, m, l, cfg.Analysis.FetchTimeout,
		usecase.WithDefaultSamples(cfg.Analysis.DefaultSamples),
	)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg prometheus.Registerer) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideAnalysisRequestHandler handles analysis requests from kafka.request_topic.
func ProvideAnalysisRequestHandler(cfg *config.Config, uc *usecase.AnalysisUseCase, m repository.Metrics, l *applogger.Logger) *usecase.AnalysisRequestHandler {
	return usecase.NewAnalysisRequestHandler(cfg.Kafka.RequestTopic, uc, m, l)
}

// ProvidePatternsHandler creates the Echo routes.
func ProvidePatternsHandler(cfg *config.Config, l *applogger.Logger, uc *usecase.AnalysisUseCase, hub *stream.Hub, cache icache.BytesCache) *api.PatternsEchoHandler {
	return api.NewPatternsEchoHandler(l, uc, hub, cache, api.PatternsConfig{
		CacheTTL:     cfg.Analysis.CacheTTL,
		RateCapacity: float64(cfg.Analysis.RateLimit.Capacity),
		RateRefill:   cfg.Analysis.RateLimit.Refill,
	})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.PatternsEchoHandler,
	consumer *pkgkafka.Consumer,
	kh *usecase.AnalysisRequestHandler,
	producer *pkgkafka.Producer,
	pipeline *mid.ReportPipeline,
	hub *stream.Hub,
	ch *pkgch.Client,
	rdb *redis.Client,
) *server.App {
	return server.New(cfg, l, h, server.Deps{
		Consumer: consumer,
		Handler:  kh,
		Producer: producer,
		Pipeline: pipeline,
		Hub:      hub,
		CH:       ch,
		Redis:    rdb,
	})
}
