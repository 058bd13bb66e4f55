package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/domain/service"
	"SignalFlow/internal/handler/api"
	internalrepo "SignalFlow/internal/repository"
	"SignalFlow/internal/service/ratelimit"
	"SignalFlow/internal/services/indicators"
	"SignalFlow/internal/services/marketdata"
	"SignalFlow/internal/services/oracle"
	"SignalFlow/internal/usecase"
	"SignalFlow/pkg/cache"
	pkgch "SignalFlow/pkg/clickhouse"
	"SignalFlow/pkg/config"
	xhttp "SignalFlow/pkg/http"
	pkgkafka "SignalFlow/pkg/kafka"
	applogger "SignalFlow/pkg/logger"
	"SignalFlow/pkg/metrics"
	"SignalFlow/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With("env", cfg.Environment), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideCache returns an in-process cache, or Redis fronted by a short
// in-process layer when Redis is enabled.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddrs(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.Timeout),
		cache.WithRedisPrefix("signalflow"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	lc := cache.NewLayeredCache(rc, cfg.Redis.L1TTL)
	l.Info("cache: redis layered", applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))
	return lc, func() {
		if err := lc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}, nil
}

// ProvideClickHouseClient creates a ClickHouse client with the candle schema,
// or nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(net.JoinHostPort(cfg.ClickHouse.Host, strconv.Itoa(cfg.ClickHouse.Port))),
		pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CandleSchema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse: connected and schema ready", applogger.String("db", cfg.ClickHouse.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID(cfg.Kafka.ClientID),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreateTopics),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("kafka: producer ready", applogger.Strings("brokers", cfg.Kafka.Brokers))

	return producer, func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvidePredictionPublisher ships predictions to Kafka, or drops them when
// Kafka is disabled. The producer is closed by its own cleanup.
func ProvidePredictionPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.PredictionPublisher {
	if producer == nil {
		return internalrepo.NopPredictionPublisher{}
	}
	return internalrepo.NewKafkaPredictionPublisher(producer, cfg.Kafka.PredictionsTopic)
}

// ProvideCandleStore returns the ClickHouse candle store, or nil.
func ProvideCandleStore(ch *pkgch.Client, l *applogger.Logger) domrepo.CandleStore {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewCHCandleStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideMarketDataProvider builds the fetch chain:
// source (binance | clickhouse) -> optional recorder -> cache.
func ProvideMarketDataProvider(cfg *config.Config, store domrepo.CandleStore, c cache.Service, l *applogger.Logger) (domrepo.MarketDataProvider, error) {
	var p domrepo.MarketDataProvider
	switch cfg.Market.Source {
	case "clickhouse":
		if store == nil {
			return nil, fmt.Errorf("market source clickhouse: no candle store")
		}
		p = marketdata.NewStoreProvider(store, cfg.Analysis.CandleLimit)
	default:
		p = marketdata.NewBinanceProvider(cfg.Market.BaseURL, cfg.Analysis.CandleLimit, cfg.Market.Timeout)
		if cfg.Market.Record && store != nil {
			p = marketdata.NewRecordingProvider(p, store, l)
		}
	}
	return marketdata.NewCachedProvider(p, c, cfg.Market.CacheTTL), nil
}

func ProvideIndicatorCalculator(cfg *config.Config) service.IndicatorCalculator {
	return indicators.NewCalculator(cfg.Analysis.MinCandles)
}

// ProvideJudgmentOracle returns the LLM gate, or nil when it is disabled.
func ProvideJudgmentOracle(cfg *config.Config, c cache.Service, m domrepo.Metrics, l *applogger.Logger) service.JudgmentOracle {
	if !cfg.Oracle.Enabled {
		return nil
	}
	client := oracle.NewChatClient(cfg.Oracle.Endpoint, cfg.Oracle.APIKey, cfg.Oracle.MaxTokens)
	return oracle.NewGate(oracle.Config{
		Enabled:    true,
		Models:     cfg.Oracle.Models,
		Timeout:    cfg.Oracle.Timeout,
		Attempts:   cfg.Oracle.Attempts,
		Backoff:    cfg.Oracle.Backoff,
		RatePerMin: cfg.Oracle.RatePerMin,
		CacheTTL:   cfg.Oracle.CacheTTL,
	}, client, ratelimit.New(), c, m, l.With("component", "oracle"))
}

// ProvideAnalysisUseCase creates the analysis pipeline.
func ProvideAnalysisUseCase(
	provider domrepo.MarketDataProvider,
	calc service.IndicatorCalculator,
	judge service.JudgmentOracle,
	pub domrepo.PredictionPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(provider, calc, judge, pub, m, l.With("component", "analysis"), usecase.AnalysisConfig{
		TieBreak:       models.ParseDirection(cfg.Analysis.TieBreak),
		PublishTimeout: cfg.Analysis.PublishTimeout,
	})
}

// ProvideKafkaConsumer creates the requests consumer, or nil when it is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
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
		pkgkafka.WithConsumerHandleTimeout(cfg.Server.RequestTimeout),
		pkgkafka.WithConsumerLogger(l.With("component", "kafka-consumer")),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaRequestsHandler handles analysis requests from the requests topic.
func ProvideKafkaRequestsHandler(uc *usecase.AnalysisUseCase, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaRequestsHandler {
	return usecase.NewKafkaRequestsHandler(cfg.Kafka.RequestsTopic, uc, m)
}

// ProvideAnalysisHandler creates the HTTP and websocket endpoints.
func ProvideAnalysisHandler(l *applogger.Logger, uc *usecase.AnalysisUseCase, m domrepo.Metrics, cfg *config.Config) *api.AnalysisHandler {
	return api.NewAnalysisHandler(l.With("component", "api"), uc, m, api.HandlerConfig{
		RatePerMinute: cfg.Server.RatePerMinute,
		Timeout:       cfg.Server.RequestTimeout,
	})
}

// ProvideHTTPServer creates the Echo server with the analysis routes.
func ProvideHTTPServer(cfg *config.Config, h *api.AnalysisHandler, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowRequestThreshold(cfg.Server.SlowRequest),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
		xhttp.WithLogger(l.With("component", "http")),
	)
}

// ProvideApp creates the application server and attaches the log collector
// when a collector topic is configured.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRequestsHandler,
	producer *pkgkafka.Producer,
) *server.App {
	if producer != nil && cfg.Logging.CollectorTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        "signalflow",
			TimeInterval:   cfg.Logging.CollectorInterval,
			CountThreshold: cfg.Logging.CollectorMax,
			IncludeWarn:    true,
			Topic:          cfg.Logging.CollectorTopic,
			Publisher:      producer,
		})
	}

	c := server.Components{
		Logger:          l,
		HTTP:            srv,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if consumer != nil {
		c.Consumer = consumer
		c.RequestsHandler = kh
		c.ConsumerHooks = []pkgkafka.ConsumerHook{
			pkgkafka.TraceHook{},
			pkgkafka.LoggingHook{Log: l.With("component", "kafka-requests"), Slow: cfg.Server.SlowRequest},
		}
	}
	return server.New(c)
}
