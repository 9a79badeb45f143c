package di

import (
	"context"
	"fmt"
	"time"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
	"MarketGate/internal/handler/api"
	internalrepo "MarketGate/internal/repository"
	"MarketGate/internal/service/approval"
	"MarketGate/internal/service/audit"
	icache "MarketGate/internal/service/cache"
	"MarketGate/internal/service/normalize"
	"MarketGate/internal/service/provider"
	"MarketGate/internal/service/ratelimit"
	"MarketGate/internal/service/sanitize"
	"MarketGate/internal/service/screening"
	"MarketGate/internal/usecase"
	pkgch "MarketGate/pkg/clickhouse"
	"MarketGate/pkg/config"
	xhttp "MarketGate/pkg/http"
	pkgkafka "MarketGate/pkg/kafka"
	applogger "MarketGate/pkg/logger"
	"MarketGate/pkg/metrics"
	"MarketGate/pkg/server"
	"MarketGate/pkg/workerpool"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer for the audit stream, or nil
// when Kafka audit is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Audit.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Audit.Kafka.Brokers),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient creates a ClickHouse client for the audit archive,
// or nil when it is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Audit.ClickHouse.Enabled {
		return nil, nil
	}
	ch := cfg.Audit.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(ch.DialTimeout, 10*time.Second, 10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ch.DialTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", ch.Database),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideAuditSink assembles the audit fanout: structured log always, Kafka
// and the ClickHouse archive when configured.
func ProvideAuditSink(
	cfg *config.Config,
	l *applogger.Logger,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) (repository.AuditSink, error) {
	sinks := []repository.AuditSink{audit.NewLogSink(l)}

	if producer != nil {
		sinks = append(sinks, audit.NewKafkaSink(
			context.Background(), producer,
			cfg.Audit.Kafka.Topic, cfg.Audit.Kafka.SecurityTopic, l,
		))
	}
	if chClient != nil {
		store, err := internalrepo.NewClickHouseAuditStore(
			context.Background(), chClient.DB(),
			cfg.Audit.ClickHouse.Database+".audit_events", l,
		)
		if err != nil {
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		sinks = append(sinks, store)
	}
	return audit.NewMulti(sinks...), nil
}

// ProvideMemoryCache creates the in-process cache, or nil when the Redis
// backend is selected.
func ProvideMemoryCache(cfg *config.Config) *icache.MemoryCache {
	if cfg.Cache.Backend != "memory" {
		return nil
	}
	return icache.NewMemoryCache()
}

// ProvideRecordCache selects the configured record cache backend.
func ProvideRecordCache(cfg *config.Config, mem *icache.MemoryCache) (repository.RecordCache, error) {
	if mem != nil {
		return mem, nil
	}
	rc, err := icache.NewRedisCache(
		context.Background(),
		cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB,
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideLimiter creates the per-session sliding-window rate limiter.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.MaxCalls)
}

// ProvideNormalizer creates the record normalizer with the default magnitude
// bound.
func ProvideNormalizer() *normalize.Normalizer {
	return normalize.New(0)
}

// ProvideWorkerPool creates the bounded pool for upstream fetches.
func ProvideWorkerPool(cfg *config.Config) *workerpool.Pool {
	return workerpool.New(cfg.Provider.Workers, cfg.Provider.QueueSize)
}

// ProvideDataProvider creates the upstream client, offloaded onto the pool.
func ProvideDataProvider(cfg *config.Config, pool *workerpool.Pool) repository.DataProvider {
	inner := provider.New(cfg.Provider.BaseURL, cfg.Provider.FetchTimeout)
	return provider.NewOffloaded(inner, pool, cfg.Provider.FetchTimeout)
}

// ProvideApprovalRegistry creates the in-process hold registry.
func ProvideApprovalRegistry() *approval.Registry {
	return approval.NewRegistry()
}

// ProvideValidator creates the input validator. Blocklist terms pass the
// format gate so screening can classify them as compliance denials.
func ProvideValidator(cfg *config.Config, sink repository.AuditSink) *sanitize.Validator {
	return sanitize.NewValidator(sink, cfg.Compliance.Blocklist)
}

// ProvideScreeningEngine creates the four-layer screening engine from the
// configured policy.
func ProvideScreeningEngine(cfg *config.Config, sink repository.AuditSink) *screening.Engine {
	watchlist := make(map[string]models.WatchlistEntry, len(cfg.Compliance.Watchlist))
	for sym, item := range cfg.Compliance.Watchlist {
		watchlist[sym] = models.WatchlistEntry{
			Alert:     item.Alert,
			Concern:   item.Concern,
			RiskLevel: models.RiskLevel(item.RiskLevel),
		}
	}
	return screening.New(screening.Config{
		Blocklist:         cfg.Compliance.Blocklist,
		Watchlist:         watchlist,
		OwnershipPatterns: cfg.Compliance.OwnershipPatterns,
	}, sink)
}

// ProvideGate wires the workflow orchestrator.
func ProvideGate(
	cfg *config.Config,
	validator *sanitize.Validator,
	engine *screening.Engine,
	cache repository.RecordCache,
	limiter *ratelimit.Limiter,
	normalizer *normalize.Normalizer,
	dataProvider repository.DataProvider,
	approvals *approval.Registry,
	sink repository.AuditSink,
	m repository.Metrics,
) *usecase.Gate {
	return usecase.NewGate(
		usecase.Config{
			CacheTTL:        cfg.Cache.TTL,
			ApprovalTimeout: cfg.Workflow.ApprovalTimeout,
		},
		validator, engine, cache, limiter, normalizer, dataProvider, approvals, sink, m,
	)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(l *applogger.Logger, gate *usecase.Gate, approvals *approval.Registry, cache repository.RecordCache) xhttp.Handler {
	return api.NewGateHandler(l, gate, approvals, cache)
}

// ProvideApprovalsConsumer creates the Kafka consumer for approval
// decisions, or nil when disabled.
func ProvideApprovalsConsumer(cfg *config.Config, registry *approval.Registry, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	ap := cfg.Workflow.Approvals
	if !ap.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(ap.Brokers),
		pkgkafka.WithConsumerGroupID(ap.GroupID),
		pkgkafka.WithConsumerWorkers(1),
	)
	if err != nil {
		return nil, fmt.Errorf("approvals consumer: %w", err)
	}
	consumer.RegisterHandler(approval.NewKafkaHandler(ap.Topic, registry, l))
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	mem *icache.MemoryCache,
	pool *workerpool.Pool,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, handler, mem, pool, consumer, producer, chClient)
}
