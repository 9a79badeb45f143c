package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	icache "MarketGate/internal/service/cache"
	pkgch "MarketGate/pkg/clickhouse"
	"MarketGate/pkg/config"
	xhttp "MarketGate/pkg/http"
	pkgkafka "MarketGate/pkg/kafka"
	applogger "MarketGate/pkg/logger"
	"MarketGate/pkg/workerpool"
)

// App encapsulates the application lifecycle: the HTTP server, the cache
// sweeper, the optional approvals consumer, and graceful teardown of the
// infrastructure clients.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	memCache   *icache.MemoryCache
	pool       *workerpool.Pool
	consumer   *pkgkafka.Consumer
	producer   *pkgkafka.Producer
	chClient   *pkgch.Client
}

// New creates an App. memCache, consumer, producer, and chClient may be nil
// depending on configuration.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	memCache *icache.MemoryCache,
	pool *workerpool.Pool,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *App {
	httpServer := xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path),
		xhttp.WithLogger(l),
	)
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		memCache:   memCache,
		pool:       pool,
		consumer:   consumer,
		producer:   producer,
		chClient:   chClient,
	}
}

// Run starts all components and blocks until a shutdown signal arrives.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if a.memCache != nil {
		sweeper := a.memCache
		g.Go(func() error {
			sweeper.StartSweeper(gctx, a.cfg.Cache.SweepInterval)
			return nil
		})
		a.l.Info("cache sweeper started", applogger.Duration("interval", a.cfg.Cache.SweepInterval))
	}

	if a.consumer != nil {
		g.Go(func() error {
			if err := a.consumer.Start(); err != nil {
				return err
			}
			<-gctx.Done()
			return nil
		})
		a.l.Info("approvals consumer started", applogger.String("topic", a.cfg.Workflow.Approvals.Topic))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment),
	)

	<-gctx.Done()
	a.l.Info("shutdown signal received")

	shutdownErr := a.shutdown()
	if err := g.Wait(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	return shutdownErr
}

// shutdown stops components in reverse dependency order.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("approvals consumer stop error", applogger.Error(err))
		}
	}

	if a.pool != nil {
		a.pool.Stop()
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return firstErr
}
