package server

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	mid "PatternScope/internal/middleware"
	"PatternScope/internal/service/stream"
	pkgch "PatternScope/pkg/clickhouse"
	"PatternScope/pkg/config"
	xhttp "PatternScope/pkg/http"
	pkgkafka "PatternScope/pkg/kafka"
	applogger "PatternScope/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server

	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	producer *pkgkafka.Producer
	pipeline *mid.ReportPipeline
	hub      *stream.Hub

	chClient *pkgch.Client
	redis    *redis.Client
}

// Deps groups the optional collaborators of App. Nil members are skipped.
type Deps struct {
	Consumer *pkgkafka.Consumer
	Handler  pkgkafka.MessageHandler
	Producer *pkgkafka.Producer
	Pipeline *mid.ReportPipeline
	Hub      *stream.Hub
	CH       *pkgch.Client
	Redis    *redis.Client
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, h xhttp.Handler, d Deps) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		httpHandler: h,
		consumer:    d.Consumer,
		kh:          d.Handler,
		producer:    d.Producer,
		pipeline:    d.Pipeline,
		hub:         d.Hub,
		chClient:    d.CH,
		redis:       d.Redis,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, a.l,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithReadiness(a.ready),
	)

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		a.consumer.WithConsumerHook(pkgkafka.TraceHook())
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("patternscope started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("history", a.cfg.History.Backend),
		applogger.Bool("kafka", a.consumer != nil),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// ready reports whether the market-data store and Redis answer.
func (a *App) ready(ctx context.Context) error {
	if a.chClient != nil {
		if err := a.chClient.Health(ctx); err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// shutdown stops intake first, then flushes and closes outputs.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.hub != nil {
		_ = a.hub.Close()
	}
	if a.pipeline != nil {
		a.pipeline.Stop()
		if n := a.pipeline.Buffered(); n > 0 {
			a.l.Warn("undelivered reports dropped", applogger.Int("count", n))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
