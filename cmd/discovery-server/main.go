// cmd/discovery-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iserafeim/heurekka-sub002/internal/common/config"
	"github.com/iserafeim/heurekka-sub002/internal/common/database"
	"github.com/iserafeim/heurekka-sub002/internal/common/logger"
	"github.com/iserafeim/heurekka-sub002/internal/common/observability"
	"github.com/iserafeim/heurekka-sub002/internal/discovery"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/autocomplete"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cache"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cachekey"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/catalog"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cluster"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/visibility"
	"github.com/iserafeim/heurekka-sub002/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zlog.Sync()
	log := logger.NewZapAdapter(zlog)

	zlog.Info("starting discovery server",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracer(cfg.App.Name, cfg.Tracing.Endpoint)
		if err != nil {
			zlog.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					zlog.Warn("tracer shutdown failed", zap.Error(err))
				}
			}()
		}
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zlog.Fatal("failed to create postgres client", zap.Error(err))
	}
	defer pg.Close()

	if err := retryWithBackoff(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return pg.Ping(ctx)
	}, 5, 2*time.Second, zlog, "postgres ping"); err != nil {
		zlog.Fatal("postgres unreachable", zap.Error(err))
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zlog.Fatal("failed to create redis client", zap.Error(err))
	}
	defer rdb.Close()

	// A dead cache is an acceptable way to start: every operation fails
	// open. It only costs latency until Redis comes back.
	if err := retryWithBackoff(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return rdb.Ping(ctx)
	}, 3, time.Second, zlog, "redis ping"); err != nil {
		zlog.Warn("redis unreachable at startup, running with a cold cache", zap.Error(err))
	}

	var es *database.ElasticsearchClient
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zlog.Warn("elasticsearch client creation failed, autocomplete disabled", zap.Error(err))
			es = nil
		} else if err := es.Ping(); err != nil {
			zlog.Warn("elasticsearch unreachable, autocomplete degrades to empty", zap.Error(err))
		}
	}

	svc := discovery.NewService(
		catalog.New(pg, log),
		cache.New(rdb, cfg.Cache, log),
		cachekey.New(cfg.Cache.KeyPrefix),
		visibility.New(cfg.Discovery.FallbackCity),
		cluster.New(cfg.Discovery.MaxClusterMembers),
		autocomplete.New(es, cfg.Database.Elasticsearch.Index, log),
		log,
	)

	srv := server.New(cfg.Server, svc, log)
	if es != nil {
		srv.SetHealthProbes(pg.Ping, es.Ping)
	} else {
		srv.SetHealthProbes(pg.Ping, nil)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		zlog.Fatal("http server failed", zap.Error(err))
	case sig := <-quit:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}

	zlog.Info("discovery server stopped")
}
