package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/classnotify/pkg/api"
	"github.com/dmitrymomot/classnotify/pkg/config"
	"github.com/dmitrymomot/classnotify/pkg/dispatcher"
	"github.com/dmitrymomot/classnotify/pkg/engine"
	"github.com/dmitrymomot/classnotify/pkg/eventsource"
	"github.com/dmitrymomot/classnotify/pkg/httpserver"
	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/policy"
	"github.com/dmitrymomot/classnotify/pkg/requestid"
	"github.com/dmitrymomot/classnotify/pkg/scheduler"
	"github.com/dmitrymomot/classnotify/pkg/settings"
)

func main() {
	if err := run(); err != nil {
		slog.Error("notifyd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return err
	}
	log := logger.New(
		logger.FromConfig(logCfg),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	infra, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close()

	table, err := policy.LoadFile(cfg.PolicyRulesFile)
	if err != nil {
		return fmt.Errorf("load policy rules: %w", err)
	}

	delivery, err := buildDelivery(ctx, cfg, infra, log)
	if err != nil {
		return err
	}
	defer delivery.hub.Close()

	var schedCfg scheduler.Config
	var dispatchCfg dispatcher.Config
	if err := errors.Join(config.Load(&schedCfg), config.Load(&dispatchCfg)); err != nil {
		return err
	}

	disp := dispatcher.New(infra.notifications, delivery.registry,
		dispatcher.WithConfig(dispatchCfg),
		dispatcher.WithDispatcherLogger(log),
	)
	sched, err := scheduler.New(infra.triggers, disp,
		scheduler.WithConfig(schedCfg),
		scheduler.WithSchedulerLogger(log),
	)
	if err != nil {
		return err
	}

	prefs := settings.NewManager(infra.settings, settings.WithManagerLogger(log))
	eng := engine.New(
		policy.NewResolver(prefs, policy.WithTable(table), policy.WithResolverLogger(log)),
		sched,
		notifications.NewManager(infra.notifications, notifications.WithManagerLogger(log)),
		prefs,
		engine.WithHub(delivery.hub),
		engine.WithEngineLogger(log),
	)

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	router := api.NewRouter(eng,
		api.WithAPILogger(log),
		api.WithHeartbeat(cfg.LiveHeartbeat),
		api.WithHealthCheck(httpserver.HealthCheckHandler(log, cfg.HealthTimeout, infra.checks...)),
	)
	server := httpserver.NewFromConfig(httpCfg, router, httpserver.WithServerLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(sched.Run(ctx))
	g.Go(server.Run(ctx))
	g.Go(purgeLoop(ctx, eng, cfg, log))

	var kafkaCfg eventsource.Config
	if err := config.Load(&kafkaCfg); err != nil {
		return err
	}
	if kafkaCfg.Enabled() {
		consumer, err := eventsource.NewConsumer(kafkaCfg, eng, eventsource.WithConsumerLogger(log))
		if err != nil {
			return err
		}
		g.Go(consumer.Run(ctx))
	} else {
		log.Info("kafka brokers not configured, event consumer disabled")
	}

	log.Info("notifyd started",
		slog.String("storage", cfg.StorageDriver),
		slog.String("settings", cfg.SettingsDriver),
		slog.String("directory", cfg.DirectoryDriver),
	)
	return g.Wait()
}

// purgeLoop periodically removes notifications soft-deleted longer than the retention.
func purgeLoop(ctx context.Context, eng *engine.Engine, cfg appConfig, log *slog.Logger) func() error {
	return func() error {
		if cfg.PurgeInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(cfg.PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := eng.PurgeDeleted(ctx, cfg.PurgeRetention); err != nil && ctx.Err() == nil {
					log.ErrorContext(ctx, "purge failed", logger.Error(err))
				}
			}
		}
	}
}
