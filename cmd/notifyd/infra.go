package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/classnotify/pkg/channel"
	"github.com/dmitrymomot/classnotify/pkg/config"
	"github.com/dmitrymomot/classnotify/pkg/email"
	"github.com/dmitrymomot/classnotify/pkg/httpserver"
	"github.com/dmitrymomot/classnotify/pkg/mongo"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/pg"
	"github.com/dmitrymomot/classnotify/pkg/redis"
	"github.com/dmitrymomot/classnotify/pkg/scheduler"
	"github.com/dmitrymomot/classnotify/pkg/settings"
)

// infra holds the storage backends picked by the driver settings.
type infra struct {
	notifications notifications.Storage
	triggers      scheduler.Repository
	settings      settings.Storage
	directory     channel.Directory
	checks        []httpserver.Check
	closers       []func()
}

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func connect(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *infra, err error) {
	i := &infra{}
	defer func() {
		if err != nil {
			i.close()
		}
	}()

	switch cfg.StorageDriver {
	case driverMemory:
		i.notifications = notifications.NewMemoryStorage()
		i.triggers = scheduler.NewMemoryRepository()
	case driverPostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, pool.Close)
		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			return nil, err
		}
		i.notifications = notifications.NewPostgresStorage(pool)
		i.triggers = scheduler.NewPostgresRepository(pool)
		i.checks = append(i.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	switch cfg.SettingsDriver {
	case driverMemory:
		i.settings = settings.NewMemoryStorage()
	case driverRedis:
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, func() { _ = client.Close() })
		i.settings = settings.NewRedisStorage(client)
		i.checks = append(i.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	default:
		return nil, fmt.Errorf("unknown SETTINGS_DRIVER %q", cfg.SettingsDriver)
	}

	switch cfg.DirectoryDriver {
	case driverMemory:
		i.directory = channel.NewMemoryDirectory()
	case driverMongo:
		var mongoCfg mongo.Config
		if err := config.Load(&mongoCfg); err != nil {
			return nil, err
		}
		db, err := mongo.NewWithDatabase(ctx, mongoCfg)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, func() { _ = db.Client().Disconnect(context.Background()) })
		dir := channel.NewMongoDirectory(db, "")
		if err := dir.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		i.directory = dir
		i.checks = append(i.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(db.Client())})
	default:
		return nil, fmt.Errorf("unknown DIRECTORY_DRIVER %q", cfg.DirectoryDriver)
	}

	return i, nil
}

// delivery holds the channel adapters. Providers without credentials fall back
// to senders that only log.
type delivery struct {
	registry *channel.Registry
	hub      *channel.Hub
}

func buildDelivery(ctx context.Context, cfg appConfig, i *infra, log *slog.Logger) (*delivery, error) {
	var (
		emailCfg email.Config
		smsCfg   channel.SMSConfig
		pushCfg  channel.PushConfig
		hubCfg   channel.HubConfig
	)
	if err := errors.Join(
		config.Load(&emailCfg),
		config.Load(&smsCfg),
		config.Load(&pushCfg),
		config.Load(&hubCfg),
	); err != nil {
		return nil, err
	}

	mailer, err := email.New(emailCfg)
	if err != nil {
		return nil, err
	}

	var sms channel.SMSSender = channel.NewLogSMSSender(log)
	if smsCfg.AccountSID != "" {
		twilio, err := channel.NewTwilioSender(smsCfg)
		if err != nil {
			return nil, err
		}
		sms = twilio
	}

	var messenger channel.Messenger = channel.NewLogMessenger(log)
	if pushCfg.Enabled() {
		fcm, err := channel.NewFirebaseMessenger(ctx, pushCfg)
		if err != nil {
			return nil, err
		}
		messenger = fcm
	}

	hub := channel.NewHub(hubCfg, log)
	return &delivery{
		hub: hub,
		registry: channel.NewRegistry(
			channel.NewSystemAdapter(hub),
			channel.NewEmailAdapter(mailer, i.directory),
			channel.NewSMSAdapter(sms, i.directory),
			channel.NewPushAdapter(messenger, i.directory, pushCfg.TopicPrefix),
		),
	}, nil
}
