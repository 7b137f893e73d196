package app

import (
	"context"
	"fmt"

	"github.com/bissquit/ops-triage-hub/internal/config"
	"github.com/bissquit/ops-triage-hub/internal/incidents"
	"github.com/bissquit/ops-triage-hub/internal/incidents/memory"
	incidentspostgres "github.com/bissquit/ops-triage-hub/internal/incidents/postgres"
	incidentsredis "github.com/bissquit/ops-triage-hub/internal/incidents/redis"
	"github.com/bissquit/ops-triage-hub/internal/pkg/metrics"
	"github.com/bissquit/ops-triage-hub/internal/pkg/postgres"
	"github.com/bissquit/ops-triage-hub/internal/pkg/redis"
	"github.com/bissquit/ops-triage-hub/migrations"
)

// store is the selected incident repository plus its lifecycle hooks.
type store struct {
	repo  incidents.Repository
	ping  func(ctx context.Context) error
	close func()
	// recordPool samples pool metrics; nil for the memory driver.
	recordPool func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}

		return &store{
			repo:       incidentspostgres.NewRepository(db),
			ping:       db.Ping,
			close:      db.Close,
			recordPool: func() { metrics.RecordPostgresPool(db) },
		}, nil

	case config.DriverRedis:
		client, err := redis.Connect(ctx, redis.Config{
			Addr:            cfg.Redis.Addr,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			PoolSize:        cfg.Redis.PoolSize,
			ConnectAttempts: cfg.Redis.ConnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return &store{
			repo:       incidentsredis.NewRepository(client, cfg.Redis.KeyPrefix),
			ping:       func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:      func() { _ = client.Close() },
			recordPool: func() { metrics.RecordRedisPool(client) },
		}, nil

	case config.DriverMemory:
		return &store{
			repo:  memory.NewRepository(),
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
