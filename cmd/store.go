package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/watch-buddy/config"
	"github.com/cwrk-planet/watch-buddy/internal/memstore"
	"github.com/cwrk-planet/watch-buddy/internal/postgres"
	"github.com/cwrk-planet/watch-buddy/internal/repository"
	"github.com/cwrk-planet/watch-buddy/internal/sqlite"
)

type stores struct {
	rooms   repository.RoomRepository
	chat    repository.ChatRepository
	members repository.MemberRepository

	migrate func(ctx context.Context) error
	close   func()
}

// openStore connects the configured backend. Nothing is migrated here.
func openStore(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		lifetime, idle, health := cfg.PoolDurations()
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   lifetime,
			MaxConnIdleTime:   idle,
			HealthCheckPeriod: health,
			ApplicationName:   cfg.Postgres.ApplicationName,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &stores{
			rooms:   postgres.NewRoomRepository(pool),
			chat:    postgres.NewChatRepository(pool),
			members: postgres.NewMemberRepository(pool),
			migrate: func(ctx context.Context) error { return postgres.Migrate(ctx, pool) },
			close:   pool.Close,
		}, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return &stores{
			rooms:   sqlite.NewRoomRepository(db),
			chat:    sqlite.NewChatRepository(db),
			members: sqlite.NewMemberRepository(db),
			migrate: func(ctx context.Context) error { return sqlite.Migrate(ctx, db) },
			close: func() {
				if err := db.Close(); err != nil {
					slog.Warn("sqlite close failed", "err", err)
				}
			},
		}, nil

	default:
		mem := memstore.New()
		return &stores{
			rooms:   mem,
			chat:    mem,
			members: mem,
			migrate: func(context.Context) error { return nil },
			close:   func() {},
		}, nil
	}
}
