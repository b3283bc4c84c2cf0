package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/persistence/memory"
	"example.com/mergington/internal/persistence/postgres"
	"example.com/mergington/internal/persistence/sqlite"
)

// Backend is the store selected by STORE_DRIVER.
type Backend struct {
	Store domain.Store
	// Pool is set for the postgres driver so the outbox can share it.
	Pool  *pgxpool.Pool
	close func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b != nil && b.close != nil {
		b.close()
	}
}

// Open builds the configured store. Postgres and SQLite schemas are migrated
// before returning.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return &Backend{Store: memory.NewStore()}, nil

	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: store, close: func() { _ = store.Close() }}, nil

	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Backend{
			Store: postgres.NewRepository(pool, cfg.OutboxActive()),
			Pool:  pool,
			close: pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
