package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"

	"api-harness/internal/auth"
	"api-harness/internal/config"
	"api-harness/internal/db"
	"api-harness/internal/observability"
	"api-harness/internal/product"
)

// Backend is the store set chosen once from AUTO_IS_MOCK.
type Backend struct {
	Mock    bool
	Users   auth.UserStore
	Tokens  auth.TokenStore
	Catalog product.Catalog

	database *sql.DB
}

type BackendOptions struct {
	RunMigrations bool
	// Seed resets every Postgres table to the seed template. Memory stores
	// always start seeded.
	Seed bool
}

func NewBackend(ctx context.Context, cfg config.Config, logger *observability.Logger, options BackendOptions) (*Backend, error) {
	clock := clockwork.NewRealClock()

	if cfg.IsMock {
		logger.Info("backend_selected", map[string]any{"backend": "memory"})
		return &Backend{
			Mock:    true,
			Users:   auth.NewMemoryUserStore(nil, cfg.MaxAttempts, logger),
			Tokens:  auth.NewMemoryTokenStore(clock, logger),
			Catalog: product.NewMemoryCatalog(nil),
		}, nil
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)
	database.SetConnMaxIdleTime(10 * time.Minute)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	b := &Backend{
		Users:    auth.NewUserRepository(database, nil, cfg.MaxAttempts, logger),
		Tokens:   auth.NewTokenRepository(database, clock, logger),
		Catalog:  product.NewRepository(database, nil),
		database: database,
	}

	if options.Seed {
		if err := b.Reset(ctx); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("seed database: %w", err)
		}
	}

	logger.Info("backend_selected", map[string]any{"backend": "postgres", "migrated": options.RunMigrations, "seeded": options.Seed})
	return b, nil
}

func (b *Backend) Reset(ctx context.Context) error {
	if err := b.Users.Reset(ctx); err != nil {
		return fmt.Errorf("reset users: %w", err)
	}
	if err := b.Tokens.Reset(ctx); err != nil {
		return fmt.Errorf("reset tokens: %w", err)
	}
	if err := b.Catalog.Reset(ctx); err != nil {
		return fmt.Errorf("reset catalog: %w", err)
	}
	return nil
}

// Ping is a no-op for the memory backend.
func (b *Backend) Ping(ctx context.Context) error {
	if b.database == nil {
		return nil
	}
	return b.database.PingContext(ctx)
}

func (b *Backend) Close() error {
	if b.database == nil {
		return nil
	}
	return b.database.Close()
}
