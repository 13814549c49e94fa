package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"worldclock-fx/internal/config"
)

// Open builds the backend selected by storage.driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (Backend, error) {
	log := logger.With().Str("component", "storage").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case config.DriverMemory:
		log.Debug().Msg("using in-memory storage")
		return NewMemory(), nil
	case config.DriverSQLite, "":
		backend, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("path", cfg.SQLitePath).Msg("sqlite storage ready")
		return backend, nil
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend := NewPostgres(pool)
		if err := backend.Migrate(ctx); err != nil {
			backend.Close()
			return nil, err
		}
		log.Debug().Msg("postgres storage ready")
		return backend, nil
	default:
		return nil, fmt.Errorf("storage driver %q not supported", cfg.Driver)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse storage dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
