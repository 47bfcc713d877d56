// Package bootstrap assembles the stores and services every binary shares
// from the loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ravelon/internal/adapter/memory"
	"ravelon/internal/adapter/redisguest"
	"ravelon/internal/adapter/repo"
	"ravelon/internal/adapter/sqlite"
	"ravelon/internal/domain"
	"ravelon/internal/infra"
	"ravelon/internal/infra/credentials"
)

// Stores is the persistence selected by STORE_DRIVER.
type Stores struct {
	Driver     string
	Principals domain.PrincipalStore
	Guests     domain.GuestUsageStore
	Records    domain.RecordStore
	Analytics  domain.AnalyticsRepository
	// Credentials is set for the postgres driver only.
	Credentials *credentials.Store
	// Redis is set when REDIS_ADDR answered a ping; guest usage lives there.
	Redis *redis.Client

	closers []func()
}

// Close releases every connection the stores hold.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the configured driver and runs its migrations.
func OpenStores(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Stores, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	s := &Stores{Driver: cfg.StoreDriver}

	switch cfg.StoreDriver {
	case infra.StorePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		if err := infra.MigratePostgres(ctx, pool, logger); err != nil {
			s.Close()
			return nil, err
		}
		s.usePostgres(pool, logger)
	case infra.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		s.Principals = db.Principals()
		s.Guests = db.Guests()
		s.Records = db.Records()
		s.Analytics = db.Analytics()
	case infra.StoreMemory:
		s.Principals = memory.NewPrincipalStore()
		s.Guests = memory.NewGuestUsageStore()
		s.Records = memory.NewRecordStore()
		s.Analytics = memory.NewAnalyticsRepository()
	default:
		return nil, fmt.Errorf("bootstrap: unsupported store driver %q", cfg.StoreDriver)
	}

	if rdb := infra.NewRedisClient(ctx, cfg); rdb != nil {
		s.Redis = rdb
		s.Guests = redisguest.New(rdb, "", redisguest.DefaultTTL)
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		logger.Info().Str("addr", cfg.RedisAddr).Msg("guest usage stored in redis")
	} else if cfg.RedisAddr != "" {
		logger.Warn().Str("addr", cfg.RedisAddr).Msg("redis unreachable, guest usage stays in the primary store")
	}

	logger.Info().Str("driver", s.Driver).Msg("stores ready")
	return s, nil
}

func (s *Stores) usePostgres(pool *pgxpool.Pool, logger zerolog.Logger) {
	runner := infra.NewSQLRunner(pool, logger)
	s.Principals = repo.NewPrincipalRepository(runner)
	s.Guests = repo.NewGuestUsageRepository(runner)
	s.Records = repo.NewRecordRepository(runner)
	s.Analytics = repo.NewAnalyticsRepository(runner)
	s.Credentials = credentials.NewStore(runner)
}
