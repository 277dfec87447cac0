// Package app wires the infrastructure shared by the api and worker processes.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/atoll-quote/internal/cache"
	"github.com/noah-isme/atoll-quote/internal/config"
	"github.com/noah-isme/atoll-quote/internal/engine"
	"github.com/noah-isme/atoll-quote/internal/lock"
	"github.com/noah-isme/atoll-quote/internal/obs"
	"github.com/noah-isme/atoll-quote/internal/quote"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/repo"
)

// Dependencies enumerates the services shared across processes.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Refdata *refdata.Store
	Engine  *engine.Engine
	Quotes  *quote.Service
}

// New connects Postgres and Redis, loads the reference data and builds the
// quote service. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, applicationName string) (*Dependencies, error) {
	store, err := refdata.LoadFile(cfg.RefdataPath)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	logger.Info().Str("checksum", store.Checksum()).Interface("counts", store.Counts()).Msg("reference data loaded")

	pool, err := NewPool(ctx, cfg.DatabaseURL, applicationName)
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	d := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		DB:      pool,
		Redis:   rdb,
		Refdata: store,
		Engine:  NewEngine(cfg, logger),
	}
	d.Quotes = d.NewQuoteService()
	return d, nil
}

// NewQuoteService builds the quote service over the shared infrastructure.
func (d *Dependencies) NewQuoteService() *quote.Service {
	return &quote.Service{
		Engine:  d.Engine,
		Store:   repo.VersionStore{DB: d.DB},
		Data:    d.Refdata,
		Cache:   cache.New(d.Redis, d.Config.QuoteResultCacheTTL),
		Locker:  lock.Locker{R: d.Redis, MaxWait: d.Config.QuoteLockTTL},
		LockTTL: d.Config.QuoteLockTTL,
		Log:     d.Logger.With().Str("component", "quote").Logger(),
		Now:     time.Now,
		NewID:   uuid.NewString,
	}
}

// Close releases the connections.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// NewEngine maps the calculation settings of cfg onto engine options.
func NewEngine(cfg *config.Config, logger zerolog.Logger) *engine.Engine {
	engineLog := logger.With().Str("component", "engine").Logger()
	lowMargin := decimal.NewFromFloat(cfg.LowMarginThresholdPercent)
	return engine.New(engine.Options{
		Logger:             &engineLog,
		ValidityDays:       cfg.QuoteDefaultValidityDays,
		LowMarginThreshold: &lowMargin,
	})
}

// NewPool opens a traced pgx pool and pings it.
func NewPool(ctx context.Context, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if applicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis opens an instrumented Redis client and pings it.
func NewRedis(ctx context.Context, redisURL string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisClientOpt converts a redis:// URL into asynq connection options.
func RedisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// PingDB implements health.Checker.
func (d *Dependencies) PingDB(ctx context.Context, timeout time.Duration) error {
	if d == nil || d.DB == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.DB.Ping(ctx)
}

// PingRedis implements health.Checker.
func (d *Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d == nil || d.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// RefdataLoaded implements health.Checker.
func (d *Dependencies) RefdataLoaded() error {
	if d == nil || d.Refdata == nil {
		return errors.New("reference data not loaded")
	}
	if d.Refdata.Counts()["currencies"] == 0 {
		return errors.New("reference data has no currencies")
	}
	return nil
}
