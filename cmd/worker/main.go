package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/atoll-quote/internal/app"
	"github.com/noah-isme/atoll-quote/internal/config"
	"github.com/noah-isme/atoll-quote/internal/jobs"
	"github.com/noah-isme/atoll-quote/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()
	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.Namespace, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.New(initCtx, cfg, logger, "atoll-quote-worker")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	redisOpt, err := app.RedisClientOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{"default": 1},
		Logger:          jobs.Logger{L: logger},
		ErrorHandler:    jobs.ErrorHandler(logger),
		ShutdownTimeout: 20 * time.Second,
	})

	mux := jobs.NewMux(jobs.Handler{Svc: deps.Quotes, Logger: &logger})
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Str("refdata_checksum", deps.Refdata.Checksum()).Msg("worker starting")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
