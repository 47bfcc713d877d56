package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ravelon/internal/bootstrap"
	"ravelon/internal/events"
	"ravelon/internal/infra"
	"ravelon/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.Component(infra.NewLogger(cfg), "worker")

	if cfg.AMQPURL == "" {
		logger.Fatal().Msg("worker: AMQP_URL is required")
	}
	if cfg.StoreDriver == infra.StoreMemory {
		logger.Warn().Msg("worker: memory store selected, counters are lost on exit")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to open stores")
	}
	defer stores.Close()

	count := events.CountInto(stores.Analytics)
	consumer := &events.Consumer{
		URL:      cfg.AMQPURL,
		Queue:    cfg.AMQPQueue,
		Prefetch: 32,
		Logger:   logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := stores.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := infra.NewMetricsServer(cfg, mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("queue", consumer.Queue).Msg("worker: consuming ledger events")
		return consumer.Run(gctx, func(ctx context.Context, ev events.Event) error {
			if err := count(ctx, ev); err != nil {
				logger.Error().Err(err).Str("event_id", ev.ID).Str("type", string(ev.Type)).Msg("worker: increment counters failed")
				return err
			}
			logger.Debug().Str("event_id", ev.ID).Str("type", string(ev.Type)).Str("day", ev.Day).Msg("worker: event counted")
			return nil
		})
	})
	g.Go(func() error {
		logger.Info().Str("addr", metricsServer.Addr()).Msg("worker: metrics listening")
		return metricsServer.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
