package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"ravelon/internal/bootstrap"
	"ravelon/internal/clock"
	"ravelon/internal/infra"
)

// env is everything a command needs to act on the configured store.
type env struct {
	stores   *bootstrap.Stores
	services *bootstrap.Services
	logger   zerolog.Logger
	close    func()
}

type opener func(ctx context.Context) (*env, error)

func openEnv(ctx context.Context) (*env, error) {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.Component(infra.NewLogger(cfg), "creditctl")

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	publisher, closePublisher := bootstrap.Publisher(cfg, stores, logger)
	services, err := bootstrap.NewServices(cfg, stores, clock.System{}, publisher, &logger)
	if err != nil {
		closePublisher()
		stores.Close()
		return nil, err
	}
	return &env{
		stores:   stores,
		services: services,
		logger:   logger,
		close: func() {
			closePublisher()
			stores.Close()
		},
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openEnv).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
