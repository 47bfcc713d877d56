package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ravelon/internal/bootstrap"
	"ravelon/internal/clock"
	"ravelon/internal/http/handlers"
	httpapi "ravelon/internal/http/httpapi"
	"ravelon/internal/infra"
	"ravelon/internal/infra/geoip"
	"ravelon/internal/infra/google"
	"ravelon/internal/middleware"
	"ravelon/internal/providers/genai"
	"ravelon/internal/providers/image"
	"ravelon/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.Component(infra.NewLogger(cfg), "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open stores")
	}
	defer stores.Close()

	publisher, closePublisher := bootstrap.Publisher(cfg, stores, logger)
	defer closePublisher()

	svc, err := bootstrap.NewServices(cfg, stores, clock.System{}, publisher, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	var locator geoip.Locator
	if resolver != nil {
		locator = resolver
		defer resolver.Close()
	}

	enhancer := image.NewGeminiEnhancer(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		Logger:     &logger,
	}, stores.Credentials)
	if cfg.GeminiAPIKey == "" && stores.Credentials == nil {
		logger.Warn().Str("model", cfg.GeminiModel).Msg("gemini api key missing, enhancement runs in synthetic mode")
	}

	app := &handlers.App{
		Logger:         &logger,
		Clock:          clock.System{},
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Ledger:         svc.Ledger,
		Accounts:       svc.Accounts,
		Orchestrator:   svc.Orchestrator,
		Admin:          svc.Admin,
		Principals:     stores.Principals,
		Records:        stores.Records,
		Analytics:      stores.Analytics,
		Enhancer:       enhancer,
		Files:          files,
		Google:         google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID),
		Ready:          stores.Ping,
	}

	limit := middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)
	if stores.Redis != nil {
		limit = middleware.RedisRateLimit(stores.Redis, cfg.RateLimitPerMin, time.Minute, logger)
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:        logger,
		JWTSecret:     cfg.JWTSecret,
		CORSOrigins:   cfg.CORSOrigins,
		DefaultZone:   clock.LoadLocation(cfg.DefaultTimeZone),
		Locator:       locator,
		SecureCookies: cfg.AppEnv != "development",
		ActionLimit:   limit,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		return server.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return
	}
	logger.Info().Msg("server stopped")
}
