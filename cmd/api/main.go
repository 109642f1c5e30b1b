package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linky/internal/config"
	"linky/internal/database"
	"linky/internal/handler"
	"linky/internal/lifecycle"
	"linky/internal/notify"
	"linky/internal/repository"
	"linky/internal/router"
	"linky/internal/service"
	"linky/internal/sourcing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting linky API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database pool with migrations applied
	pool, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	requestRepo := repository.NewRequestRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)

	dispatcher := notify.NewDispatcher(newEmitter(cfg, pool, logger), cfg.Notify.Timeout(), logger)

	catalog := loadCatalog(ctx, cfg, logger)

	deps := service.Deps{
		Requests: requestRepo,
		Users:    userRepo,
		Engine: lifecycle.New(lifecycle.Config{
			OfferValidity:  cfg.Lifecycle.OfferValidity(),
			RepeatCooldown: cfg.Lifecycle.RepeatCooldown(),
		}),
		Notifier:   dispatcher,
		Catalog:    catalog,
		AppURL:     cfg.App.URL,
		AdminEmail: cfg.App.AdminEmail,
		Logger:     logger,
	}
	requestService := service.NewRequestService(deps)
	adminService := service.NewAdminService(deps)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go service.NewSweeper(adminService, cfg.Lifecycle.SweepInterval(), logger).Run(sweepCtx)

	mux := router.New(
		handler.NewRequestHandler(requestService, logger),
		handler.NewAdminHandler(adminService, logger),
		cfg.Auth.APIKey,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		stopSweeper()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		// In-flight notifications still need the pool.
		if err := dispatcher.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("notifications still pending at shutdown")
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newEmitter always logs and adds the outbox and Telegram channels when configured.
func newEmitter(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) notify.Emitter {
	emitters := notify.Multi{notify.NewLogEmitter(logger)}

	if cfg.Notify.OutboxEnabled {
		emitters = append(emitters, notify.NewOutboxEmitter(pool, logger))
		logger.Info().Msg("notification outbox enabled")
	}

	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramEmitter(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialise Telegram emitter, admin pushes disabled")
		} else {
			emitters = append(emitters, tg)
		}
	}

	return emitters
}

// loadCatalog reads the brand catalogue from S3 or disk. Sourcing hints are
// optional, so a missing catalogue only disables them.
func loadCatalog(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *sourcing.Catalog {
	fileLoader := sourcing.NewFileLoader(logger)

	var s3Loader sourcing.Loader
	if cfg.S3.Enabled {
		l, err := sourcing.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = l
		}
	} else {
		logger.Info().Msg("using local file system for the brand catalogue (S3 disabled)")
	}

	loader := sourcing.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, s3Loader != nil, logger)
	catalog, err := loader.Load(ctx, cfg.Catalog.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Catalog.Path).Msg("brand catalogue unavailable, sourcing hints disabled")
		return nil
	}

	logger.Info().Int("brands", catalog.Size()).Msg("brand catalogue loaded")
	return catalog
}
