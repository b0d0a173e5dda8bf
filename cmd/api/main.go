package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sales-etl/internal/api/handlers"
	"github.com/dvloznov/sales-etl/internal/app"
	"github.com/dvloznov/sales-etl/internal/config"
	"github.com/dvloznov/sales-etl/internal/logger"
	"github.com/dvloznov/sales-etl/internal/runs"
	"github.com/dvloznov/sales-etl/internal/runs/inmemory"
	"github.com/spf13/pflag"
)

func main() {
	// Parse command-line flags
	fs := pflag.NewFlagSet("sales-etl-api", pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	bootLog := logger.New()
	cfg, err := config.Load(fs)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log, err := logger.NewFromConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to configure logger")
	}

	// Initialize repositories
	ctx := logger.WithContext(context.Background(), log)

	repo, err := app.NewRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open sales store")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close sales store")
		}
	}()

	// Initialize pipeline and run history
	history := inmemory.NewStore(cfg.Runs.History)
	orchestrator := app.NewOrchestrator(cfg, repo, history, log)

	schedulerCtx, cancelScheduler := context.WithCancel(ctx)
	defer cancelScheduler()

	scheduler := runs.NewScheduler(orchestrator, cfg.Schedule.Interval, cfg.Schedule.RunOnStart, log)
	if err := scheduler.Start(schedulerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	handler := handlers.NewServerHandler(handlers.Dependencies{
		Reports: repo,
		Runner:  orchestrator,
		Runs:    history,
		Log:     log,
	})

	// Triggered runs execute inside the request, so the write timeout is generous.
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("driver", cfg.Store.Driver).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop scheduler and wait for the in-flight run
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping scheduler")
	}

	log.Info().Msg("Server exited")
}
