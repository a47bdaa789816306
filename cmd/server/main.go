package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SolarWolf-Code/quantedge/internal/backtest"
	"github.com/SolarWolf-Code/quantedge/internal/clients/yahoo"
	"github.com/SolarWolf-Code/quantedge/internal/config"
	"github.com/SolarWolf-Code/quantedge/internal/database"
	"github.com/SolarWolf-Code/quantedge/internal/indicators"
	"github.com/SolarWolf-Code/quantedge/internal/marketdata"
	"github.com/SolarWolf-Code/quantedge/internal/scheduler"
	"github.com/SolarWolf-Code/quantedge/internal/server"
	"github.com/SolarWolf-Code/quantedge/internal/strategy"
	"github.com/SolarWolf-Code/quantedge/pkg/logger"
)

func main() {
	// Bootstrap logger for configuration loading; the real one is built
	// from the loaded config below.
	log := logger.New(logger.Config{})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting QuantEdge")

	// Initialize database
	db, err := database.New(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Wire market data pipeline: Yahoo fetcher behind a Postgres store,
	// fronted by the memoizing cache repository.
	fetcher := yahoo.NewClient(log)
	store := marketdata.NewStore(db, fetcher, log)
	repo := marketdata.NewCachedRepository(store)

	engine := indicators.NewEngine(repo)
	evaluator := strategy.NewEvaluator(engine, repo, log)
	simulator := backtest.NewSimulator(repo, evaluator, log)
	strategies := strategy.NewRepository(db, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	priceSync := scheduler.NewPriceSyncJob(store, fetcher, log)
	if err := sched.AddJob(cfg.PriceSyncSchedule, priceSync); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price sync job")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		Simulator:  simulator,
		Strategies: strategies,
		DevMode:    cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
