package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yhchan/stockledger/internal/config"
	"github.com/yhchan/stockledger/internal/database"
	"github.com/yhchan/stockledger/internal/scheduler"
	"github.com/yhchan/stockledger/internal/server"
	"github.com/yhchan/stockledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		baseLog := logger.New(logger.Config{Level: "info", Pretty: true})
		baseLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting stockledger")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DB:      db,
		Config:  cfg,
		DevMode: cfg.DevMode,
	})

	// Holdings are pure functions of history; the nightly rebuild repairs
	// any row left stale by a failed recompute during the day.
	sched := scheduler.New(log)
	recomputeJob := scheduler.NewRecomputeJob(srv.HoldingService(), srv.TxRepo(), log)
	if err := sched.AddJob("@midnight", recomputeJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register recompute job")
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
