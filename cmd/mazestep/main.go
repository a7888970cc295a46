package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/lawnchairsociety/mazestep/internal/config"
	"github.com/lawnchairsociety/mazestep/internal/database"
	"github.com/lawnchairsociety/mazestep/internal/logger"
	"github.com/lawnchairsociety/mazestep/internal/server"
)

func main() {
	configFile := flag.String("config", "data/mazestep.yaml", "Path to config YAML file")
	envFile := flag.String("env", ".env", "Path to dotenv file (skipped if missing)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	noDB := flag.Bool("no-db", false, "Run without the run ledger")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}

	// Initialize logger first (before any logging)
	logConfig, err := logger.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load logging config: %v", err)
	}
	logCloser, err := logger.Initialize(logConfig)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	logger.Info("Starting mazestep server",
		"addr", cfg.Server.Addr,
		"default_size", cfg.Maze.Size,
		"record_runs", cfg.Server.RecordRuns)

	var db *database.Database
	if !*noDB {
		db, err = database.OpenWithConfig(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		logger.Info("Run ledger opened", "driver", cfg.Database.Driver)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(cfg, db, logger.Get())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("Signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warning("Shutdown incomplete", "error", err)
	}
	logger.Info("Server stopped")

	if exitCode != 0 {
		if db != nil {
			db.Close()
		}
		logCloser.Close()
		os.Exit(exitCode)
	}
}
