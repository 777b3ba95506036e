package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charterintel/charterintel/pkg/api"
	"github.com/charterintel/charterintel/pkg/config"
	"github.com/charterintel/charterintel/pkg/metadatastore"
	"github.com/charterintel/charterintel/pkg/metrics"
	"github.com/charterintel/charterintel/pkg/operators"
	"github.com/charterintel/charterintel/pkg/runs"
	"github.com/charterintel/charterintel/pkg/scheduler"
	"github.com/charterintel/charterintel/pkg/scoring"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting charter intelligence dashboard in %s mode", cfg.Environment)

	// Use SQLite for prediction runs
	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create storage directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "charterintel.db")
	store, err := metadatastore.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite storage: %v", err)
	}
	defer store.Close()
	log.Printf("Initialized SQLite storage at: %s", dbPath)

	m, err := metrics.NewMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// The operator list is read on first use
	registry := operators.NewRegistry(cfg.OperatorsFile)

	forest := scoring.DefaultForestConfig()
	forest.Trees = cfg.ForestTrees
	forest.Seed = cfg.ForestSeed
	if err := forest.Validate(); err != nil {
		log.Fatalf("Invalid forest configuration: %v", err)
	}
	runService := runs.NewService(store, m, forest, cfg.HighConfidenceThreshold)
	runService.SetScoreTimeout(cfg.ScoreTimeout())

	log.Println("Initialized run, operator and metrics services")

	// Start scheduler
	retention := time.Duration(cfg.RunRetentionHours) * time.Hour
	schedulerService, err := scheduler.NewService(runService, cfg.PruneSchedule, retention)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}
	if err := schedulerService.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	maxUpload := int64(cfg.MaxUploadMB) << 20
	server := api.NewServer(cfg.Port, store.Ping)
	server.SetRequestLogging(cfg.RequestLogging())
	api.NewPredictionHandler(runService, maxUpload).Register(server)
	api.NewOperatorHandler(registry).Register(server)
	api.NewDashboardHandler(runService, registry, maxUpload).Register(server)
	server.Handle("/metrics", m.Handler())

	log.Println("Registered API handlers")

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start API server: %v", err)
		}
	}()

	log.Println("Dashboard started successfully")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down dashboard...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}
}
