package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airquality-eda/internal/config"
	"airquality-eda/internal/handlers"
	"airquality-eda/internal/repository"
	"airquality-eda/internal/services"
	"airquality-eda/internal/source"
	"airquality-eda/pkg/database"
	"airquality-eda/pkg/logging"
	"airquality-eda/pkg/metrics"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("airquality-api", version, logging.ParseLevel(cfg.Logging.Level))
	logger.SetFormat(cfg.Logging.Format)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting air quality analysis API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"source_kind": cfg.Source.Kind,
	})

	// Initialize metrics collector
	var metricsCollector *metrics.Collector
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.NewCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	}

	opts, err := services.OptionsFromConfig(cfg)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid analysis options", logging.Fields{}, err)
	}

	// Select the observation source
	var (
		src   services.TableSource
		store handlers.HealthChecker
		watch string
	)
	switch cfg.Source.Kind {
	case config.SourceDatabase:
		db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
		if err != nil {
			// the API still starts and serves an empty dataset
			logger.Error(ctx, "[STARTUP_DB_ERROR] Failed to connect to database", logging.Fields{
				"driver": cfg.Database.Driver,
			}, err)
			src = &services.StaticSource{Name: "table:" + cfg.Source.Table}
			break
		}
		defer db.Close()

		repo := repository.NewObservationRepository(db, logger, metricsCollector)
		src = services.NewDatabaseSource(repo, cfg.Source.Table, cfg.Source.Query)
		store = repo
	default:
		src = source.NewFile(cfg.Source.Path, cfg.Source.Kind, cfg.Source.Sheet)
		if cfg.Source.Watch {
			watch = cfg.Source.Path
		}
	}

	// Build the initial snapshot
	analysisService := services.NewAnalysisService(src, opts, logger, metricsCollector)
	analysisService.Start(ctx)

	reloader, err := services.NewReloader(analysisService, services.ReloaderOptions{
		WatchPath: watch,
		Schedule:  cfg.Source.RefreshSchedule,
	}, logger)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid reload configuration", logging.Fields{}, err)
	}
	if reloader.Enabled() {
		if err := reloader.Start(ctx); err != nil {
			logger.Error(ctx, "[STARTUP_RELOADER_ERROR] Failed to start reloader", logging.Fields{}, err)
		}
		defer reloader.Stop()
	}

	// Setup router
	analysisHandler := handlers.NewAnalysisHandler(analysisService, store, logger, metricsCollector)
	router := handlers.NewRouter(analysisHandler, logger, metricsCollector)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
