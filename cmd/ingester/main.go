package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"airquality-eda/internal/config"
	"airquality-eda/internal/repository"
	"airquality-eda/internal/services"
	"airquality-eda/pkg/database"
	"airquality-eda/pkg/logging"
	"airquality-eda/pkg/metrics"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to YAML configuration file")
	filePath := flag.String("file", "", "CSV or XLSX file to ingest")
	sheet := flag.String("sheet", "", "Sheet to read from an XLSX file (default: first sheet)")
	table := flag.String("table", "", "Target table (default: derived from the file name)")
	dataDir := flag.String("data-dir", "", "Directory of CSV/XLSX files, one table per file")
	batchSize := flag.Int("batch-size", services.DefaultBatchSize, "Number of rows to insert per transaction")
	flag.Parse()

	if (*filePath == "") == (*dataDir == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -data-dir is required")
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("airquality-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	logger.SetFormat(cfg.Logging.Format)

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting observation ingestion", logging.Fields{
		"version":    "1.0.0",
		"file":       *filePath,
		"data_dir":   *dataDir,
		"table":      *table,
		"batch_size": *batchSize,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector(cfg.Metrics.Namespace+"_ingester", prometheus.NewRegistry())

	// Initialize database
	db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	repo := repository.NewObservationRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(repo, logger, metricsCollector)

	var result *services.IngestionResult
	if *filePath != "" {
		start := time.Now()
		fileResult, err := ingestionService.IngestFile(ctx, *filePath, *sheet, *table, *batchSize)
		if err != nil {
			logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
				"file": *filePath,
			}, err)
		}
		result = &services.IngestionResult{
			TotalFiles:        1,
			TotalRecords:      fileResult.TotalRecords,
			SuccessfulRecords: fileResult.SuccessfulRecords,
			FailedRecords:     fileResult.FailedRecords,
			TablesCreated:     []string{fileResult.Table},
			Duration:          time.Since(start),
		}
	} else {
		result, err = ingestionService.IngestDirectory(ctx, *dataDir, *batchSize)
		if err != nil {
			logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
				"data_dir": *dataDir,
			}, err)
		}
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Tables:             %s\n", strings.Join(result.TablesCreated, ", "))
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
