package services

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"airquality-eda/internal/repository"
	"airquality-eda/internal/source"
	"airquality-eda/pkg/logging"
	"airquality-eda/pkg/metrics"
)

// DefaultBatchSize is the number of rows inserted per transaction
const DefaultBatchSize = 1000

// IngestionService loads observation files into the tabular store
type IngestionService struct {
	repo    repository.ObservationRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	TablesCreated     []string
	Duration          time.Duration
	Errors            []string
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	Table             string
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.ObservationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

var (
	nonIdentChars = regexp.MustCompile(`[^a-z0-9_]+`)
	dateRangeTail = regexp.MustCompile(`_\d{8}-\d{8}$`)
)

// TableNameFromFile derives a table name from a data file name, dropping
// the extension and a trailing date range:
// PRSA_Data_Dongsi_20130301-20170228.csv becomes prsa_data_dongsi.
func TableNameFromFile(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = dateRangeTail.ReplaceAllString(name, "")
	name = nonIdentChars.ReplaceAllString(strings.ToLower(name), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "observations"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

// IngestDirectory ingests every CSV and XLSX file in dataDir, each into the
// table named after it
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	var files []string
	for _, pattern := range []string{"*.csv", "*.xlsx"} {
		matches, err := filepath.Glob(filepath.Join(dataDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}
	sort.Strings(files)

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	result := &IngestionResult{
		TotalFiles:    len(files),
		TablesCreated: make([]string, 0, len(files)),
		Errors:        make([]string, 0),
	}

	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileResult, err := s.IngestFile(ctx, filePath, "", TableNameFromFile(filePath), batchSize)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", filePath, err))
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.TotalRecords += fileResult.TotalRecords
		result.SuccessfulRecords += fileResult.SuccessfulRecords
		result.FailedRecords += fileResult.FailedRecords
		result.TablesCreated = append(result.TablesCreated, fileResult.Table)
	}

	result.Duration = time.Since(startTime)
	s.metrics.ObserveIngestion(result.Duration)

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// IngestFile loads one CSV or XLSX file into table, creating it when
// needed. Rows go in batches of batchSize, each batch in its own
// transaction; a failed batch is counted and the remaining rows continue.
func (s *IngestionService) IngestFile(ctx context.Context, filePath, sheet, table string, batchSize int) (*FileIngestionResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if table == "" {
		table = TableNameFromFile(filePath)
	}
	if err := repository.ValidateTableName(table); err != nil {
		return nil, err
	}

	raw, err := source.NewFile(filePath, "", sheet).Load(ctx)
	if err != nil {
		s.metrics.RecordIngestionError("parse_error")
		return nil, err
	}

	result := &FileIngestionResult{Table: table, TotalRecords: raw.Len()}
	if raw.Empty() {
		s.logger.Warn(ctx, "[INGEST_FILE_EMPTY] File has no rows", logging.Fields{
			"file_path": filePath,
		})
		return result, nil
	}

	if err := s.repo.CreateTable(ctx, table, raw); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	for from := 0; from < raw.Len(); from += batchSize {
		to := from + batchSize
		if to > raw.Len() {
			to = raw.Len()
		}
		if err := s.repo.InsertRows(ctx, table, raw, from, to); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.FailedRecords += to - from
			s.metrics.RecordIngestionError("insert_error")
			s.logger.Error(ctx, "[INGEST_BATCH_ERROR] Batch insert failed", logging.Fields{
				"table": table,
				"from":  from,
				"to":    to,
			}, err)
			continue
		}
		result.SuccessfulRecords += to - from
	}

	s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested", logging.Fields{
		"file_path":          filePath,
		"table":              table,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"stage":              "FILE_COMPLETE",
	})

	return result, nil
}
