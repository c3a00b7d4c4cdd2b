package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"airquality-eda/internal/models"
	"airquality-eda/internal/services"
	"airquality-eda/pkg/logging"
	"airquality-eda/pkg/metrics"
)

// HealthChecker is implemented by backing stores that can be probed
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// AnalysisHandler handles the missing-data analysis API endpoints
type AnalysisHandler struct {
	service *services.AnalysisService
	store   HealthChecker
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAnalysisHandler creates a new analysis handler. store may be nil for
// file-backed deployments.
func NewAnalysisHandler(
	service *services.AnalysisService,
	store HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		store:   store,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ReloadResponse reports the outcome of POST /api/reload
type ReloadResponse struct {
	Status   string    `json:"status"`
	Rows     int       `json:"rows"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
}

// GetSummary handles GET /api/data/summary
func (h *AnalysisHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	defer func() {
		h.metrics.ObserveAPIRequest("/api/data/summary", time.Since(startTime))
	}()

	h.metrics.RecordAPIRequest("/api/data/summary", "GET", "200")
	h.sendJSON(w, h.service.Summary(), http.StatusOK)
}

// GetMissingAnalysis handles GET /api/missing
func (h *AnalysisHandler) GetMissingAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()
	defer func() {
		h.metrics.ObserveAPIRequest("/api/missing", time.Since(startTime))
	}()

	result := h.service.GetMissingAnalysis(ctx)

	h.metrics.RecordAPIRequest("/api/missing", "GET", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// GetKSTestResults handles GET /api/missing/ks
func (h *AnalysisHandler) GetKSTestResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()
	defer func() {
		h.metrics.ObserveAPIRequest("/api/missing/ks", time.Since(startTime))
	}()

	results := h.service.GetKSTestResults(ctx)

	h.metrics.RecordAPIRequest("/api/missing/ks", "GET", "200")
	h.sendJSON(w, results, http.StatusOK)
}

// GetColumnMechanism handles GET /api/missing/{column}
func (h *AnalysisHandler) GetColumnMechanism(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()
	defer func() {
		h.metrics.ObserveAPIRequest("/api/missing/{column}", time.Since(startTime))
	}()

	column := mux.Vars(r)["column"]
	rec, err := h.service.ClassifyColumn(ctx, column)
	if err != nil {
		if errors.Is(err, models.ErrColumnNotFound) {
			h.metrics.RecordAPIError("not_found", "/api/missing/{column}")
			h.sendError(w, r, "/api/missing/{column}", "unknown column: "+column, http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_CLASSIFY_ERROR] Failed to classify column", logging.Fields{
			"column": column,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/missing/{column}")
		h.sendError(w, r, "/api/missing/{column}", "failed to classify column", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/missing/{column}", "GET", "200")
	h.sendJSON(w, rec, http.StatusOK)
}

// Reload handles POST /api/reload
func (h *AnalysisHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()
	defer func() {
		h.metrics.ObserveAPIRequest("/api/reload", time.Since(startTime))
	}()

	snap, err := h.service.Reload(ctx, services.TriggerManual)
	if err != nil {
		h.logger.Warn(ctx, "[API_RELOAD_FAILED] Reload failed, previous snapshot kept", logging.Fields{
			"error": err.Error(),
		})
		h.metrics.RecordAPIError("reload_failed", "/api/reload")
		h.sendError(w, r, "/api/reload", err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.metrics.RecordAPIRequest("/api/reload", "POST", "200")
	h.sendJSON(w, ReloadResponse{
		Status:   "reloaded",
		Rows:     snap.Original.Len(),
		Source:   snap.Source,
		LoadedAt: snap.LoadedAt,
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *AnalysisHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := h.service.Snapshot()

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"rows":      snap.Original.Len(),
		"source":    snap.Source,
	}
	if snap.LoadErr != nil {
		status["load_error"] = snap.LoadErr.Error()
	}

	code := http.StatusOK
	if h.store != nil {
		if err := h.store.HealthCheck(ctx); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// sendJSON sends a JSON response
func (h *AnalysisHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response. route is the registered path template
// used as the metric label.
func (h *AnalysisHandler) sendError(w http.ResponseWriter, r *http.Request, route, message string, statusCode int) {
	h.metrics.RecordAPIRequest(route, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all analysis API routes
func (h *AnalysisHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/data/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/missing", h.GetMissingAnalysis).Methods("GET")
	router.HandleFunc("/api/missing/ks", h.GetKSTestResults).Methods("GET")
	router.HandleFunc("/api/missing/{column}", h.GetColumnMechanism).Methods("GET")
	router.HandleFunc("/api/reload", h.Reload).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc(OpenAPIPath, OpenAPISpec).Methods("GET")
}
