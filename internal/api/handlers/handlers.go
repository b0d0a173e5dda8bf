package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/sales-etl/internal/api/middleware"
	"github.com/dvloznov/sales-etl/internal/logger"
	"github.com/dvloznov/sales-etl/internal/report"
	"github.com/dvloznov/sales-etl/internal/runs"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// HealthHandler handles liveness endpoints.
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

// Root handles GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "System Operational"})
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().Format(time.RFC3339),
	})
}

// ETLHandler handles pipeline trigger endpoints.
type ETLHandler struct {
	runner runs.Runner
	log    zerolog.Logger
}

// NewETLHandler creates a new ETL handler.
func NewETLHandler(runner runs.Runner, log zerolog.Logger) *ETLHandler {
	return &ETLHandler{
		runner: runner,
		log:    log,
	}
}

func (h *ETLHandler) logFor(r *http.Request) *zerolog.Logger {
	l := logger.FromContextOr(r.Context(), h.log)
	return &l
}

// TriggerETL handles POST /trigger-etl. The run executes synchronously.
func (h *ETLHandler) TriggerETL(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Run(r.Context(), runs.TriggerManual)
	switch {
	case errors.Is(err, runs.ErrRunInProgress):
		h.logFor(r).Warn().Msg("Manual run rejected: a run is already in progress")
		middleware.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "ETL pipeline is already running",
			"run":   run,
		})
	case err != nil:
		h.logFor(r).Error().Err(err).Msg("Manual ETL run failed")
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "ETL pipeline failed",
			"run":   run,
		})
	default:
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"message": "ETL Pipeline executed successfully.",
			"run":     run,
		})
	}
}

// ReportsHandler handles aggregate reporting endpoints.
type ReportsHandler struct {
	reports *report.Service
	log     zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(repo store.ReportRepository, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		reports: report.NewService(repo),
		log:     log,
	}
}

func (h *ReportsHandler) logFor(r *http.Request) *zerolog.Logger {
	l := logger.FromContextOr(r.Context(), h.log)
	return &l
}

// Summary handles GET /report/summary
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		h.logFor(r).Error().Err(err).Msg("Failed to compute summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// Anomalies handles GET /report/anomalies
func (h *ReportsHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	anomalies, err := h.reports.Anomalies(r.Context())
	if err != nil {
		h.logFor(r).Error().Err(err).Msg("Failed to list anomalies")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list anomalies")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, anomalies)
}

// Trends handles GET /report/trends
func (h *ReportsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	trends, err := h.reports.Trends(r.Context())
	if err != nil {
		h.logFor(r).Error().Err(err).Msg("Failed to compute source trends")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute source trends")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, trends)
}

// Transaction handles GET /report/transactions/{id}
func (h *ReportsHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["id"]

	rec, err := h.reports.Transaction(r.Context(), transactionID)
	if errors.Is(err, report.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.logFor(r).Error().Err(err).Str("transaction_id", transactionID).Msg("Failed to look up transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to look up transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rec)
}

// RunsHandler handles run history endpoints.
type RunsHandler struct {
	store runs.Store
	log   zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(store runs.Store, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		store: store,
		log:   log,
	}
}

func (h *RunsHandler) logFor(r *http.Request) *zerolog.Logger {
	l := logger.FromContextOr(r.Context(), h.log)
	return &l
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, runs.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logFor(r).Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	query := r.URL.Query()
	filter := runs.Filter{
		Status:  runs.Status(query.Get("status")),
		Trigger: runs.Trigger(query.Get("trigger")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	runList, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		h.logFor(r).Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runList == nil {
		runList = []*runs.Run{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runList,
		"count": len(runList),
	})
}
