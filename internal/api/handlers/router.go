package handlers

import (
	"net/http"

	"github.com/dvloznov/sales-etl/internal/api/middleware"
	"github.com/dvloznov/sales-etl/internal/runs"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies are the collaborators the HTTP API serves from.
type Dependencies struct {
	Reports store.ReportRepository
	Runner  runs.Runner
	Runs    runs.Store
	Log     zerolog.Logger
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(deps Dependencies) *mux.Router {
	health := NewHealthHandler()
	etl := NewETLHandler(deps.Runner, deps.Log)
	reports := NewReportsHandler(deps.Reports, deps.Log)
	runHistory := NewRunsHandler(deps.Runs, deps.Log)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/", health.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", health.Health).Methods(http.MethodGet)

	r.HandleFunc("/trigger-etl", etl.TriggerETL).Methods(http.MethodPost)

	r.HandleFunc("/report/summary", reports.Summary).Methods(http.MethodGet)
	r.HandleFunc("/report/anomalies", reports.Anomalies).Methods(http.MethodGet)
	r.HandleFunc("/report/trends", reports.Trends).Methods(http.MethodGet)
	r.HandleFunc("/report/transactions/{id}", reports.Transaction).Methods(http.MethodGet)

	r.HandleFunc("/api/runs", runHistory.ListRuns).Methods(http.MethodGet)
	r.HandleFunc("/api/runs/{id}", runHistory.GetRun).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// NewServerHandler wraps the router with the standard middleware stack.
func NewServerHandler(deps Dependencies) http.Handler {
	return middleware.Chain(NewRouter(deps),
		middleware.RequestID,
		middleware.Recovery(deps.Log),
		middleware.Logger(deps.Log),
		middleware.CORS,
	)
}
