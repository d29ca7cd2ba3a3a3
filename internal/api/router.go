package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sabq4org/so7ba.ai/internal/api/handlers"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// Handlers groups the endpoint handlers. Jobs and Stream are optional.
type Handlers struct {
	Runs      *handlers.RunHandler
	Positions *handlers.PositionHandler
	Jobs      *handlers.JobHandler
	Stream    http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Scan history
	api.HandleFunc("/runs", h.Runs.ListRuns).Methods("GET")
	api.HandleFunc("/runs/latest", h.Runs.GetLatest).Methods("GET")
	api.HandleFunc("/runs/{id}/scorecards", h.Runs.GetScorecards).Methods("GET")
	api.HandleFunc("/symbols/{symbol}/history", h.Runs.GetSymbolHistory).Methods("GET")

	// Ledger
	api.HandleFunc("/positions", h.Positions.GetPositions).Methods("GET")
	api.HandleFunc("/trades", h.Positions.GetTrades).Methods("GET")

	// Scheduler
	if h.Jobs != nil {
		api.HandleFunc("/jobs", h.Jobs.GetJobs).Methods("GET")
		api.HandleFunc("/jobs/{name}/run", h.Jobs.TriggerJob).Methods("POST")
	}

	// Realtime
	if h.Stream != nil {
		api.Handle("/stream", h.Stream).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "so7ba-api",
		"time":    time.Now().UTC(),
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
