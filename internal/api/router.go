package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/agrimacro/agrimacro/internal/api/handlers"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Routes bundles the handlers the router mounts
type Routes struct {
	Runs    *handlers.RunHandler
	Jobs    *handlers.JobHandler
	Hub     *Hub
	Metrics http.Handler // nil 이면 /metrics 없음
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods("GET")
	}

	// Run progress stream
	if routes.Hub != nil {
		r.HandleFunc("/ws/runs", routes.Hub.ServeWS)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Run artifacts (read-only)
	api.HandleFunc("/manifest", routes.Runs.GetManifest).Methods("GET")
	api.HandleFunc("/qa", routes.Runs.GetQA).Methods("GET")
	api.HandleFunc("/bundle", routes.Runs.GetBundle).Methods("GET")
	api.HandleFunc("/processed/{name}", routes.Runs.GetProcessed).Methods("GET")
	api.HandleFunc("/runs", routes.Runs.ListRuns).Methods("GET")

	if routes.Jobs != nil {
		api.HandleFunc("/jobs", routes.Jobs.GetJobs).Methods("GET")
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
		"service": "agrimacro-api",
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
