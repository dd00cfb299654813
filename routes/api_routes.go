// routes/api_routes.go
package routes

import (
	"net/http"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/pipeline"
	"github.com/gorilla/mux"
)

// SetupRoutes настраивает маршруты API операторов ETL
func SetupRoutes(router *mux.Router, audit models.AuditRepository, p *pipeline.Pipeline) {
	// Применяем CORS middleware
	router.Use(corsMiddleware)

	// API журнала аудита
	router.HandleFunc("/api/etl/runs", GetRunsHandler(audit)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/etl/last-failure", GetLastFailureHandler(audit, p)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/etl/purge", PurgeHandler(audit)).Methods("POST", "OPTIONS")

	// API управления запуском
	router.HandleFunc("/api/etl/run", RunHandler(p)).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/etl/status", StatusHandler(p)).Methods("GET", "OPTIONS")
}

// corsMiddleware разрешает запросы с других источников для панелей операторов
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
