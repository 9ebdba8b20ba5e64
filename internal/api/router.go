package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/minwoo-dev/folio/internal/api/handlers"
	"github.com/minwoo-dev/folio/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	backtestHandler *handlers.BacktestHandler,
	portfolioHandler *handlers.PortfolioHandler,
	marketHandler *handlers.MarketHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Backtest
	api.HandleFunc("/backtest", backtestHandler.Run).Methods("POST")

	// Portfolios
	api.HandleFunc("/portfolios", portfolioHandler.List).Methods("GET")
	api.HandleFunc("/portfolios", portfolioHandler.Create).Methods("POST")
	api.HandleFunc("/portfolios/{id:[0-9]+}", portfolioHandler.Get).Methods("GET")
	api.HandleFunc("/portfolios/{id:[0-9]+}", portfolioHandler.Update).Methods("PUT")
	api.HandleFunc("/portfolios/{id:[0-9]+}", portfolioHandler.Delete).Methods("DELETE")

	// Market data
	api.HandleFunc("/search", marketHandler.Search).Methods("GET")
	api.HandleFunc("/indicators/{ticker}", marketHandler.Indicators).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "folio-api",
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
				"duration": time.Since(start),
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
