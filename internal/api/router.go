package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/oracle/internal/api/handlers"
	"github.com/wonny/oracle/pkg/logger"
)

// NewRouter creates and configures the HTTP router. authToken guards the
// mutating endpoints; empty disables auth (local development only).
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(
	analysisHandler *handlers.AnalysisHandler,
	pricesHandler *handlers.PricesHandler,
	batchHandler *handlers.BatchHandler,
	wsHandler http.Handler,
	authToken string,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", analysisHandler.Health).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Analysis retrieval (public)
	api.HandleFunc("/analysis/{kind}", analysisHandler.Get).Methods("GET")
	api.HandleFunc("/analysis/{kind}/nearest", analysisHandler.GetNearest).Methods("GET")

	// Analysis creation (bearer-protected)
	api.Handle("/analysis/{kind}",
		requireAuth(authToken, log, http.HandlerFunc(analysisHandler.Create))).Methods("POST")

	// Market data
	if pricesHandler != nil {
		api.HandleFunc("/prices/{ticker}", pricesHandler.GetPrices).Methods("GET")
		api.HandleFunc("/fundamentals/{ticker}", pricesHandler.GetFundamentals).Methods("GET")
		api.Handle("/prices/{ticker}/collect",
			requireAuth(authToken, log, http.HandlerFunc(pricesHandler.Collect))).Methods("POST")
	}

	// Batch trigger
	if batchHandler != nil {
		api.Handle("/batch/trigger",
			requireAuth(authToken, log, http.HandlerFunc(batchHandler.Trigger))).Methods("POST")
	}

	// Record stream
	if wsHandler != nil {
		api.Handle("/ws", wsHandler).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// requireAuth checks the Authorization bearer token on mutating endpoints
func requireAuth(token string, log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.WithField("path", r.URL.Path).Warn("Rejected unauthorized request")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
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
