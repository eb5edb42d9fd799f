// Package admin serves the operational surface cmd/server exposes: a
// liveness probe and a
// Prometheus scrape endpoint, wired with gorilla/mux the way the corpus
// wires its own HTTP routers.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer builds the admin HTTP server listening on addr. It never
// serves the join/session/presence surface; that belongs to a transport
// such as cmd/gateway.
func NewServer(addr string, log *slog.Logger) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Use(loggingMiddleware(log))

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func loggingMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("admin request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}
