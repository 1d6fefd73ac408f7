// Package api exposes the replay queries over HTTP.
package api

import (
	"net/http"

	"flight_replay/internal/config"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// NewRouter wires the endpoints, middleware and CORS policy.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(RequestID, AccessLog)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/snapshot", h.Snapshot).Methods(http.MethodGet)
	api.HandleFunc("/aircraft/route", h.Route).Methods(http.MethodGet)
	api.HandleFunc("/aircraft/search", h.Search).Methods(http.MethodGet)
	api.HandleFunc("/context", h.Context).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(r)
}

// NewServer builds the HTTP server for the given handler tree.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
