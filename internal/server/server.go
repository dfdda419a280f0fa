// Package server exposes the discovery service over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/iserafeim/heurekka-sub002/internal/common/config"
	"github.com/iserafeim/heurekka-sub002/internal/common/logger"
	"github.com/iserafeim/heurekka-sub002/internal/discovery"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the HTTP listener and its routes.
type Server struct {
	httpServer *http.Server
	discovery  *discovery.Service
	log        logger.Logger

	postgresProbe func(context.Context) error
	searchProbe   func() error
}

// New builds the server with its full route table.
func New(cfg config.ServerConfig, svc *discovery.Service, log logger.Logger) *Server {
	s := &Server{
		discovery: svc,
		log:       log.WithFields(map[string]interface{}{"component": "http"}),
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/search/nearby", s.handleNearby)
		r.Get("/search/autocomplete", s.handleAutocomplete)
		r.Get("/search/facets", s.handleFacets)

		r.Get("/map/bounds", s.handleBounds)
		r.Get("/map/clusters", s.handleClusters)

		r.Route("/properties/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProperty)
			r.Get("/similar", s.handleSimilar)
			r.Post("/favorite", s.handleToggleFavorite)
			r.Post("/track/view", s.handleTrackView)
			r.Post("/track/contact", s.handleTrackContact)
		})
	})

	return r
}

// SetHealthProbes registers the backing-store checks reported by
// /health. Either probe may be nil; its component is then omitted.
func (s *Server) SetHealthProbes(postgres func(context.Context) error, search func() error) {
	s.postgresProbe = postgres
	s.searchProbe = search
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.log.Info("http server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
