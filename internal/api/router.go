// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package api provides the HTTP surface: the two recommendation endpoints,
// health, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/bibliograph/internal/config"
	"github.com/tomtom215/bibliograph/internal/recommend"
)

// Router wires the HTTP handlers.
type Router struct {
	engine *recommend.Engine
	db     pinger
	cfg    *config.ServerConfig
	logger zerolog.Logger
}

// pinger is the health-check surface of the database.
type pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the HTTP router.
func NewRouter(engine *recommend.Engine, db pinger, cfg *config.ServerConfig, logger zerolog.Logger) *Router {
	return &Router{
		engine: engine,
		db:     db,
		cfg:    cfg,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", rt.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/recommendations", func(r chi.Router) {
		if rt.cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimitPerMinute, time.Minute))
		}
		r.Get("/users/{userID}", rt.userRecommendations)
		r.Get("/sessions/{token}", rt.sessionRecommendations)
	})

	return r
}
