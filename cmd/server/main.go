// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package main is the entry point for the Bibliograph server.
//
// Bibliograph analyzes reading history and recommends unread books by
// finding readers with similar taste. The server initializes components in
// the following order:
//
//  1. Configuration: layered defaults, config file, environment (Koanf v2)
//  2. Logging: zerolog, JSON or console format
//  3. Database: DuckDB with the catalog, interaction, and session tables
//  4. Cache: in-memory or BadgerDB store behind a fail-open wrapper
//  5. Recommendation engine: profile building, similarity, candidate
//     collection, scoring, diversity filtering
//  6. Anonymization batch: expired guest sessions become identity-stripped
//     aggregate profiles
//  7. HTTP server: recommendation endpoints, health, Prometheus metrics
//
// The server shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/bibliograph/internal/anonymize"
	"github.com/tomtom215/bibliograph/internal/api"
	"github.com/tomtom215/bibliograph/internal/cache"
	"github.com/tomtom215/bibliograph/internal/config"
	"github.com/tomtom215/bibliograph/internal/database"
	"github.com/tomtom215/bibliograph/internal/logging"
	"github.com/tomtom215/bibliograph/internal/recommend"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().
		Str("db_path", cfg.Database.Path).
		Str("cache_backend", cfg.Cache.Backend).
		Int("port", cfg.Server.Port).
		Msg("starting bibliograph")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()

	store, err := newCacheStore(cfg)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("close cache")
		}
	}()
	failOpen := cache.NewFailOpen(store, logger)

	engine, err := recommend.NewEngine(db, db, db, db, failOpen, engineConfig(&cfg.Recommend), logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	anonymizer := anonymize.New(db, &cfg.Anonymize, logger)
	anonymizer.Start(ctx)

	router := api.NewRouter(engine, db, &cfg.Server, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// newCacheStore builds the configured cache backend.
func newCacheStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "badger":
		return cache.NewBadgerStore(cfg.Cache.Path)
	default:
		return cache.NewMemoryStore(), nil
	}
}

// engineConfig mirrors the app-level recommendation settings into the engine
// config, keeping engine defaults for tunables not exposed through app
// config.
func engineConfig(rc *config.RecommendConfig) *recommend.Config {
	ec := recommend.DefaultConfig()
	ec.DefaultLimit = rc.DefaultLimit
	ec.MaxLimit = rc.MaxLimit
	ec.MinSimilarity = rc.MinSimilarity
	ec.MaxPeers = rc.MaxPeers
	ec.MaxAnonProfiles = rc.MaxAnonProfiles
	ec.QualityThreshold = rc.QualityThreshold
	ec.SeriesSaturation = rc.SeriesSaturation
	ec.AuthorSaturation = rc.AuthorSaturation
	ec.MaxGenreRepeats = rc.MaxGenreRepeats
	ec.MaxAuthorRepeats = rc.MaxAuthorRepeats
	ec.DiversityBypass = rc.DiversityBypass
	if rc.ResultTTL > 0 {
		ec.ResultTTL = rc.ResultTTL
	}
	if rc.PeerTTL > 0 {
		ec.PeerTTL = rc.PeerTTL
	}
	if rc.AnonSampleTTL > 0 {
		ec.AnonSampleTTL = rc.AnonSampleTTL
	}
	return ec
}
