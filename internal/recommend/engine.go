// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/bibliograph/internal/cache"
	"github.com/tomtom215/bibliograph/internal/metrics"
)

// Result cache key formats. Results are keyed by (identity, limit) so
// different limits never serve each other truncated lists.
const (
	resultKeyUser    = "recs:user:%d:%d"
	resultKeyAnon    = "recs:anon:%s:%d"
	peerShortlistKey = "peers:user:%d"
	sourceRegistered = "registered"
	sourceAnonymous  = "anonymous"
)

// Engine is the recommendation pipeline front door. It is stateless across
// requests; all shared state lives in the injected fail-open cache, so
// concurrent requests are fully independent.
type Engine struct {
	interactions InteractionStore
	sessions     SessionStore
	cache        *cache.FailOpen
	builder      *ProfileBuilder
	collector    *Collector
	scorer       *Scorer
	diversity    *DiversityFilter
	cfg          *Config
	logger       zerolog.Logger
}

// NewEngine wires the pipeline. All stores are read-only collaborators; the
// engine's only side effect is cache writes.
func NewEngine(
	interactions InteractionStore,
	catalog CatalogStore,
	profiles ProfileStore,
	sessions SessionStore,
	failOpen *cache.FailOpen,
	cfg *Config,
	logger zerolog.Logger,
) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("recommend config: %w", err)
	}

	builder := NewProfileBuilder(cfg)
	return &Engine{
		interactions: interactions,
		sessions:     sessions,
		cache:        failOpen,
		builder:      builder,
		collector:    NewCollector(interactions, catalog, profiles, failOpen, builder, cfg, logger),
		scorer:       NewScorer(cfg),
		diversity:    NewDiversityFilter(cfg),
		cfg:          cfg,
		logger:       logger.With().Str("component", "engine").Logger(),
	}, nil
}

// GetRecommendations returns up to limit recommendations for a registered
// reader. A limit <= 0 falls back to the configured default; limits above the
// configured maximum are clamped. Pure read operation; the only side effects
// are cache writes.
func (e *Engine) GetRecommendations(ctx context.Context, userID int64, limit int, includeExplanations bool) ([]Recommendation, error) {
	limit = e.clampLimit(limit)
	start := time.Now()
	log := e.logger.With().
		Str("request_id", uuid.NewString()).
		Int64("user_id", userID).
		Int("limit", limit).
		Logger()

	cacheKey := fmt.Sprintf(resultKeyUser, userID, limit)
	var cached []Recommendation
	if e.cache.GetJSON(ctx, cacheKey, &cached) {
		metrics.CacheHits.WithLabelValues("results").Inc()
		metrics.RecommendationRequests.WithLabelValues(sourceRegistered, "hit").Inc()
		return presentable(cached, includeExplanations), nil
	}
	metrics.CacheMisses.WithLabelValues("results").Inc()

	records, err := e.interactions.GetReaderRecords(ctx, userID)
	if err != nil {
		metrics.RecommendationRequests.WithLabelValues(sourceRegistered, "error").Inc()
		return nil, fmt.Errorf("load reader records: %w", err)
	}
	profile := e.builder.Build(records)

	recs, err := e.compute(ctx, profile, userID, fmt.Sprintf(peerShortlistKey, userID), limit)
	if err != nil {
		metrics.RecommendationRequests.WithLabelValues(sourceRegistered, "error").Inc()
		return nil, err
	}

	e.cache.SetJSON(ctx, cacheKey, recs, e.cfg.ResultTTL)

	metrics.RecommendationRequests.WithLabelValues(sourceRegistered, "ok").Inc()
	metrics.RecommendationDuration.WithLabelValues(sourceRegistered).Observe(time.Since(start).Seconds())
	log.Debug().
		Int("results", len(recs)).
		Dur("elapsed", time.Since(start)).
		Msg("recommendations computed")

	return presentable(recs, includeExplanations), nil
}

// GetRecommendationsAnonymous returns recommendations for an anonymous
// session. An unknown or expired token yields an empty list, not an error.
func (e *Engine) GetRecommendationsAnonymous(ctx context.Context, sessionToken string, limit int, includeExplanations bool) ([]Recommendation, error) {
	limit = e.clampLimit(limit)
	start := time.Now()

	cacheKey := fmt.Sprintf(resultKeyAnon, sessionToken, limit)
	var cached []Recommendation
	if e.cache.GetJSON(ctx, cacheKey, &cached) {
		metrics.CacheHits.WithLabelValues("results").Inc()
		metrics.RecommendationRequests.WithLabelValues(sourceAnonymous, "hit").Inc()
		return presentable(cached, includeExplanations), nil
	}
	metrics.CacheMisses.WithLabelValues("results").Inc()

	session, err := e.sessions.GetSession(ctx, sessionToken)
	if errors.Is(err, ErrSessionNotFound) {
		metrics.RecommendationRequests.WithLabelValues(sourceAnonymous, "no_session").Inc()
		return []Recommendation{}, nil
	}
	if err != nil {
		metrics.RecommendationRequests.WithLabelValues(sourceAnonymous, "error").Inc()
		return nil, fmt.Errorf("load session: %w", err)
	}
	profile := e.builder.BuildFromSession(session)

	// Anonymous sessions skip peer-shortlist caching: the shortlist would
	// be keyed per token and essentially never re-hit.
	recs, err := e.compute(ctx, profile, 0, "", limit)
	if err != nil {
		metrics.RecommendationRequests.WithLabelValues(sourceAnonymous, "error").Inc()
		return nil, err
	}

	e.cache.SetJSON(ctx, cacheKey, recs, e.cfg.ResultTTL)

	metrics.RecommendationRequests.WithLabelValues(sourceAnonymous, "ok").Inc()
	metrics.RecommendationDuration.WithLabelValues(sourceAnonymous).Observe(time.Since(start).Seconds())

	return presentable(recs, includeExplanations), nil
}

// compute runs the collect, rank, diversify, explain pipeline. Explanations
// are always attached so cached entries can serve both explanation modes.
func (e *Engine) compute(ctx context.Context, profile *TasteProfile, excludeUserID int64, shortlistKey string, limit int) ([]Recommendation, error) {
	cands, err := e.collector.Collect(ctx, profile, excludeUserID, shortlistKey)
	if err != nil {
		return nil, err
	}

	ranked := e.scorer.Rank(cands, profile)
	if len(ranked) < limit {
		// The shortfall is measured after ranking: the quality gate can
		// reject every sourced candidate, and those rejections must still
		// trigger the fallback tier.
		if err := e.collector.Fallback(ctx, profile, cands, limit-len(ranked)); err != nil {
			return nil, fmt.Errorf("collect fallback candidates: %w", err)
		}
		ranked = e.scorer.Rank(cands, profile)
	}
	final := e.diversity.Apply(ranked, limit)

	recs := make([]Recommendation, 0, len(final))
	for i := range final {
		cand := &final[i]
		recs = append(recs, Recommendation{
			Book:         cand.Book,
			Score:        cand.Score,
			Confidence:   cand.Confidence,
			Sources:      cand.Sources,
			Explanations: Explain(&cand.Candidate, profile),
		})
	}
	return recs, nil
}

// clampLimit applies the default and maximum result limits.
func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

// presentable strips explanations when the caller did not ask for them.
// Cached lists always carry explanations so one cache entry serves both
// modes.
func presentable(recs []Recommendation, includeExplanations bool) []Recommendation {
	if includeExplanations {
		return recs
	}
	out := make([]Recommendation, len(recs))
	copy(out, recs)
	for i := range out {
		out[i].Explanations = nil
	}
	return out
}
