// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package anonymize converts expired anonymous sessions into identity-
// stripped aggregate profiles. The batch runs on a fixed interval: sessions
// past their expiry that meet the minimum book count become
// AnonymizedProfiles; thinner sessions are marked processed and dropped.
// Anonymized session rows are purged after a retention window.
package anonymize

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bibliograph/internal/config"
	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/models"
)

// batchSize bounds how many expired sessions one run consumes.
const batchSize = 500

// Store is the persistence surface the anonymizer needs.
type Store interface {
	GetExpiredSessions(ctx context.Context, now time.Time, limit int) ([]models.AnonymousSession, error)
	MarkSessionsAnonymized(ctx context.Context, tokens []string) error
	InsertProfile(ctx context.Context, p *models.AnonymizedProfile) error
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Anonymizer runs the session anonymization batch.
type Anonymizer struct {
	store  Store
	cfg    *config.AnonymizeConfig
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an anonymizer.
func New(store Store, cfg *config.AnonymizeConfig, logger zerolog.Logger) *Anonymizer {
	return &Anonymizer{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "anonymizer").Logger(),
		now:    time.Now,
	}
}

// Start launches the periodic batch until ctx is canceled. No-op when
// disabled in config.
func (a *Anonymizer) Start(ctx context.Context) {
	if !a.cfg.Enabled {
		a.logger.Info().Msg("session anonymization disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(a.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.RunOnce(ctx); err != nil {
					a.logger.Error().Err(err).Msg("anonymization batch failed")
				}
			}
		}
	}()
}

// RunOnce processes one batch of expired sessions and purges rows past the
// retention window.
func (a *Anonymizer) RunOnce(ctx context.Context) error {
	now := a.now()

	sessions, err := a.store.GetExpiredSessions(ctx, now, batchSize)
	if err != nil {
		return fmt.Errorf("load expired sessions: %w", err)
	}

	var processed []string
	converted, skipped := 0, 0
	for i := range sessions {
		session := &sessions[i]
		processed = append(processed, session.Token)

		if session.TotalBooks < a.cfg.MinBooks {
			skipped++
			metrics.SessionsAnonymized.WithLabelValues("skipped").Inc()
			a.logger.Debug().
				Int("total_books", session.TotalBooks).
				Int("min_books", a.cfg.MinBooks).
				Msg("session below anonymization threshold, dropping")
			continue
		}

		profile := ProfileFromSession(session, now)
		if err := a.store.InsertProfile(ctx, profile); err != nil {
			metrics.SessionsAnonymized.WithLabelValues("error").Inc()
			return fmt.Errorf("insert anonymized profile: %w", err)
		}
		converted++
		metrics.SessionsAnonymized.WithLabelValues("converted").Inc()
	}

	if err := a.store.MarkSessionsAnonymized(ctx, processed); err != nil {
		return fmt.Errorf("mark sessions anonymized: %w", err)
	}

	cutoff := now.AddDate(0, 0, -a.cfg.RetentionDays)
	purged, err := a.store.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge old sessions: %w", err)
	}

	if converted > 0 || skipped > 0 || purged > 0 {
		a.logger.Info().
			Int("converted", converted).
			Int("skipped", skipped).
			Int64("purged", purged).
			Msg("anonymization batch complete")
	}
	return nil
}

// ProfileFromSession derives an identity-stripped aggregate from a session.
// The session token is deliberately not carried over; once the source row is
// purged the profile cannot be linked back.
func ProfileFromSession(s *models.AnonymousSession, now time.Time) *models.AnonymizedProfile {
	ratingDist := make(map[int]int, 5)
	var ratingSum, ratingCount int
	for _, r := range s.BookRatings {
		if r < 1 || r > 5 {
			continue
		}
		ratingDist[r]++
		ratingSum += r
		ratingCount++
	}

	var avgRating float64
	if ratingCount > 0 {
		avgRating = float64(ratingSum) / float64(ratingCount)
	}

	return &models.AnonymizedProfile{
		TotalBooks:         s.TotalBooks,
		GenreDistribution:  copyDist(s.GenreDistribution),
		AuthorDistribution: copyDist(s.AuthorDistribution),
		TopBookIDs:         append([]int64(nil), s.TopBookIDs...),
		RatingDistribution: ratingDist,
		AverageRating:      avgRating,
		CreatedAt:          now,
	}
}

// copyDist clones a weight map so the profile never aliases session state.
func copyDist(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
