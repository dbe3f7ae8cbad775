// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/models"
)

// SampleProfiles returns up to limit anonymized aggregate profiles, randomly
// sampled so the comparison pool rotates between cache refreshes.
func (db *DB) SampleProfiles(ctx context.Context, limit int) ([]models.AnonymizedProfile, error) {
	if limit <= 0 {
		return nil, nil
	}

	start := time.Now()
	query := `
		SELECT id, total_books, genre_distribution, author_distribution,
		       top_book_ids, rating_distribution,
		       average_rating, avg_publish_year, created_at
		FROM anonymized_profiles
		ORDER BY random()
		LIMIT ?
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, limit)
	metrics.ObserveDBQuery("sample_profiles", start, err)
	if err != nil {
		return nil, fmt.Errorf("query anonymized profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.AnonymizedProfile
	for rows.Next() {
		var (
			p                     models.AnonymizedProfile
			genreDist, authorDist string
			topIDs, ratingDist    string
		)
		if err := rows.Scan(
			&p.ID, &p.TotalBooks, &genreDist, &authorDist,
			&topIDs, &ratingDist,
			&p.AverageRating, &p.AvgPublishYear, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan anonymized profile: %w", err)
		}

		// Malformed stored distributions are a data-integrity fault and
		// propagate to the caller.
		if err := json.Unmarshal([]byte(genreDist), &p.GenreDistribution); err != nil {
			return nil, fmt.Errorf("decode genre distribution for profile %d: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(authorDist), &p.AuthorDistribution); err != nil {
			return nil, fmt.Errorf("decode author distribution for profile %d: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(topIDs), &p.TopBookIDs); err != nil {
			return nil, fmt.Errorf("decode top book ids for profile %d: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(ratingDist), &p.RatingDistribution); err != nil {
			return nil, fmt.Errorf("decode rating distribution for profile %d: %w", p.ID, err)
		}

		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anonymized profiles: %w", err)
	}
	return profiles, nil
}

// InsertProfile persists one anonymized aggregate profile. The ID is
// assigned by the database sequence.
func (db *DB) InsertProfile(ctx context.Context, p *models.AnonymizedProfile) error {
	genreDist, err := json.Marshal(p.GenreDistribution)
	if err != nil {
		return fmt.Errorf("marshal genre distribution: %w", err)
	}
	authorDist, err := json.Marshal(p.AuthorDistribution)
	if err != nil {
		return fmt.Errorf("marshal author distribution: %w", err)
	}
	topIDs, err := json.Marshal(p.TopBookIDs)
	if err != nil {
		return fmt.Errorf("marshal top book ids: %w", err)
	}
	ratingDist, err := json.Marshal(p.RatingDistribution)
	if err != nil {
		return fmt.Errorf("marshal rating distribution: %w", err)
	}

	start := time.Now()
	query := `
		INSERT INTO anonymized_profiles
			(total_books, genre_distribution, author_distribution,
			 top_book_ids, rating_distribution,
			 average_rating, avg_publish_year, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx, query,
		p.TotalBooks, string(genreDist), string(authorDist),
		string(topIDs), string(ratingDist),
		p.AverageRating, p.AvgPublishYear, p.CreatedAt)
	metrics.ObserveDBQuery("insert_profile", start, err)
	if err != nil {
		return fmt.Errorf("insert anonymized profile: %w", err)
	}
	return nil
}
