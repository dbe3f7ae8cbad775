// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package models defines the domain types shared between the database layer
// and the recommendation engine.
package models

import "time"

// Book is a catalog entry. AverageRating is the community average (0-5);
// zero means unrated. PublishYear is zero when unknown.
type Book struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	AuthorID      int64    `json:"author_id"`
	AuthorName    string   `json:"author_name"`
	PublisherID   int64    `json:"publisher_id,omitempty"`
	Genres        []string `json:"genres"`
	AverageRating float64  `json:"average_rating,omitempty"`
	PublishYear   int      `json:"publish_year,omitempty"`
}

// UserBook is one reader-book interaction. Rating is 1-5, zero when the
// reader never rated the book. Review is the free-text review, unused by the
// engine but carried for completeness.
type UserBook struct {
	UserID    int64  `json:"user_id"`
	BookID    int64  `json:"book_id"`
	Rating    int    `json:"rating,omitempty"`
	Review    string `json:"review,omitempty"`
	IsTopBook bool   `json:"is_top_book"`
}

// Rated reports whether the reader assigned a rating.
func (ub UserBook) Rated() bool {
	return ub.Rating >= 1 && ub.Rating <= 5
}

// AnonymousSession is the pre-aggregated taste data captured for a reader who
// analyzed a CSV without an account. Distributions are weight maps keyed by
// genre name and normalized author name.
type AnonymousSession struct {
	Token              string             `json:"token"`
	BookIDs            []int64            `json:"book_ids"`
	TopBookIDs         []int64            `json:"top_book_ids"`
	BookRatings        map[int64]int      `json:"book_ratings,omitempty"`
	GenreDistribution  map[string]float64 `json:"genre_distribution"`
	AuthorDistribution map[string]float64 `json:"author_distribution"`
	TotalBooks         int                `json:"total_books"`
	CreatedAt          time.Time          `json:"created_at"`
	ExpiresAt          time.Time          `json:"expires_at"`
	Anonymized         bool               `json:"anonymized"`
}

// Expired reports whether the session has passed its expiry.
func (s *AnonymousSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AnonymizedProfile is a persisted, identity-stripped distribution summary
// derived from an expired anonymous session. It never links back to a session
// token or user.
type AnonymizedProfile struct {
	ID                 int64              `json:"id"`
	TotalBooks         int                `json:"total_books"`
	GenreDistribution  map[string]float64 `json:"genre_distribution"`
	AuthorDistribution map[string]float64 `json:"author_distribution"`
	TopBookIDs         []int64            `json:"top_book_ids"`
	RatingDistribution map[int]int        `json:"rating_distribution,omitempty"`
	AverageRating      float64            `json:"average_rating,omitempty"`
	AvgPublishYear     int                `json:"avg_publish_year,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}
