// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core tables and indexes. All columns are defined
// up front; there is no migration machinery yet.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema statement: %s: %w", query, err)
		}
	}
	return nil
}

// tableCreationQueries returns the schema DDL.
//
// Tables:
//   - users: registered readers with visibility flags
//   - authors, publishers: catalog reference data
//   - books: the catalog, denormalized with author/publisher names
//   - book_genres: genre assignments, one row per (book, genre)
//   - user_books: reader-book interactions (rating, review, top flag)
//   - anonymous_sessions: token-keyed guest sessions with JSON-encoded
//     distributions
//   - anonymized_profiles: identity-stripped aggregates derived from expired
//     sessions
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username VARCHAR NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT false,
			is_visible BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS authors (
			id BIGINT PRIMARY KEY,
			name VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS publishers (
			id BIGINT PRIMARY KEY,
			name VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id BIGINT PRIMARY KEY,
			title VARCHAR NOT NULL,
			author_id BIGINT,
			author_name VARCHAR,
			publisher_id BIGINT,
			average_rating DOUBLE NOT NULL DEFAULT 0,
			publish_year INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS book_genres (
			book_id BIGINT NOT NULL,
			genre VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_books (
			user_id BIGINT NOT NULL,
			book_id BIGINT NOT NULL,
			rating INTEGER NOT NULL DEFAULT 0,
			review VARCHAR,
			is_top BOOLEAN NOT NULL DEFAULT false,
			added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, book_id)
		)`,
		`CREATE TABLE IF NOT EXISTS anonymous_sessions (
			token VARCHAR PRIMARY KEY,
			book_ids VARCHAR NOT NULL DEFAULT '[]',
			top_book_ids VARCHAR NOT NULL DEFAULT '[]',
			book_ratings VARCHAR NOT NULL DEFAULT '{}',
			genre_distribution VARCHAR NOT NULL DEFAULT '{}',
			author_distribution VARCHAR NOT NULL DEFAULT '{}',
			total_books INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			anonymized BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE SEQUENCE IF NOT EXISTS seq_anonymized_profiles START 1`,
		`CREATE TABLE IF NOT EXISTS anonymized_profiles (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_anonymized_profiles'),
			total_books INTEGER NOT NULL,
			genre_distribution VARCHAR NOT NULL DEFAULT '{}',
			author_distribution VARCHAR NOT NULL DEFAULT '{}',
			top_book_ids VARCHAR NOT NULL DEFAULT '[]',
			rating_distribution VARCHAR NOT NULL DEFAULT '{}',
			average_rating DOUBLE NOT NULL DEFAULT 0,
			avg_publish_year INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_books_user ON user_books(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_books_book ON user_books(book_id)`,
		`CREATE INDEX IF NOT EXISTS idx_book_genres_book ON book_genres(book_id)`,
		`CREATE INDEX IF NOT EXISTS idx_book_genres_genre ON book_genres(genre)`,
		`CREATE INDEX IF NOT EXISTS idx_books_rating ON books(average_rating)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON anonymous_sessions(expires_at, anonymized)`,
	}
}
