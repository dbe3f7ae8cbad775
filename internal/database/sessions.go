// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/models"
	"github.com/tomtom215/bibliograph/internal/recommend"
)

// GetSession returns the anonymous session for token. Unknown tokens and
// sessions past their expiry both yield recommend.ErrSessionNotFound.
func (db *DB) GetSession(ctx context.Context, token string) (*models.AnonymousSession, error) {
	start := time.Now()
	query := `
		SELECT token, book_ids, top_book_ids, book_ratings,
		       genre_distribution, author_distribution,
		       total_books, created_at, expires_at, anonymized
		FROM anonymous_sessions
		WHERE token = ?
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, query, token)
	session, err := scanSession(row)
	metrics.ObserveDBQuery("get_session", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recommend.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, recommend.ErrSessionNotFound
	}
	return session, nil
}

// UpsertSession writes an anonymous session, replacing any existing row for
// the same token.
func (db *DB) UpsertSession(ctx context.Context, s *models.AnonymousSession) error {
	bookIDs, err := json.Marshal(s.BookIDs)
	if err != nil {
		return fmt.Errorf("marshal book ids: %w", err)
	}
	topIDs, err := json.Marshal(s.TopBookIDs)
	if err != nil {
		return fmt.Errorf("marshal top book ids: %w", err)
	}
	ratings, err := json.Marshal(s.BookRatings)
	if err != nil {
		return fmt.Errorf("marshal book ratings: %w", err)
	}
	genres, err := json.Marshal(s.GenreDistribution)
	if err != nil {
		return fmt.Errorf("marshal genre distribution: %w", err)
	}
	authors, err := json.Marshal(s.AuthorDistribution)
	if err != nil {
		return fmt.Errorf("marshal author distribution: %w", err)
	}

	start := time.Now()
	query := `
		INSERT OR REPLACE INTO anonymous_sessions
			(token, book_ids, top_book_ids, book_ratings,
			 genre_distribution, author_distribution,
			 total_books, created_at, expires_at, anonymized)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx, query,
		s.Token, string(bookIDs), string(topIDs), string(ratings),
		string(genres), string(authors),
		s.TotalBooks, s.CreatedAt, s.ExpiresAt, s.Anonymized)
	metrics.ObserveDBQuery("upsert_session", start, err)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetExpiredSessions returns up to limit expired sessions that have not been
// anonymized yet, oldest first.
func (db *DB) GetExpiredSessions(ctx context.Context, now time.Time, limit int) ([]models.AnonymousSession, error) {
	start := time.Now()
	query := `
		SELECT token, book_ids, top_book_ids, book_ratings,
		       genre_distribution, author_distribution,
		       total_books, created_at, expires_at, anonymized
		FROM anonymous_sessions
		WHERE expires_at <= ? AND NOT anonymized
		ORDER BY expires_at
		LIMIT ?
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, now, limit)
	metrics.ObserveDBQuery("expired_sessions", start, err)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.AnonymousSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return sessions, nil
}

// MarkSessionsAnonymized flags processed sessions so the anonymization batch
// never consumes them twice.
func (db *DB) MarkSessionsAnonymized(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	start := time.Now()
	query := `
		UPDATE anonymous_sessions
		SET anonymized = true
		WHERE token IN (` + placeholders(len(tokens)) + `)
	`

	args := make([]any, len(tokens))
	for i, t := range tokens {
		args[i] = t
	}

	ctx, cancel := queryContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, query, args...)
	metrics.ObserveDBQuery("mark_anonymized", start, err)
	if err != nil {
		return fmt.Errorf("mark sessions anonymized: %w", err)
	}
	return nil
}

// DeleteSessionsBefore purges anonymized sessions that expired before cutoff.
// Returns the number of rows removed.
func (db *DB) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	query := `
		DELETE FROM anonymous_sessions
		WHERE anonymized AND expires_at <= ?
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, query, cutoff)
	metrics.ObserveDBQuery("purge_sessions", start, err)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions rows affected: %w", err)
	}
	return n, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession scans one anonymous_sessions row and decodes the JSON columns.
// A malformed stored distribution is a data-integrity fault and propagates.
func scanSession(row rowScanner) (*models.AnonymousSession, error) {
	var (
		s                        models.AnonymousSession
		bookIDs, topIDs, ratings string
		genreDist, authorDist    string
	)
	if err := row.Scan(
		&s.Token, &bookIDs, &topIDs, &ratings,
		&genreDist, &authorDist,
		&s.TotalBooks, &s.CreatedAt, &s.ExpiresAt, &s.Anonymized,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(bookIDs), &s.BookIDs); err != nil {
		return nil, fmt.Errorf("decode book ids for session: %w", err)
	}
	if err := json.Unmarshal([]byte(topIDs), &s.TopBookIDs); err != nil {
		return nil, fmt.Errorf("decode top book ids for session: %w", err)
	}
	if err := json.Unmarshal([]byte(ratings), &s.BookRatings); err != nil {
		return nil, fmt.Errorf("decode book ratings for session: %w", err)
	}
	if err := json.Unmarshal([]byte(genreDist), &s.GenreDistribution); err != nil {
		return nil, fmt.Errorf("decode genre distribution for session: %w", err)
	}
	if err := json.Unmarshal([]byte(authorDist), &s.AuthorDistribution); err != nil {
		return nil, fmt.Errorf("decode author distribution for session: %w", err)
	}
	return &s, nil
}
