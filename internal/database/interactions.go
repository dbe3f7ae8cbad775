// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/recommend"
)

// recordColumns is the shared projection for interaction record queries:
// book metadata, aggregated genres, and the interaction fields.
const recordColumns = `
	ub.book_id,
	b.title,
	COALESCE(b.author_id, 0),
	COALESCE(b.author_name, ''),
	COALESCE(b.publisher_id, 0),
	b.average_rating,
	b.publish_year,
	COALESCE(g.genres, ''),
	ub.rating,
	ub.is_top`

// genreJoin aggregates each book's genres into one pipe-delimited column so
// record queries stay one row per interaction.
const genreJoin = `
	LEFT JOIN (
		SELECT book_id, string_agg(genre, '|') AS genres
		FROM book_genres
		GROUP BY book_id
	) g ON g.book_id = b.id`

// GetReaderRecords returns one reader's interaction records with full book
// metadata in a single query.
func (db *DB) GetReaderRecords(ctx context.Context, userID int64) ([]recommend.Record, error) {
	start := time.Now()
	query := `
		SELECT ` + recordColumns + `
		FROM user_books ub
		JOIN books b ON b.id = ub.book_id` + genreJoin + `
		WHERE ub.user_id = ?
		ORDER BY ub.book_id
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, userID)
	metrics.ObserveDBQuery("reader_records", start, err)
	if err != nil {
		return nil, fmt.Errorf("query reader records: %w", err)
	}
	defer rows.Close()

	var records []recommend.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reader records: %w", err)
	}
	return records, nil
}

// GetPublicReaderRecords returns the interaction records of every visible
// public reader except excludeUserID, grouped per reader. One bulk query;
// peer candidate collection must never fetch per reader.
func (db *DB) GetPublicReaderRecords(ctx context.Context, excludeUserID int64) ([]recommend.ReaderRecords, error) {
	start := time.Now()
	query := `
		SELECT
			u.id,
			u.username, ` + recordColumns + `
		FROM users u
		JOIN user_books ub ON ub.user_id = u.id
		JOIN books b ON b.id = ub.book_id` + genreJoin + `
		WHERE u.is_public AND u.is_visible AND u.id != ?
		ORDER BY u.id, ub.book_id
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, excludeUserID)
	metrics.ObserveDBQuery("public_reader_records", start, err)
	if err != nil {
		return nil, fmt.Errorf("query public reader records: %w", err)
	}
	defer rows.Close()

	var readers []recommend.ReaderRecords
	var current *recommend.ReaderRecords
	for rows.Next() {
		var (
			userID   int64
			username string
		)
		rec, err := scanReaderRecord(rows, &userID, &username)
		if err != nil {
			return nil, err
		}
		// Rows arrive ordered by reader, so grouping is a single pass.
		if current == nil || current.UserID != userID {
			readers = append(readers, recommend.ReaderRecords{UserID: userID, Username: username})
			current = &readers[len(readers)-1]
		}
		current.Records = append(current.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate public reader records: %w", err)
	}
	return readers, nil
}

// GetLikedRecords returns, per reader, the books they rated >= 4 or flagged
// as top books. One bulk query across all requested readers.
func (db *DB) GetLikedRecords(ctx context.Context, userIDs []int64) (map[int64][]recommend.Record, error) {
	liked := make(map[int64][]recommend.Record, len(userIDs))
	if len(userIDs) == 0 {
		return liked, nil
	}

	start := time.Now()
	query := `
		SELECT
			ub.user_id, ` + recordColumns + `
		FROM user_books ub
		JOIN books b ON b.id = ub.book_id` + genreJoin + `
		WHERE ub.user_id IN (` + placeholders(len(userIDs)) + `)
		  AND (ub.rating >= 4 OR ub.is_top)
		ORDER BY ub.user_id, ub.book_id
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, int64Args(userIDs)...)
	metrics.ObserveDBQuery("liked_records", start, err)
	if err != nil {
		return nil, fmt.Errorf("query liked records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		rec, err := scanReaderRecord(rows, &userID, nil)
		if err != nil {
			return nil, err
		}
		liked[userID] = append(liked[userID], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liked records: %w", err)
	}
	return liked, nil
}

// scanRecord scans one interaction row in recordColumns order.
func scanRecord(rows *sql.Rows) (recommend.Record, error) {
	var (
		rec    recommend.Record
		genres string
	)
	if err := rows.Scan(
		&rec.Book.ID,
		&rec.Book.Title,
		&rec.Book.AuthorID,
		&rec.Book.AuthorName,
		&rec.Book.PublisherID,
		&rec.Book.AverageRating,
		&rec.Book.PublishYear,
		&genres,
		&rec.Rating,
		&rec.IsTop,
	); err != nil {
		return recommend.Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Book.Genres = splitGenres(genres)
	return rec, nil
}

// scanReaderRecord scans one row prefixed with the reader's ID and,
// optionally, username.
func scanReaderRecord(rows *sql.Rows, userID *int64, username *string) (recommend.Record, error) {
	var (
		rec    recommend.Record
		genres string
	)
	dest := []any{userID}
	if username != nil {
		dest = append(dest, username)
	}
	dest = append(dest,
		&rec.Book.ID,
		&rec.Book.Title,
		&rec.Book.AuthorID,
		&rec.Book.AuthorName,
		&rec.Book.PublisherID,
		&rec.Book.AverageRating,
		&rec.Book.PublishYear,
		&genres,
		&rec.Rating,
		&rec.IsTop,
	)
	if err := rows.Scan(dest...); err != nil {
		return recommend.Record{}, fmt.Errorf("scan reader record: %w", err)
	}
	rec.Book.Genres = splitGenres(genres)
	return rec, nil
}

// splitGenres unpacks the pipe-delimited genre aggregate.
func splitGenres(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

// placeholders builds a "?, ?, ..." list of length n.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// int64Args converts an ID slice to query arguments.
func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// compile-time interface checks
var (
	_ recommend.InteractionStore = (*DB)(nil)
	_ recommend.CatalogStore     = (*DB)(nil)
	_ recommend.SessionStore     = (*DB)(nil)
	_ recommend.ProfileStore     = (*DB)(nil)
)
