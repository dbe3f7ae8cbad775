// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/models"
)

// UpsertUser writes a registered reader row.
func (db *DB) UpsertUser(ctx context.Context, id int64, username string, isPublic, isVisible bool) error {
	start := time.Now()
	query := `
		INSERT OR REPLACE INTO users (id, username, is_public, is_visible)
		VALUES (?, ?, ?, ?)
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, query, id, username, isPublic, isVisible)
	metrics.ObserveDBQuery("upsert_user", start, err)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", id, err)
	}
	return nil
}

// UpsertBook writes a catalog entry and replaces its genre assignments.
func (db *DB) UpsertBook(ctx context.Context, book models.Book) error {
	start := time.Now()

	ctx, cancel := queryContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert book: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO books
			(id, title, author_id, author_name, publisher_id, average_rating, publish_year)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, book.ID, book.Title, book.AuthorID, book.AuthorName, book.PublisherID,
		book.AverageRating, book.PublishYear)
	if err != nil {
		metrics.ObserveDBQuery("upsert_book", start, err)
		return fmt.Errorf("upsert book %d: %w", book.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM book_genres WHERE book_id = ?`, book.ID); err != nil {
		metrics.ObserveDBQuery("upsert_book", start, err)
		return fmt.Errorf("clear genres for book %d: %w", book.ID, err)
	}
	for _, genre := range book.Genres {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO book_genres (book_id, genre) VALUES (?, ?)`, book.ID, genre); err != nil {
			metrics.ObserveDBQuery("upsert_book", start, err)
			return fmt.Errorf("insert genre %q for book %d: %w", genre, book.ID, err)
		}
	}

	err = tx.Commit()
	metrics.ObserveDBQuery("upsert_book", start, err)
	if err != nil {
		return fmt.Errorf("commit upsert book %d: %w", book.ID, err)
	}
	return nil
}

// UpsertUserBook writes one reader-book interaction.
func (db *DB) UpsertUserBook(ctx context.Context, ub models.UserBook) error {
	start := time.Now()
	query := `
		INSERT OR REPLACE INTO user_books (user_id, book_id, rating, review, is_top)
		VALUES (?, ?, ?, ?, ?)
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, query,
		ub.UserID, ub.BookID, ub.Rating, ub.Review, ub.IsTopBook)
	metrics.ObserveDBQuery("upsert_user_book", start, err)
	if err != nil {
		return fmt.Errorf("upsert interaction (%d, %d): %w", ub.UserID, ub.BookID, err)
	}
	return nil
}
