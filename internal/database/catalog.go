// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/models"
)

// bookColumns is the shared projection for catalog queries.
const bookColumns = `
	b.id,
	b.title,
	COALESCE(b.author_id, 0) AS author_id,
	COALESCE(b.author_name, '') AS author_name,
	COALESCE(b.publisher_id, 0) AS publisher_id,
	b.average_rating,
	b.publish_year,
	COALESCE(g.genres, '') AS genres`

// GetBooksByIDs resolves catalog metadata for a set of book IDs in one
// query. Unknown IDs are omitted from the result map.
func (db *DB) GetBooksByIDs(ctx context.Context, ids []int64) (map[int64]models.Book, error) {
	books := make(map[int64]models.Book, len(ids))
	if len(ids) == 0 {
		return books, nil
	}

	start := time.Now()
	query := `
		SELECT ` + bookColumns + `
		FROM books b` + genreJoin + `
		WHERE b.id IN (` + placeholders(len(ids)) + `)
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, int64Args(ids)...)
	metrics.ObserveDBQuery("books_by_ids", start, err)
	if err != nil {
		return nil, fmt.Errorf("query books by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books[book.ID] = book
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books by ids: %w", err)
	}
	return books, nil
}

// authorKeyExpr lowercases and collapses whitespace in the stored author
// name, matching the engine's normalized author keys.
const authorKeyExpr = `trim(regexp_replace(lower(b.author_name), '\s+', ' ', 'g'))`

// GetBooksByAuthors returns up to perAuthor books per named author with
// average rating >= minRating, best rated first within each author. Incoming
// names are normalized author keys; the stored name is normalized the same
// way before matching so case and whitespace differences never miss.
func (db *DB) GetBooksByAuthors(ctx context.Context, authors []string, minRating float64, perAuthor int) ([]models.Book, error) {
	if len(authors) == 0 || perAuthor <= 0 {
		return nil, nil
	}

	start := time.Now()
	query := `
		SELECT id, title, author_id, author_name, publisher_id, average_rating, publish_year, genres
		FROM (
			SELECT ` + bookColumns + `,
				row_number() OVER (
					PARTITION BY ` + authorKeyExpr + `
					ORDER BY b.average_rating DESC, b.id
				) AS rn
			FROM books b` + genreJoin + `
			WHERE ` + authorKeyExpr + ` IN (` + placeholders(len(authors)) + `)
			  AND b.average_rating >= ?
		)
		WHERE rn <= ?
		ORDER BY average_rating DESC, id
	`

	args := make([]any, 0, len(authors)+2)
	for _, a := range authors {
		args = append(args, a)
	}
	args = append(args, minRating, perAuthor)

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveDBQuery("books_by_authors", start, err)
	if err != nil {
		return nil, fmt.Errorf("query books by authors: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows, "books by authors")
}

// GetBooksByGenres returns up to perGenre books per genre with average
// rating >= minRating, best rated first within each genre.
func (db *DB) GetBooksByGenres(ctx context.Context, genres []string, minRating float64, perGenre int) ([]models.Book, error) {
	if len(genres) == 0 || perGenre <= 0 {
		return nil, nil
	}

	start := time.Now()
	query := `
		SELECT id, title, author_id, author_name, publisher_id, average_rating, publish_year, genres
		FROM (
			SELECT ` + bookColumns + `,
				row_number() OVER (
					PARTITION BY bg.genre
					ORDER BY b.average_rating DESC, b.id
				) AS rn
			FROM book_genres bg
			JOIN books b ON b.id = bg.book_id` + genreJoin + `
			WHERE bg.genre IN (` + placeholders(len(genres)) + `)
			  AND b.average_rating >= ?
		)
		WHERE rn <= ?
		ORDER BY average_rating DESC, id
	`

	args := make([]any, 0, len(genres)+2)
	for _, g := range genres {
		args = append(args, g)
	}
	args = append(args, minRating, perGenre)

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveDBQuery("books_by_genres", start, err)
	if err != nil {
		return nil, fmt.Errorf("query books by genres: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows, "books by genres")
}

// GetTopRatedBooks returns the highest-rated catalog books, the popularity
// rung behind every other sourcing tier.
func (db *DB) GetTopRatedBooks(ctx context.Context, limit int) ([]models.Book, error) {
	if limit <= 0 {
		return nil, nil
	}

	start := time.Now()
	query := `
		SELECT ` + bookColumns + `
		FROM books b` + genreJoin + `
		ORDER BY b.average_rating DESC, b.id
		LIMIT ?
	`

	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, limit)
	metrics.ObserveDBQuery("top_rated_books", start, err)
	if err != nil {
		return nil, fmt.Errorf("query top rated books: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows, "top rated books")
}

// scanBook scans one row in bookColumns order.
func scanBook(rows *sql.Rows) (models.Book, error) {
	var (
		book   models.Book
		genres string
	)
	if err := rows.Scan(
		&book.ID,
		&book.Title,
		&book.AuthorID,
		&book.AuthorName,
		&book.PublisherID,
		&book.AverageRating,
		&book.PublishYear,
		&genres,
	); err != nil {
		return models.Book{}, fmt.Errorf("scan book: %w", err)
	}
	book.Genres = splitGenres(genres)
	return book, nil
}

// collectBooks drains a book result set.
func collectBooks(rows *sql.Rows, what string) ([]models.Book, error) {
	var books []models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return books, nil
}
