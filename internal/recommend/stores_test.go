// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"context"
	"sort"
	"time"

	"github.com/tomtom215/bibliograph/internal/cache"
	"github.com/tomtom215/bibliograph/internal/models"
)

// fakeStore is an in-memory implementation of every engine store interface,
// with per-method call counters for bulk-read assertions.
type fakeStore struct {
	readers   map[int64][]Record
	usernames map[int64]string
	public    []int64
	catalog   map[int64]models.Book
	profiles  []models.AnonymizedProfile
	sessions  map[string]*models.AnonymousSession
	topRated  []models.Book

	calls map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		readers:   make(map[int64][]Record),
		usernames: make(map[int64]string),
		catalog:   make(map[int64]models.Book),
		sessions:  make(map[string]*models.AnonymousSession),
		calls:     make(map[string]int),
	}
}

// addBook registers a catalog book and returns it.
func (f *fakeStore) addBook(book models.Book) models.Book {
	f.catalog[book.ID] = book
	return book
}

// addReader registers a public reader with records.
func (f *fakeStore) addReader(userID int64, username string, records []Record) {
	f.readers[userID] = records
	f.usernames[userID] = username
	f.public = append(f.public, userID)
}

func (f *fakeStore) GetReaderRecords(_ context.Context, userID int64) ([]Record, error) {
	f.calls["GetReaderRecords"]++
	return f.readers[userID], nil
}

func (f *fakeStore) GetPublicReaderRecords(_ context.Context, excludeUserID int64) ([]ReaderRecords, error) {
	f.calls["GetPublicReaderRecords"]++
	ids := append([]int64(nil), f.public...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []ReaderRecords
	for _, id := range ids {
		if id == excludeUserID {
			continue
		}
		out = append(out, ReaderRecords{
			UserID:   id,
			Username: f.usernames[id],
			Records:  f.readers[id],
		})
	}
	return out, nil
}

func (f *fakeStore) GetLikedRecords(_ context.Context, userIDs []int64) (map[int64][]Record, error) {
	f.calls["GetLikedRecords"]++
	liked := make(map[int64][]Record, len(userIDs))
	for _, id := range userIDs {
		for _, rec := range f.readers[id] {
			if rec.Rating >= 4 || rec.IsTop {
				liked[id] = append(liked[id], rec)
			}
		}
	}
	return liked, nil
}

func (f *fakeStore) GetBooksByIDs(_ context.Context, ids []int64) (map[int64]models.Book, error) {
	f.calls["GetBooksByIDs"]++
	out := make(map[int64]models.Book, len(ids))
	for _, id := range ids {
		if book, ok := f.catalog[id]; ok {
			out[id] = book
		}
	}
	return out, nil
}

func (f *fakeStore) GetBooksByAuthors(_ context.Context, authors []string, minRating float64, perAuthor int) ([]models.Book, error) {
	f.calls["GetBooksByAuthors"]++
	wanted := make(map[string]struct{}, len(authors))
	for _, a := range authors {
		wanted[a] = struct{}{}
	}

	perCount := make(map[string]int)
	var out []models.Book
	for _, book := range f.sortedCatalog() {
		author := NormalizeAuthor(book.AuthorName)
		if _, ok := wanted[author]; !ok {
			continue
		}
		if book.AverageRating < minRating || perCount[author] >= perAuthor {
			continue
		}
		perCount[author]++
		out = append(out, book)
	}
	return out, nil
}

func (f *fakeStore) GetBooksByGenres(_ context.Context, genres []string, minRating float64, perGenre int) ([]models.Book, error) {
	f.calls["GetBooksByGenres"]++
	perCount := make(map[string]int)
	seen := make(map[int64]struct{})

	var out []models.Book
	for _, genre := range genres {
		for _, book := range f.sortedCatalog() {
			if book.AverageRating < minRating || perCount[genre] >= perGenre {
				continue
			}
			if !hasGenre(book, genre) {
				continue
			}
			if _, dup := seen[book.ID]; dup {
				continue
			}
			seen[book.ID] = struct{}{}
			perCount[genre]++
			out = append(out, book)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTopRatedBooks(_ context.Context, limit int) ([]models.Book, error) {
	f.calls["GetTopRatedBooks"]++
	books := f.topRated
	if len(books) == 0 {
		books = f.sortedCatalog()
		sort.SliceStable(books, func(i, j int) bool { return books[i].AverageRating > books[j].AverageRating })
	}
	if len(books) > limit {
		books = books[:limit]
	}
	return books, nil
}

func (f *fakeStore) GetSession(_ context.Context, token string) (*models.AnonymousSession, error) {
	f.calls["GetSession"]++
	session, ok := f.sessions[token]
	if !ok || session.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeStore) SampleProfiles(_ context.Context, limit int) ([]models.AnonymizedProfile, error) {
	f.calls["SampleProfiles"]++
	profiles := f.profiles
	if len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}

func (f *fakeStore) sortedCatalog() []models.Book {
	books := make([]models.Book, 0, len(f.catalog))
	for _, b := range f.catalog {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books
}

func hasGenre(book models.Book, genre string) bool {
	for _, g := range book.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// erroringStore is a cache backend whose every operation fails, simulating a
// dead cache server.
type erroringStore struct{ err error }

func (s *erroringStore) Get(context.Context, string) ([]byte, error) { return nil, s.err }
func (s *erroringStore) Set(context.Context, string, []byte, time.Duration) error {
	return s.err
}
func (s *erroringStore) Close() error { return nil }

var _ cache.Store = (*erroringStore)(nil)
