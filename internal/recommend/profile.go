// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"strings"

	"github.com/tomtom215/bibliograph/internal/models"
)

// Per-record weights. A rating is its own weight; unrated books get the
// neutral constant; a top-book flag overrides both.
const (
	neutralWeight = 3.0
	topBookWeight = 5.0

	// dislikeCeiling: ratings at or below this mark a book as disliked.
	dislikeCeiling = 2
)

// seriesDelimiters mark the start of volume/series suffixes in titles. The
// title is truncated at the first occurrence before fingerprinting.
var seriesDelimiters = []string{"book ", "vol ", "#", ":", " - "}

// TasteProfile is the derived, per-request summary of a reader's
// preferences. It is the unit of similarity comparison. Never mutated once
// built.
type TasteProfile struct {
	// ReadBooks holds every book the reader has read.
	ReadBooks map[int64]struct{}

	// Disliked holds books rated <= 2.
	Disliked map[int64]struct{}

	// TopBooks holds explicitly flagged favorites.
	TopBooks map[int64]struct{}

	// Ratings maps book ID to rating (1-5) for rated books only.
	Ratings map[int64]int

	// GenreWeights and AuthorWeights accumulate per-record weight by genre
	// name and normalized author name. Always non-negative.
	GenreWeights  map[string]float64
	AuthorWeights map[string]float64

	// RatingDist counts ratings by bucket; index r-1 holds the count of
	// rating r.
	RatingDist [5]int

	// YearWeights accumulates per-record weight by publish year, the
	// weight-replicated multiset used for era similarity.
	YearWeights map[int]float64

	// SaturatedSeries holds series keys with enough reads to suppress
	// further entries from the same series.
	SaturatedSeries map[string]struct{}

	// AuthorReads counts read books per normalized author name.
	AuthorReads map[string]int

	// TotalBooks is the number of contributing records.
	TotalBooks int
}

// RatedCount returns the number of rated books.
func (p *TasteProfile) RatedCount() int {
	return len(p.Ratings)
}

// MeanRating returns the mean of assigned ratings, or 0 with no ratings.
func (p *TasteProfile) MeanRating() float64 {
	if len(p.Ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r
	}
	return float64(sum) / float64(len(p.Ratings))
}

// ProfileBuilder converts interaction history into taste profiles.
type ProfileBuilder struct {
	seriesSaturation int
}

// NewProfileBuilder creates a builder with the engine's saturation
// thresholds.
func NewProfileBuilder(cfg *Config) *ProfileBuilder {
	return &ProfileBuilder{seriesSaturation: cfg.SeriesSaturation}
}

// Build computes a profile from joined interaction records in a single pass.
func (b *ProfileBuilder) Build(records []Record) *TasteProfile {
	p := newProfile()
	seriesReads := make(map[string]int)

	for _, rec := range records {
		book := rec.Book
		weight := recordWeight(rec.Rating, rec.IsTop)

		p.ReadBooks[book.ID] = struct{}{}
		p.TotalBooks++

		if rec.Rating >= 1 && rec.Rating <= 5 {
			p.Ratings[book.ID] = rec.Rating
			p.RatingDist[rec.Rating-1]++
			if rec.Rating <= dislikeCeiling {
				p.Disliked[book.ID] = struct{}{}
			}
		}
		if rec.IsTop {
			p.TopBooks[book.ID] = struct{}{}
		}

		for _, genre := range book.Genres {
			p.GenreWeights[genre] += weight
		}

		author := NormalizeAuthor(book.AuthorName)
		if author != "" {
			p.AuthorWeights[author] += weight
			p.AuthorReads[author]++
		}

		if book.PublishYear > 0 {
			p.YearWeights[book.PublishYear] += weight
		}

		if key := SeriesKey(book.Title); key != "" {
			seriesReads[key]++
		}
	}

	for key, count := range seriesReads {
		if count >= b.seriesSaturation {
			p.SaturatedSeries[key] = struct{}{}
		}
	}

	return p
}

// BuildFromSession computes a profile from an anonymous session's
// pre-aggregated distributions. Series and era data are not captured for
// sessions, so those components are absent from comparisons.
func (b *ProfileBuilder) BuildFromSession(s *models.AnonymousSession) *TasteProfile {
	p := newProfile()

	for _, id := range s.BookIDs {
		p.ReadBooks[id] = struct{}{}
	}
	for _, id := range s.TopBookIDs {
		p.TopBooks[id] = struct{}{}
	}
	for id, r := range s.BookRatings {
		if r < 1 || r > 5 {
			continue
		}
		p.Ratings[id] = r
		p.RatingDist[r-1]++
		if r <= dislikeCeiling {
			p.Disliked[id] = struct{}{}
		}
	}
	for genre, w := range s.GenreDistribution {
		if w > 0 {
			p.GenreWeights[genre] = w
		}
	}
	for author, w := range s.AuthorDistribution {
		if w > 0 {
			p.AuthorWeights[NormalizeAuthor(author)] = w
		}
	}

	p.TotalBooks = s.TotalBooks
	if p.TotalBooks == 0 {
		p.TotalBooks = len(s.BookIDs)
	}

	return p
}

// newProfile allocates an empty profile.
func newProfile() *TasteProfile {
	return &TasteProfile{
		ReadBooks:       make(map[int64]struct{}),
		Disliked:        make(map[int64]struct{}),
		TopBooks:        make(map[int64]struct{}),
		Ratings:         make(map[int64]int),
		GenreWeights:    make(map[string]float64),
		AuthorWeights:   make(map[string]float64),
		YearWeights:     make(map[int]float64),
		SaturatedSeries: make(map[string]struct{}),
		AuthorReads:     make(map[string]int),
	}
}

// recordWeight derives the contribution weight of one record.
func recordWeight(rating int, isTop bool) float64 {
	if isTop {
		return topBookWeight
	}
	if rating >= 1 && rating <= 5 {
		return float64(rating)
	}
	return neutralWeight
}

// SeriesKey fingerprints a title to a series key: lowercase, truncate at the
// first volume/series delimiter, then keep the first one or two tokens
// longer than three characters. Returns "" when no token qualifies.
func SeriesKey(title string) string {
	t := strings.ToLower(title)
	for _, d := range seriesDelimiters {
		if i := strings.Index(t, d); i >= 0 {
			t = t[:i]
		}
	}

	var kept []string
	for _, tok := range strings.Fields(t) {
		if len(tok) > 3 {
			kept = append(kept, tok)
			if len(kept) == 2 {
				break
			}
		}
	}

	return strings.Join(kept, " ")
}

// NormalizeAuthor canonicalizes an author name for weight maps: lowercase
// with collapsed whitespace.
func NormalizeAuthor(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
