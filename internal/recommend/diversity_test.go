// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"testing"

	"github.com/tomtom215/bibliograph/internal/models"
)

// rankedList builds a score-descending list of single-genre candidates.
func rankedList(entries ...RankedCandidate) []RankedCandidate {
	return entries
}

func rc(id int64, genre, author string, score float64) RankedCandidate {
	return RankedCandidate{
		Candidate: Candidate{
			Book: models.Book{ID: id, Title: "Sample Long Title", AuthorName: author, Genres: []string{genre}},
		},
		Score: score,
	}
}

func TestDiversityFilterGenreCap(t *testing.T) {
	cfg := DefaultConfig()
	filter := NewDiversityFilter(cfg)

	// Eight fantasy candidates then two others; with limit 8 the first four
	// slots fill unconditionally, after which fantasy is capped at 3... the
	// fourth fantasy already landed in the unconditional half, so the genre
	// counter blocks the rest.
	in := rankedList(
		rc(1, "fantasy", "a1", 10),
		rc(2, "fantasy", "a2", 9),
		rc(3, "fantasy", "a3", 8),
		rc(4, "fantasy", "a4", 7),
		rc(5, "fantasy", "a5", 6),
		rc(6, "fantasy", "a6", 5),
		rc(7, "mystery", "a7", 4),
		rc(8, "romance", "a8", 3),
	)

	out := filter.Apply(in, 8)

	genreCount := 0
	for _, cand := range out {
		if cand.Book.Genres[0] == "fantasy" {
			genreCount++
		}
	}
	if genreCount != 4 {
		t.Errorf("fantasy count = %d, want 4 (unconditional half only)", genreCount)
	}
	if len(out) != 6 {
		t.Errorf("output len = %d, want 6 (two fantasy skipped)", len(out))
	}
}

func TestDiversityFilterAuthorCap(t *testing.T) {
	cfg := DefaultConfig()
	filter := NewDiversityFilter(cfg)

	in := rankedList(
		rc(1, "g1", "prolific", 10),
		rc(2, "g2", "prolific", 9),
		rc(3, "g3", "prolific", 1), // past half, third by same author, low score
		rc(4, "g4", "other", 0.5),
	)

	out := filter.Apply(in, 4)

	if len(out) != 3 {
		t.Fatalf("output len = %d, want 3", len(out))
	}
	for _, cand := range out {
		if cand.Book.ID == 3 {
			t.Error("third book by the same author should be skipped past the half mark")
		}
	}
}

func TestDiversityFilterHighScoreBypass(t *testing.T) {
	cfg := DefaultConfig()
	filter := NewDiversityFilter(cfg)

	in := rankedList(
		rc(1, "g1", "prolific", 10),
		rc(2, "g2", "prolific", 9.5),
		rc(3, "g3", "prolific", 9), // >= 80% of top score, bypasses the cap
		rc(4, "g4", "other", 1),
	)

	out := filter.Apply(in, 4)
	found := false
	for _, cand := range out {
		if cand.Book.ID == 3 {
			found = true
		}
	}
	if !found {
		t.Error("candidate at >=80% of top score should bypass the repetition cap")
	}
}

func TestDiversityFilterRespectsLimit(t *testing.T) {
	cfg := DefaultConfig()
	filter := NewDiversityFilter(cfg)

	in := rankedList(
		rc(1, "g1", "a1", 5),
		rc(2, "g2", "a2", 4),
		rc(3, "g3", "a3", 3),
	)

	if out := filter.Apply(in, 2); len(out) != 2 {
		t.Errorf("output len = %d, want limit 2", len(out))
	}
	if out := filter.Apply(in, 10); len(out) != 3 {
		t.Errorf("output len = %d, want all 3 when input short", len(out))
	}
	if out := filter.Apply(nil, 5); out != nil {
		t.Errorf("empty input should yield nil, got %v", out)
	}
}
