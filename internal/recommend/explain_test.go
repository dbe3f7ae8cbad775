// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"strings"
	"testing"

	"github.com/tomtom215/bibliograph/internal/models"
)

func TestExplainFragments(t *testing.T) {
	cfg := DefaultConfig()
	profile := NewProfileBuilder(cfg).Build([]Record{
		{Book: models.Book{ID: 1, Title: "Anchor One Title", Genres: []string{"fantasy"}}, Rating: 5},
		{Book: models.Book{ID: 2, Title: "Anchor Two Title", Genres: []string{"myth"}}, Rating: 4},
	})

	cand := &Candidate{
		Book: models.Book{
			ID:            50,
			Title:         "Well Liked Book",
			Genres:        []string{"fantasy", "myth"},
			AverageRating: 4.5,
		},
		Sources: SourceList{
			SimilarUser{Username: "alice", Similarity: 0.7, SharedCount: 8},
			SimilarUser{Username: "bob", Similarity: 0.9, SharedCount: 3},
			AnonymizedProfile{Similarity: 0.5},
		},
		RecommenderCount: 3,
	}

	fragments := Explain(cand, profile)

	if len(fragments) != 4 {
		t.Fatalf("fragment count = %d, want 4: %v", len(fragments), fragments)
	}

	// bob has the highest similarity, so his shared count leads
	if got := fragments[FragmentSharedBooks]; !strings.Contains(got, "3") || !strings.Contains(got, "bob") {
		t.Errorf("shared books fragment = %q, want bob's count", got)
	}
	if got := fragments[FragmentGenres]; !strings.Contains(got, "fantasy") {
		t.Errorf("genre fragment = %q, want top genre named", got)
	}
	if got := fragments[FragmentPeers]; !strings.Contains(got, "3 similar readers") {
		t.Errorf("peer fragment = %q", got)
	}
	if got := fragments[FragmentRating]; !strings.Contains(got, "4.5") {
		t.Errorf("rating fragment = %q", got)
	}
}

func TestExplainFragmentThresholds(t *testing.T) {
	cfg := DefaultConfig()
	profile := NewProfileBuilder(cfg).Build([]Record{
		{Book: models.Book{ID: 1, Title: "Anchor One Title", Genres: []string{"fantasy"}}, Rating: 5},
	})

	tests := []struct {
		name   string
		cand   *Candidate
		absent string
	}{
		{
			"shared count of one suppressed",
			&Candidate{
				Book:    models.Book{ID: 50, Genres: []string{"fantasy"}},
				Sources: SourceList{SimilarUser{Username: "alice", Similarity: 0.5, SharedCount: 1}},
			},
			FragmentSharedBooks,
		},
		{
			"few recommenders suppressed",
			&Candidate{
				Book:             models.Book{ID: 50, Genres: []string{"fantasy"}},
				RecommenderCount: 2,
			},
			FragmentPeers,
		},
		{
			"modest rating suppressed",
			&Candidate{
				Book: models.Book{ID: 50, Genres: []string{"fantasy"}, AverageRating: 4.0},
			},
			FragmentRating,
		},
		{
			"weak genre alignment suppressed",
			&Candidate{
				Book: models.Book{ID: 50, Genres: []string{"unknown genre"}},
			},
			FragmentGenres,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragments := Explain(tt.cand, profile)
			if _, ok := fragments[tt.absent]; ok {
				t.Errorf("fragment %q should be absent: %v", tt.absent, fragments)
			}
		})
	}
}
