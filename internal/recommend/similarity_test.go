// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"math"
	"testing"

	"github.com/tomtom215/bibliograph/internal/models"
)

const floatTolerance = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// richProfile builds a profile exercising every similarity component,
// including rating variance so the correlation component activates.
func richProfile() *TasteProfile {
	builder := NewProfileBuilder(DefaultConfig())
	return builder.Build([]Record{
		{Book: models.Book{ID: 1, Title: "Hyperion", AuthorName: "Dan Simmons", Genres: []string{"sci-fi"}, PublishYear: 1989}, Rating: 5, IsTop: true},
		{Book: models.Book{ID: 2, Title: "Ilium", AuthorName: "Dan Simmons", Genres: []string{"sci-fi"}, PublishYear: 2003}, Rating: 4},
		{Book: models.Book{ID: 3, Title: "Piranesi", AuthorName: "Susanna Clarke", Genres: []string{"fantasy"}, PublishYear: 2020}, Rating: 3},
		{Book: models.Book{ID: 4, Title: "The Terror", AuthorName: "Dan Simmons", Genres: []string{"horror"}, PublishYear: 2007}, Rating: 4},
	})
}

func TestCompareProfilesSelfIsOne(t *testing.T) {
	p := richProfile()
	sim := CompareProfiles(p, p, 3)

	if !approx(sim.Score, 1.0) {
		t.Errorf("similarity(P,P) = %v, want 1.0", sim.Score)
	}
	for name, value := range sim.Components {
		if !approx(value, 1.0) {
			t.Errorf("component %s = %v, want 1.0", name, value)
		}
	}
	if sim.SharedRatings != 4 {
		t.Errorf("SharedRatings = %d, want 4", sim.SharedRatings)
	}
}

func TestCompareProfilesSymmetry(t *testing.T) {
	builder := NewProfileBuilder(DefaultConfig())
	a := richProfile()
	b := builder.Build([]Record{
		{Book: models.Book{ID: 1, Title: "Hyperion", AuthorName: "Dan Simmons", Genres: []string{"sci-fi"}, PublishYear: 1989}, Rating: 4},
		{Book: models.Book{ID: 3, Title: "Piranesi", AuthorName: "Susanna Clarke", Genres: []string{"fantasy"}, PublishYear: 2020}, Rating: 5, IsTop: true},
		{Book: models.Book{ID: 9, Title: "Annihilation", AuthorName: "Jeff VanderMeer", Genres: []string{"weird"}, PublishYear: 2014}, Rating: 2},
	})

	ab := CompareProfiles(a, b, 3)
	ba := CompareProfiles(b, a, 3)
	if !approx(ab.Score, ba.Score) {
		t.Errorf("similarity not symmetric: %v vs %v", ab.Score, ba.Score)
	}
	if ab.SharedRatings != ba.SharedRatings {
		t.Errorf("shared counts differ: %d vs %d", ab.SharedRatings, ba.SharedRatings)
	}
}

// Two profiles with identical genre and author preferences but too few shared
// ratings: the correlation component is excluded and the remaining overlap
// components still carry the score above 0.5.
func TestCompareProfilesSparseRatings(t *testing.T) {
	builder := NewProfileBuilder(DefaultConfig())
	mk := func(extraID int64) *TasteProfile {
		return builder.Build([]Record{
			{Book: models.Book{ID: 1, Title: "The Fifth Season", AuthorName: "X", Genres: []string{"fantasy"}, PublishYear: 2015}, Rating: 5, IsTop: true},
			{Book: models.Book{ID: 2, Title: "The Obelisk Gate", AuthorName: "X", Genres: []string{"fantasy"}, PublishYear: 2016}, Rating: 5},
			{Book: models.Book{ID: extraID, Title: "Filler", AuthorName: "X", Genres: []string{"fantasy"}, PublishYear: 2017}},
		})
	}
	a, b := mk(3), mk(4)

	sim := CompareProfiles(a, b, 3)

	if _, ok := sim.Components[ComponentCorrelation]; ok {
		t.Fatal("correlation should be excluded below the shared-rating floor")
	}
	if _, ok := sim.Weights[ComponentCorrelation]; ok {
		t.Fatal("excluded component must carry no weight")
	}
	if sim.Score <= 0.5 {
		t.Errorf("score = %v, want > 0.5 from overlap components", sim.Score)
	}
	// with correlation inactive, jaccard keeps its full base weight
	if got := sim.Weights[ComponentJaccard]; !approx(got, 0.25) {
		t.Errorf("jaccard weight = %v, want 0.25", got)
	}
}

// Five shared books with ratings agreeing exactly: the correlation component
// is 1.0 and its pre-normalization weight is 0.35*min(5/20,1).
func TestCompareProfilesCorrelationWeightScaling(t *testing.T) {
	builder := NewProfileBuilder(DefaultConfig())
	records := func() []Record {
		out := make([]Record, 0, 5)
		titles := []string{"One Long Title", "Second Long Title", "Third Long Title", "Fourth Long Title", "Fifth Long Title"}
		for i, title := range titles {
			out = append(out, Record{
				Book:   models.Book{ID: int64(i + 1), Title: title, AuthorName: "Shared Author", Genres: []string{"litfic"}, PublishYear: 1990 + i},
				Rating: i%5 + 1,
			})
		}
		return out
	}
	a, b := builder.Build(records()), builder.Build(records())

	sim := CompareProfiles(a, b, 3)

	if got := sim.Components[ComponentCorrelation]; !approx(got, 1.0) {
		t.Errorf("correlation component = %v, want 1.0", got)
	}
	if got := sim.Weights[ComponentCorrelation]; !approx(got, 0.0875) {
		t.Errorf("correlation weight = %v, want 0.0875", got)
	}
	if got := sim.Weights[ComponentJaccard]; !approx(got, 0.15) {
		t.Errorf("jaccard weight = %v, want 0.15 with correlation active", got)
	}
	if sim.SharedRatings != 5 {
		t.Errorf("SharedRatings = %d, want 5", sim.SharedRatings)
	}
}

// A flat rater has zero rating variance; the correlation is undefined and
// must be excluded, not scored, so self-similarity stays exactly 1.
func TestCompareProfilesZeroVariance(t *testing.T) {
	builder := NewProfileBuilder(DefaultConfig())
	p := builder.Build([]Record{
		{Book: models.Book{ID: 1, Title: "Alpha Title", AuthorName: "A", Genres: []string{"g"}, PublishYear: 2000}, Rating: 5},
		{Book: models.Book{ID: 2, Title: "Beta Title", AuthorName: "A", Genres: []string{"g"}, PublishYear: 2001}, Rating: 5},
		{Book: models.Book{ID: 3, Title: "Gamma Title", AuthorName: "A", Genres: []string{"g"}, PublishYear: 2002}, Rating: 5},
	})

	sim := CompareProfiles(p, p, 3)
	if _, ok := sim.Components[ComponentCorrelation]; ok {
		t.Error("zero-variance correlation should be excluded")
	}
	if !approx(sim.Score, 1.0) {
		t.Errorf("similarity(P,P) = %v, want 1.0", sim.Score)
	}
}

func TestJaccard(t *testing.T) {
	set := func(ids ...int64) map[int64]struct{} {
		m := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			m[id] = struct{}{}
		}
		return m
	}

	tests := []struct {
		name string
		a, b map[int64]struct{}
		want float64
	}{
		{"identical", set(1, 2, 3), set(1, 2, 3), 1},
		{"disjoint", set(1, 2), set(3, 4), 0},
		{"half", set(1, 2, 3), set(2, 3, 4), 0.5},
		{"both empty", set(), set(), 0},
		{"one empty", set(1), set(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jaccard(tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("jaccard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopOverlap(t *testing.T) {
	set := func(ids ...int64) map[int64]struct{} {
		m := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			m[id] = struct{}{}
		}
		return m
	}

	tests := []struct {
		name string
		a, b map[int64]struct{}
		want float64
	}{
		{"identical", set(1, 2), set(1, 2), 1},
		{"asymmetric sizes", set(1, 2, 3, 4), set(1), 0.25},
		{"both empty", set(), set(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topOverlap(tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("topOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineWeights(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]float64
		want float64
	}{
		{"identical", map[string]float64{"x": 2, "y": 3}, map[string]float64{"x": 2, "y": 3}, 1},
		{"scaled", map[string]float64{"x": 1}, map[string]float64{"x": 10}, 1},
		{"orthogonal", map[string]float64{"x": 1}, map[string]float64{"y": 1}, 0},
		{"empty side", map[string]float64{}, map[string]float64{"y": 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineWeights(tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("CosineWeights = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEraSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b map[int]float64
		want float64
	}{
		{"same decade different years", map[int]float64{1991: 3}, map[int]float64{1999: 7}, 1},
		{"disjoint decades", map[int]float64{1960: 1}, map[int]float64{2020: 1}, 0},
		{"half mass shared", map[int]float64{1990: 1, 2000: 1}, map[int]float64{1990: 2}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eraSimilarity(tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("eraSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProfileSimilarityAgainstAggregate(t *testing.T) {
	p := richProfile()

	identical := &models.AnonymizedProfile{
		TotalBooks:         4,
		GenreDistribution:  p.GenreWeights,
		AuthorDistribution: map[string]float64{"Dan Simmons": 13, "Susanna Clarke": 3},
		TopBookIDs:         []int64{1},
		RatingDistribution: map[int]int{3: 1, 4: 2, 5: 1},
	}
	disjoint := &models.AnonymizedProfile{
		TotalBooks:         2,
		GenreDistribution:  map[string]float64{"romance": 5},
		AuthorDistribution: map[string]float64{"Somebody Else": 5},
		TopBookIDs:         []int64{99},
		RatingDistribution: map[int]int{1: 2},
	}

	high := ProfileSimilarity(p, identical)
	low := ProfileSimilarity(p, disjoint)

	if !approx(high, 1.0) {
		t.Errorf("similarity to identical aggregate = %v, want 1.0", high)
	}
	if low >= 0.15 {
		t.Errorf("similarity to disjoint aggregate = %v, want below sourcing floor", low)
	}
}

func TestMatchLabel(t *testing.T) {
	tests := []struct {
		similarity float64
		want       string
	}{
		{0.85, "Literary twin"},
		{0.80, "Literary twin"},
		{0.65, "Kindred spirit"},
		{0.45, "Similar tastes"},
		{0.25, "Some overlap"},
		{0.10, "Opposite tastes"},
	}
	for _, tt := range tests {
		if got := MatchLabel(tt.similarity); got != tt.want {
			t.Errorf("MatchLabel(%v) = %q, want %q", tt.similarity, got, tt.want)
		}
	}
}
