// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bibliograph/internal/cache"
	"github.com/tomtom215/bibliograph/internal/models"
)

// testCollector wires a collector over the fake store with a fresh memory
// cache.
func testCollector(t *testing.T, store *fakeStore, cfg *Config) *Collector {
	t.Helper()
	mem := cache.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })
	failOpen := cache.NewFailOpen(mem, zerolog.Nop())
	return NewCollector(store, store, store, failOpen, NewProfileBuilder(cfg), cfg, zerolog.Nop())
}

// peerWorld builds a store with requester user 1 and two similar public
// peers. Books 1-3 are the requester's history (3 is disliked); books 10-11
// are peer favorites the requester has not read.
func peerWorld() (*fakeStore, []Record) {
	store := newFakeStore()

	b1 := store.addBook(models.Book{ID: 1, Title: "The Fifth Season", AuthorName: "N. K. Jemisin", Genres: []string{"fantasy"}, AverageRating: 4.3, PublishYear: 2015})
	b2 := store.addBook(models.Book{ID: 2, Title: "The Obelisk Gate", AuthorName: "N. K. Jemisin", Genres: []string{"fantasy"}, AverageRating: 4.2, PublishYear: 2016})
	b3 := store.addBook(models.Book{ID: 3, Title: "Tepid Sequel", AuthorName: "Someone Prolific", Genres: []string{"fantasy"}, AverageRating: 3.9, PublishYear: 2010})
	b10 := store.addBook(models.Book{ID: 10, Title: "The Goblin Emperor", AuthorName: "Katherine Addison", Genres: []string{"fantasy"}, AverageRating: 4.4, PublishYear: 2014})
	b11 := store.addBook(models.Book{ID: 11, Title: "Piranesi", AuthorName: "Susanna Clarke", Genres: []string{"fantasy"}, AverageRating: 4.5, PublishYear: 2020})

	requester := []Record{
		{Book: b1, Rating: 5, IsTop: true},
		{Book: b2, Rating: 4},
		{Book: b3, Rating: 2},
	}
	store.readers[1] = requester

	store.addReader(2, "alice", []Record{
		{Book: b1, Rating: 5},
		{Book: b2, Rating: 4},
		{Book: b10, Rating: 5, IsTop: true},
		{Book: b11, Rating: 4},
	})
	store.addReader(3, "bob", []Record{
		{Book: b1, Rating: 4},
		{Book: b3, Rating: 5},
		{Book: b10, Rating: 4},
	})

	return store, requester
}

func TestCollectorPeerTier(t *testing.T) {
	cfg := DefaultConfig()
	store, requester := peerWorld()
	collector := testCollector(t, store, cfg)
	profile := NewProfileBuilder(cfg).Build(requester)

	cands, err := collector.Collect(context.Background(), profile, 1, "peers:user:1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for _, id := range []int64{1, 2, 3} {
		if _, ok := cands[id]; ok {
			t.Errorf("book %d is read or disliked and must not be a candidate", id)
		}
	}

	book10, ok := cands[10]
	if !ok {
		t.Fatal("expected peer favorite (book 10) as candidate")
	}
	if book10.RecommenderCount != 2 {
		t.Errorf("book 10 RecommenderCount = %d, want 2 (both peers)", book10.RecommenderCount)
	}
	if len(book10.Sources) != 2 {
		t.Fatalf("book 10 sources = %d, want 2", len(book10.Sources))
	}
	for _, src := range book10.Sources {
		peer, ok := src.(SimilarUser)
		if !ok {
			t.Fatalf("source type = %T, want SimilarUser", src)
		}
		if peer.MatchLabel == "" {
			t.Error("peer source missing match label")
		}
		if peer.Similarity < cfg.MinSimilarity {
			t.Errorf("peer similarity %v below floor", peer.Similarity)
		}
	}
	if book10.MaxSimilarity <= 0 {
		t.Error("book 10 MaxSimilarity not recorded")
	}

	if _, ok := cands[11]; !ok {
		t.Error("expected alice's liked book 11 as candidate")
	}
}

func TestCollectorTopFlagBoostsWeight(t *testing.T) {
	cfg := DefaultConfig()
	store, requester := peerWorld()
	collector := testCollector(t, store, cfg)
	profile := NewProfileBuilder(cfg).Build(requester)

	cands, err := collector.Collect(context.Background(), profile, 1, "")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	// Alice flagged book 10 as a top book; her contribution carries the
	// 1.5x boost on top of her similarity.
	var aliceSim, aliceWeightShare float64
	for _, src := range cands[10].Sources {
		if peer := src.(SimilarUser); peer.Username == "alice" {
			aliceSim = peer.Similarity
			if !peer.IsTop {
				t.Fatal("alice's endorsement should carry the top flag")
			}
		}
	}
	aliceWeightShare = aliceSim * 1.5
	if cands[10].TotalWeight <= aliceWeightShare-floatTolerance {
		t.Errorf("total weight %v should include boosted alice share %v plus bob's",
			cands[10].TotalWeight, aliceWeightShare)
	}
}

func TestCollectorShortlistCacheSkipsBulkPull(t *testing.T) {
	cfg := DefaultConfig()
	store, requester := peerWorld()
	collector := testCollector(t, store, cfg)
	profile := NewProfileBuilder(cfg).Build(requester)

	if _, err := collector.Collect(context.Background(), profile, 1, "peers:user:1"); err != nil {
		t.Fatalf("first Collect: %v", err)
	}
	if got := store.calls["GetPublicReaderRecords"]; got != 1 {
		t.Fatalf("cold path GetPublicReaderRecords calls = %d, want 1", got)
	}
	if got := store.calls["GetLikedRecords"]; got != 0 {
		t.Fatalf("cold path GetLikedRecords calls = %d, want 0 (derived in memory)", got)
	}

	if _, err := collector.Collect(context.Background(), profile, 1, "peers:user:1"); err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if got := store.calls["GetPublicReaderRecords"]; got != 1 {
		t.Errorf("warm path re-pulled all readers: calls = %d, want 1", got)
	}
	if got := store.calls["GetLikedRecords"]; got != 1 {
		t.Errorf("warm path GetLikedRecords calls = %d, want 1 bulk call", got)
	}
}

func TestCollectorAnonymizedTier(t *testing.T) {
	cfg := DefaultConfig()
	store, requester := peerWorld()
	store.public = nil // isolate tier 2
	store.addBook(models.Book{ID: 20, Title: "The Broken Kingdoms", AuthorName: "N. K. Jemisin", Genres: []string{"fantasy"}, AverageRating: 4.1, PublishYear: 2010})
	store.profiles = []models.AnonymizedProfile{
		{
			ID:                 1,
			TotalBooks:         12,
			GenreDistribution:  map[string]float64{"fantasy": 20},
			AuthorDistribution: map[string]float64{"N. K. Jemisin": 15},
			TopBookIDs:         []int64{20, 1}, // 1 is read and must be skipped
			RatingDistribution: map[int]int{4: 5, 5: 4},
		},
		{
			ID:                 2,
			TotalBooks:         8,
			GenreDistribution:  map[string]float64{"true crime": 9},
			AuthorDistribution: map[string]float64{"Unrelated Author": 9},
			TopBookIDs:         []int64{21},
			RatingDistribution: map[int]int{2: 6},
		},
	}

	collector := testCollector(t, store, cfg)
	profile := NewProfileBuilder(cfg).Build(requester)

	cands, err := collector.Collect(context.Background(), profile, 1, "")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	cand, ok := cands[20]
	if !ok {
		t.Fatal("expected anonymized-profile top book 20 as candidate")
	}
	src, ok := cand.Sources[0].(AnonymizedProfile)
	if !ok {
		t.Fatalf("source type = %T, want AnonymizedProfile", cand.Sources[0])
	}
	if src.Similarity < cfg.MinSimilarity {
		t.Errorf("similarity %v below sourcing floor", src.Similarity)
	}
	if want := src.Similarity * 0.8; !approx(cand.TotalWeight, want) {
		t.Errorf("weight = %v, want similarity*0.8 = %v", cand.TotalWeight, want)
	}
	if cand.RecommenderCount != 1 {
		t.Errorf("RecommenderCount = %d, want 1", cand.RecommenderCount)
	}

	if _, ok := cands[1]; ok {
		t.Error("read book surfaced through anonymized profile")
	}
	if _, ok := cands[21]; ok {
		t.Error("dissimilar profile's book should not be sourced")
	}
}

// Scenario: a brand-new profile with no history still gets candidates, all of
// them rule-based.
func TestCollectorZeroHistoryFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	store, _ := peerWorld()
	store.public = nil
	collector := testCollector(t, store, cfg)
	profile := NewProfileBuilder(cfg).Build(nil)

	cands, err := collector.Collect(context.Background(), profile, 0, "")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("zero-history profile sourced %d tier-1/2 candidates, want 0", len(cands))
	}

	if err := collector.Fallback(context.Background(), profile, cands, 5); err != nil {
		t.Fatalf("Fallback: %v", err)
	}
	if len(cands) == 0 {
		t.Fatal("zero-history profile must still get candidates")
	}
	for id, cand := range cands {
		for _, src := range cand.Sources {
			switch src.(type) {
			case FallbackAuthor, FallbackGenre:
			default:
				t.Errorf("book %d has non-fallback source %T", id, src)
			}
		}
	}
}

// Candidates already in the map must not count toward the shortfall: the
// caller may be holding sourced candidates that ranking rejected, and the
// fallback has to replace them, not be satisfied by them.
func TestCollectorFallbackCountsOwnAdditions(t *testing.T) {
	cfg := DefaultConfig()
	store, _ := peerWorld()
	collector := testCollector(t, store, cfg)
	profile := NewProfileBuilder(cfg).Build(nil)

	cands := map[int64]*Candidate{
		900: {Book: models.Book{ID: 900, Title: "Panned Debut", AverageRating: 2.1}},
		901: {Book: models.Book{ID: 901, Title: "Panned Sequel", AverageRating: 2.4}},
	}

	if err := collector.Fallback(context.Background(), profile, cands, 2); err != nil {
		t.Fatalf("Fallback: %v", err)
	}
	if got := store.calls["GetTopRatedBooks"]; got != 1 {
		t.Fatalf("popularity rung calls = %d, want 1", got)
	}

	fresh := 0
	for id := range cands {
		if id != 900 && id != 901 {
			fresh++
		}
	}
	if fresh < 2 {
		t.Errorf("fallback added %d new candidates, want at least 2", fresh)
	}
}
