// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bibliograph/internal/cache"
	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/models"
)

// Tier weights and floors for candidate sourcing.
const (
	topFlaggedBoost    = 1.5
	anonProfileWeight  = 0.8
	fallbackAuthorWt   = 0.4
	fallbackGenreWt    = 0.3
	fallbackMinRating  = 4.0
	popularityReason   = "Highly rated by readers"
	anonSampleCacheKey = "anonpool:sample"
)

// peerEntry is the cached shortlist form of one similar peer.
type peerEntry struct {
	UserID      int64   `json:"user_id"`
	Username    string  `json:"username"`
	Similarity  float64 `json:"similarity"`
	SharedCount int     `json:"shared_count"`
}

// Collector gathers recommendation candidates from three tiers: similar
// registered peers, anonymized aggregate profiles, and rule-based fallbacks.
// Each tier issues at most one bulk store read; per-peer queries are never
// made.
type Collector struct {
	interactions InteractionStore
	catalog      CatalogStore
	profiles     ProfileStore
	cache        *cache.FailOpen
	builder      *ProfileBuilder
	cfg          *Config
	logger       zerolog.Logger
}

// NewCollector creates a candidate collector.
func NewCollector(
	interactions InteractionStore,
	catalog CatalogStore,
	profiles ProfileStore,
	failOpen *cache.FailOpen,
	builder *ProfileBuilder,
	cfg *Config,
	logger zerolog.Logger,
) *Collector {
	return &Collector{
		interactions: interactions,
		catalog:      catalog,
		profiles:     profiles,
		cache:        failOpen,
		builder:      builder,
		cfg:          cfg,
		logger:       logger.With().Str("component", "collector").Logger(),
	}
}

// Collect gathers candidates for the requester profile from the first two
// tiers. excludeUserID is the requester's own identity for registered
// readers, zero for anonymous sessions. shortlistKey names the peer-shortlist
// cache entry; empty disables shortlist caching (anonymous sessions, whose
// shortlist would be keyed per token and never re-hit).
//
// The fallback tier is separate: the engine invokes Fallback only after
// ranking, once it knows how many sourced candidates survived the quality
// gate. Measuring the shortfall before the gate would skip the fallback on
// candidate sets the gate then rejects wholesale.
func (c *Collector) Collect(ctx context.Context, profile *TasteProfile, excludeUserID int64, shortlistKey string) (map[int64]*Candidate, error) {
	cands := make(map[int64]*Candidate)

	if err := c.collectPeers(ctx, profile, excludeUserID, shortlistKey, cands); err != nil {
		return nil, fmt.Errorf("collect peer candidates: %w", err)
	}
	if err := c.collectAnonymized(ctx, profile, cands); err != nil {
		return nil, fmt.Errorf("collect anonymized candidates: %w", err)
	}

	return cands, nil
}

// collectPeers runs tier 1: compare the requester against every visible
// public reader, keep the most similar, and surface the books those peers
// loved. The shortlist survives in the cache so repeat requests within its
// TTL skip the all-readers pull and fetch only the liked books of known
// peers.
func (c *Collector) collectPeers(ctx context.Context, profile *TasteProfile, excludeUserID int64, shortlistKey string, cands map[int64]*Candidate) error {
	var entries []peerEntry
	liked := make(map[int64][]Record)

	cached := false
	if shortlistKey != "" {
		cached = c.cache.GetJSON(ctx, shortlistKey, &entries)
	}

	if cached {
		metrics.CacheHits.WithLabelValues("peer_shortlist").Inc()

		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.UserID)
		}
		if len(ids) > 0 {
			var err error
			liked, err = c.interactions.GetLikedRecords(ctx, ids)
			if err != nil {
				return err
			}
		}
	} else {
		if shortlistKey != "" {
			metrics.CacheMisses.WithLabelValues("peer_shortlist").Inc()
		}

		readers, err := c.interactions.GetPublicReaderRecords(ctx, excludeUserID)
		if err != nil {
			return err
		}
		metrics.PeerComparisons.Add(float64(len(readers)))

		type scored struct {
			entry   peerEntry
			records []Record
		}
		var kept []scored
		for _, reader := range readers {
			peerProfile := c.builder.Build(reader.Records)
			sim := CompareProfiles(profile, peerProfile, c.cfg.MinSharedRatings)
			if sim.Score < c.cfg.MinSimilarity {
				continue
			}
			kept = append(kept, scored{
				entry: peerEntry{
					UserID:      reader.UserID,
					Username:    reader.Username,
					Similarity:  sim.Score,
					SharedCount: sim.SharedRatings,
				},
				records: reader.Records,
			})
		}

		sort.Slice(kept, func(i, j int) bool {
			return kept[i].entry.Similarity > kept[j].entry.Similarity
		})
		if len(kept) > c.cfg.MaxPeers {
			kept = kept[:c.cfg.MaxPeers]
		}

		entries = make([]peerEntry, 0, len(kept))
		for _, s := range kept {
			entries = append(entries, s.entry)
			// Liked books come from the records already in hand, no
			// second pull needed on the cold path.
			for _, rec := range s.records {
				if rec.Rating >= 4 || rec.IsTop {
					liked[s.entry.UserID] = append(liked[s.entry.UserID], rec)
				}
			}
		}

		if shortlistKey != "" && len(entries) > 0 {
			c.cache.SetJSON(ctx, shortlistKey, entries, c.cfg.PeerTTL)
		}
	}

	added := 0
	for _, e := range entries {
		label := MatchLabel(e.Similarity)
		for _, rec := range liked[e.UserID] {
			if excluded(profile, rec.Book.ID) {
				continue
			}
			weight := e.Similarity
			if rec.IsTop {
				weight *= topFlaggedBoost
			}
			addCandidate(cands, rec.Book, SimilarUser{
				Username:    e.Username,
				Similarity:  e.Similarity,
				IsTop:       rec.IsTop,
				Rating:      rec.Rating,
				MatchLabel:  label,
				SharedCount: e.SharedCount,
			}, weight, e.Similarity, true)
			added++
		}
	}
	metrics.CandidatesCollected.WithLabelValues("peer").Add(float64(added))

	return nil
}

// collectAnonymized runs tier 2: score the requester against a sample of
// anonymized aggregate profiles and surface the top books of the close ones.
// The sample is cached; book metadata resolves in one bulk catalog read.
func (c *Collector) collectAnonymized(ctx context.Context, profile *TasteProfile, cands map[int64]*Candidate) error {
	var sample []models.AnonymizedProfile
	if c.cache.GetJSON(ctx, anonSampleCacheKey, &sample) {
		metrics.CacheHits.WithLabelValues("anon_sample").Inc()
	} else {
		metrics.CacheMisses.WithLabelValues("anon_sample").Inc()
		var err error
		sample, err = c.profiles.SampleProfiles(ctx, c.cfg.MaxAnonProfiles)
		if err != nil {
			return err
		}
		if len(sample) > 0 {
			c.cache.SetJSON(ctx, anonSampleCacheKey, sample, c.cfg.AnonSampleTTL)
		}
	}

	type pick struct {
		bookID     int64
		similarity float64
	}
	var picks []pick
	for i := range sample {
		agg := &sample[i]
		sim := ProfileSimilarity(profile, agg)
		if sim < c.cfg.MinSimilarity {
			continue
		}
		taken := 0
		for _, id := range agg.TopBookIDs {
			if taken >= c.cfg.MaxBooksPerAnonProfile {
				break
			}
			if excluded(profile, id) {
				continue
			}
			picks = append(picks, pick{bookID: id, similarity: sim})
			taken++
		}
	}
	if len(picks) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(picks))
	seen := make(map[int64]struct{}, len(picks))
	for _, p := range picks {
		if _, ok := seen[p.bookID]; ok {
			continue
		}
		seen[p.bookID] = struct{}{}
		ids = append(ids, p.bookID)
	}
	books, err := c.catalog.GetBooksByIDs(ctx, ids)
	if err != nil {
		return err
	}

	added := 0
	for _, p := range picks {
		book, ok := books[p.bookID]
		if !ok {
			continue
		}
		addCandidate(cands, book, AnonymizedProfile{Similarity: p.similarity},
			p.similarity*anonProfileWeight, p.similarity, true)
		added++
	}
	metrics.CandidatesCollected.WithLabelValues("anonymized").Add(float64(added))

	return nil
}

// Fallback runs tier 3: rule-based suggestions from the requester's top
// non-saturated authors and top genres, closed out by a popularity rung sized
// to any remaining shortfall. need is how many more rankable candidates the
// caller wants; the rungs count their own additions against it, so candidates
// already in cands (including gate-rejected ones) never mask the shortfall.
func (c *Collector) Fallback(ctx context.Context, profile *TasteProfile, cands map[int64]*Candidate, need int) error {
	added := 0

	authors := topAuthors(profile, c.cfg.FallbackAuthors, c.cfg.AuthorSaturation)
	if len(authors) > 0 {
		books, err := c.catalog.GetBooksByAuthors(ctx, authors, fallbackMinRating, c.cfg.FallbackPerSource)
		if err != nil {
			return err
		}
		for _, book := range books {
			if excluded(profile, book.ID) {
				continue
			}
			reason := fmt.Sprintf("More from %s", book.AuthorName)
			addCandidate(cands, book, FallbackAuthor{Reason: reason}, fallbackAuthorWt, 0, false)
			added++
		}
	}

	genres := topGenres(profile, c.cfg.FallbackGenres)
	if len(genres) > 0 {
		books, err := c.catalog.GetBooksByGenres(ctx, genres, fallbackMinRating, c.cfg.FallbackPerSource)
		if err != nil {
			return err
		}
		for _, book := range books {
			if excluded(profile, book.ID) {
				continue
			}
			reason := fallbackGenreReason(book, genres)
			addCandidate(cands, book, FallbackGenre{Reason: reason}, fallbackGenreWt, 0, false)
			added++
		}
	}

	if added < need {
		// Popularity rung. Over-fetch so the requester's read set cannot
		// empty the result.
		want := need - added + len(profile.ReadBooks)
		if ceiling := c.cfg.FallbackPerSource * 4; want > ceiling {
			want = ceiling
		}
		books, err := c.catalog.GetTopRatedBooks(ctx, want)
		if err != nil {
			return err
		}
		for _, book := range books {
			if added >= need {
				break
			}
			if excluded(profile, book.ID) {
				continue
			}
			if _, ok := cands[book.ID]; ok {
				continue
			}
			addCandidate(cands, book, FallbackGenre{Reason: popularityReason}, fallbackGenreWt, 0, false)
			added++
		}
	}

	metrics.CandidatesCollected.WithLabelValues("fallback").Add(float64(added))
	return nil
}

// addCandidate merges one sourced book into the candidate map. Recommender
// sources (peers, anonymized profiles) bump the recommender count; rule-based
// sources contribute weight only.
func addCandidate(cands map[int64]*Candidate, book models.Book, src Source, weight, similarity float64, recommender bool) {
	cand, ok := cands[book.ID]
	if !ok {
		cand = &Candidate{Book: book}
		cands[book.ID] = cand
	}
	cand.Sources = append(cand.Sources, src)
	cand.TotalWeight += weight
	if similarity > cand.MaxSimilarity {
		cand.MaxSimilarity = similarity
	}
	if recommender {
		cand.RecommenderCount++
	}
}

// excluded reports whether the requester has read or disliked the book.
func excluded(profile *TasteProfile, bookID int64) bool {
	if _, ok := profile.ReadBooks[bookID]; ok {
		return true
	}
	_, ok := profile.Disliked[bookID]
	return ok
}

// topAuthors returns the requester's highest-weighted authors that are not
// saturated, best first.
func topAuthors(profile *TasteProfile, limit, saturation int) []string {
	type weighted struct {
		name   string
		weight float64
	}
	var all []weighted
	for name, w := range profile.AuthorWeights {
		if profile.AuthorReads[name] >= saturation {
			continue
		}
		all = append(all, weighted{name: name, weight: w})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].weight != all[j].weight {
			return all[i].weight > all[j].weight
		}
		return all[i].name < all[j].name
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, 0, len(all))
	for _, a := range all {
		out = append(out, a.name)
	}
	return out
}

// topGenres returns the requester's highest-weighted genres, best first.
func topGenres(profile *TasteProfile, limit int) []string {
	type weighted struct {
		name   string
		weight float64
	}
	all := make([]weighted, 0, len(profile.GenreWeights))
	for name, w := range profile.GenreWeights {
		all = append(all, weighted{name: name, weight: w})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].weight != all[j].weight {
			return all[i].weight > all[j].weight
		}
		return all[i].name < all[j].name
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, 0, len(all))
	for _, g := range all {
		out = append(out, g.name)
	}
	return out
}

// fallbackGenreReason names the matched genre for a genre-sourced suggestion.
func fallbackGenreReason(book models.Book, requested []string) string {
	for _, g := range book.Genres {
		for _, r := range requested {
			if g == r {
				return fmt.Sprintf("Popular in %s", g)
			}
		}
	}
	if len(book.Genres) > 0 {
		return fmt.Sprintf("Popular in %s", book.Genres[0])
	}
	return popularityReason
}
