// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"fmt"
	"sort"
	"strings"
)

// Explanation fragment keys. Each fragment is independent; composing them
// into display copy is the caller's concern.
const (
	FragmentSharedBooks = "shared_books"
	FragmentGenres      = "genres"
	FragmentPeers       = "peers"
	FragmentRating      = "rating"
)

// Fragment emission thresholds.
const (
	explainAlignmentFloor = 0.6
	explainPeerFloor      = 3
	explainRatingFloor    = 4.2
)

// Explain derives up to four independent justification fragments for one
// surfaced candidate. Fragments are omitted, never emitted empty, when their
// condition does not hold.
func Explain(cand *Candidate, profile *TasteProfile) map[string]string {
	fragments := make(map[string]string, 4)

	if best, ok := bestPeerSource(cand.Sources); ok && best.SharedCount > 1 {
		fragments[FragmentSharedBooks] = fmt.Sprintf(
			"You share %d rated books with %s", best.SharedCount, best.Username)
	}

	if matched, alignment := matchedGenres(cand, profile); alignment > explainAlignmentFloor && len(matched) > 0 {
		fragments[FragmentGenres] = fmt.Sprintf(
			"Matches your taste in %s", strings.Join(matched, " and "))
	}

	if cand.RecommenderCount >= explainPeerFloor {
		fragments[FragmentPeers] = fmt.Sprintf(
			"Loved by %d similar readers", cand.RecommenderCount)
	}

	if cand.Book.AverageRating >= explainRatingFloor {
		fragments[FragmentRating] = fmt.Sprintf(
			"Rated %.1f by the community", cand.Book.AverageRating)
	}

	return fragments
}

// bestPeerSource returns the highest-similarity SimilarUser source.
func bestPeerSource(sources SourceList) (SimilarUser, bool) {
	var best SimilarUser
	found := false
	for _, src := range sources {
		peer, ok := src.(SimilarUser)
		if !ok {
			continue
		}
		if !found || peer.Similarity > best.Similarity {
			best = peer
			found = true
		}
	}
	return best, found
}

// matchedGenres returns the top two of the book's genres by requester
// preference weight, plus the candidate's genre alignment.
func matchedGenres(cand *Candidate, profile *TasteProfile) ([]string, float64) {
	alignment := genreAlignment(cand, profile)

	type weighted struct {
		name   string
		weight float64
	}
	var matched []weighted
	for _, g := range cand.Book.Genres {
		if w := profile.GenreWeights[g]; w > 0 {
			matched = append(matched, weighted{name: g, weight: w})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].weight != matched[j].weight {
			return matched[i].weight > matched[j].weight
		}
		return matched[i].name < matched[j].name
	})
	if len(matched) > 2 {
		matched = matched[:2]
	}

	names := make([]string, 0, len(matched))
	for _, m := range matched {
		names = append(names, m.name)
	}
	return names, alignment
}
