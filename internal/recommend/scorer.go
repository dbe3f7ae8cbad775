// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"math"
	"sort"
	"time"
)

// Scoring constants. The rank score is unbounded above; confidence is a
// separate display value clamped to [0, 1].
const (
	popularityFactor     = 0.1
	qualityFactor        = 0.15
	genreAlignmentFactor = 0.3
	recencyFactor        = 0.1

	// genre alignment defaults when one side has no genre data
	alignmentNoPreferences = 0.5
	alignmentNoBookGenres  = 0.3

	// series-saturation bypass: an exceptional book escapes the series
	// gate unless its author is also heavily read
	saturationBypassRating  = 4.3
	saturationBypassAuthors = 4
)

// Scorer converts accumulated candidate evidence into rank scores and applies
// the pre-scoring quality gate.
type Scorer struct {
	cfg *Config
	now func() time.Time
}

// NewScorer creates a scorer. The clock is injectable for recency tests.
func NewScorer(cfg *Config) *Scorer {
	return &Scorer{cfg: cfg, now: time.Now}
}

// Rank gates, scores, and sorts the candidate map into a descending ranked
// list. Ties break on book ID so identical inputs always produce identical
// output, which the result cache relies on.
func (s *Scorer) Rank(cands map[int64]*Candidate, profile *TasteProfile) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(cands))
	for _, cand := range cands {
		if !s.passesGate(cand, profile) {
			continue
		}
		ranked = append(ranked, RankedCandidate{
			Candidate:  *cand,
			Score:      s.score(cand, profile),
			Confidence: confidence(cand),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Book.ID < ranked[j].Book.ID
	})
	return ranked
}

// passesGate applies the pre-scoring quality gate: drop books already read or
// disliked, books from a saturated series (with a narrow bypass for
// exceptional books by lightly-read authors), and books below the community
// quality threshold.
func (s *Scorer) passesGate(cand *Candidate, profile *TasteProfile) bool {
	if excluded(profile, cand.Book.ID) {
		return false
	}

	if key := SeriesKey(cand.Book.Title); key != "" {
		if _, saturated := profile.SaturatedSeries[key]; saturated {
			author := NormalizeAuthor(cand.Book.AuthorName)
			bypass := cand.Book.AverageRating >= saturationBypassRating &&
				profile.AuthorReads[author] < saturationBypassAuthors
			if !bypass {
				return false
			}
		}
	}

	return cand.Book.AverageRating >= s.cfg.QualityThreshold
}

// score computes the composite rank score:
//
//	sqrt(total_weight) + ln(recommenders+1)*0.1
//	  + max(0, avg_rating-threshold)*0.15
//	  + 0.3*genre_alignment + 0.1*recency
//
// The square-root base gives diminishing returns against many duplicate
// endorsements of the same book.
func (s *Scorer) score(cand *Candidate, profile *TasteProfile) float64 {
	base := math.Sqrt(cand.TotalWeight)
	popularity := math.Log(float64(cand.RecommenderCount)+1) * popularityFactor
	quality := math.Max(0, cand.Book.AverageRating-s.cfg.QualityThreshold) * qualityFactor
	alignment := genreAlignment(cand, profile)
	recency := recencyBonus(cand.Book.PublishYear, s.now().Year())

	return base + popularity + quality + genreAlignmentFactor*alignment + recencyFactor*recency
}

// genreAlignment measures how much of the requester's genre preference mass
// the book's genres cover, saturating at 1. Absent data on either side falls
// back to a fixed neutral value instead of zero, per the component-absent
// contract.
func genreAlignment(cand *Candidate, profile *TasteProfile) float64 {
	if len(profile.GenreWeights) == 0 {
		return alignmentNoPreferences
	}
	if len(cand.Book.Genres) == 0 {
		return alignmentNoBookGenres
	}

	var total float64
	for _, w := range profile.GenreWeights {
		total += w
	}
	if total == 0 {
		return alignmentNoPreferences
	}

	var matched float64
	for _, g := range cand.Book.Genres {
		matched += profile.GenreWeights[g] / total
	}
	return math.Min(2*matched, 1)
}

// recencyBonus steps down with publication age. Unpublished (zero-year) books
// get the full bonus, matching the newest bracket.
func recencyBonus(publishYear, currentYear int) float64 {
	if publishYear <= 0 {
		return 0.15
	}
	age := currentYear - publishYear
	switch {
	case age <= 3:
		return 0.15
	case age <= 10:
		return 0.10
	case age <= 20:
		return 0.05
	default:
		return 0
	}
}

// confidence derives the display confidence from the best source similarity
// and the endorsement count, clamped to 1. Decoupled from the rank score.
func confidence(cand *Candidate) float64 {
	c := cand.MaxSimilarity + math.Log(float64(cand.RecommenderCount)+1)*popularityFactor
	return math.Min(c, 1)
}
