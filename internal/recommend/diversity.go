// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

// DiversityFilter caps per-genre and per-author repetition in the final list
// with a greedy walk of the ranked candidates.
type DiversityFilter struct {
	cfg *Config
}

// NewDiversityFilter creates a diversity filter.
func NewDiversityFilter(cfg *Config) *DiversityFilter {
	return &DiversityFilter{cfg: cfg}
}

// Apply walks the score-descending list and accepts up to limit candidates.
// The first half of the list fills unconditionally; past that, a candidate
// that would push any of its genres or its author over the repetition caps is
// skipped, unless its score is close enough to the top score to deserve the
// slot anyway.
func (d *DiversityFilter) Apply(ranked []RankedCandidate, limit int) []RankedCandidate {
	if limit <= 0 || len(ranked) == 0 {
		return nil
	}

	genreCounts := make(map[string]int)
	authorCounts := make(map[string]int)
	unconditional := limit / 2
	topScore := ranked[0].Score

	out := make([]RankedCandidate, 0, limit)
	for _, cand := range ranked {
		if len(out) >= limit {
			break
		}

		if len(out) >= unconditional && !d.fits(cand, genreCounts, authorCounts) {
			if topScore <= 0 || cand.Score < d.cfg.DiversityBypass*topScore {
				continue
			}
		}

		for _, g := range cand.Book.Genres {
			genreCounts[g]++
		}
		authorCounts[NormalizeAuthor(cand.Book.AuthorName)]++
		out = append(out, cand)
	}
	return out
}

// fits reports whether accepting the candidate keeps every genre within
// MaxGenreRepeats and its author within MaxAuthorRepeats.
func (d *DiversityFilter) fits(cand RankedCandidate, genreCounts, authorCounts map[string]int) bool {
	for _, g := range cand.Book.Genres {
		if genreCounts[g]+1 > d.cfg.MaxGenreRepeats {
			return false
		}
	}
	return authorCounts[NormalizeAuthor(cand.Book.AuthorName)]+1 <= d.cfg.MaxAuthorRepeats
}
