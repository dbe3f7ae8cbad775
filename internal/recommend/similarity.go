// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"math"

	"github.com/tomtom215/bibliograph/internal/models"
)

// Similarity component names, used as keys in the result's Components and
// Weights maps.
const (
	ComponentCorrelation   = "correlation"
	ComponentJaccard       = "jaccard"
	ComponentTopOverlap    = "top_overlap"
	ComponentGenreCosine   = "genre_cosine"
	ComponentAuthorCosine  = "author_cosine"
	ComponentRatingPattern = "rating_pattern"
	ComponentEra           = "era"
)

// Base component weights. An absent component drops out and the remaining
// weights are renormalized before the weighted sum.
const (
	weightCorrelation      = 0.35
	weightJaccard          = 0.25
	weightJaccardWithCorr  = 0.15
	weightTopOverlap       = 0.20
	weightGenreCosine      = 0.15
	weightAuthorCosine     = 0.15
	weightRatingPattern    = 0.08
	weightEra              = 0.07
	correlationSaturatedAt = 20
)

// Similarity is the decomposed result of comparing two taste profiles.
type Similarity struct {
	// Score is the renormalized weighted sum, in [0, 1].
	Score float64

	// Components holds each active component's raw value in [0, 1].
	// Inactive components are absent.
	Components map[string]float64

	// Weights holds each active component's weight before renormalization.
	Weights map[string]float64

	// SharedRatings is the number of books both profiles rated.
	SharedRatings int
}

// CompareProfiles scores two taste profiles against each other. Both
// profiles must be fully built; no data is fetched here, so bulk comparison
// over many peers stays linear in the peer count.
//
// Seven components contribute, each in [0, 1]. A component undefined over the
// available data (too few shared ratings, empty distributions on either side)
// is excluded rather than scored zero, and the remaining weights are
// renormalized to sum to 1.
func CompareProfiles(a, b *TasteProfile, minSharedRatings int) Similarity {
	sim := Similarity{
		Components: make(map[string]float64, 7),
		Weights:    make(map[string]float64, 7),
	}

	// 1. Pearson correlation over shared ratings, rescaled to [0,1]. Its
	// weight grows with the shared count so thin overlap cannot dominate.
	corr, shared, ok := sharedRatingCorrelation(a, b, minSharedRatings)
	sim.SharedRatings = shared
	if ok {
		sim.Components[ComponentCorrelation] = corr
		sim.Weights[ComponentCorrelation] = weightCorrelation * math.Min(float64(shared)/correlationSaturatedAt, 1)
	}

	// 2. Jaccard overlap of read sets. Demoted when correlation is active,
	// since the two signals overlap.
	if len(a.ReadBooks) > 0 || len(b.ReadBooks) > 0 {
		sim.Components[ComponentJaccard] = jaccard(a.ReadBooks, b.ReadBooks)
		if ok {
			sim.Weights[ComponentJaccard] = weightJaccardWithCorr
		} else {
			sim.Weights[ComponentJaccard] = weightJaccard
		}
	}

	// 3. Top-book overlap.
	if len(a.TopBooks) > 0 || len(b.TopBooks) > 0 {
		sim.Components[ComponentTopOverlap] = topOverlap(a.TopBooks, b.TopBooks)
		sim.Weights[ComponentTopOverlap] = weightTopOverlap
	}

	// 4+5. Genre and author cosine similarity.
	if len(a.GenreWeights) > 0 && len(b.GenreWeights) > 0 {
		sim.Components[ComponentGenreCosine] = CosineWeights(a.GenreWeights, b.GenreWeights)
		sim.Weights[ComponentGenreCosine] = weightGenreCosine
	}
	if len(a.AuthorWeights) > 0 && len(b.AuthorWeights) > 0 {
		sim.Components[ComponentAuthorCosine] = CosineWeights(a.AuthorWeights, b.AuthorWeights)
		sim.Weights[ComponentAuthorCosine] = weightAuthorCosine
	}

	// 6. Rating-pattern similarity: histogram shape plus mean proximity.
	if a.RatedCount() > 0 && b.RatedCount() > 0 {
		sim.Components[ComponentRatingPattern] = ratingPattern(a, b)
		sim.Weights[ComponentRatingPattern] = weightRatingPattern
	}

	// 7. Publication-era similarity over decade buckets.
	if len(a.YearWeights) > 0 && len(b.YearWeights) > 0 {
		sim.Components[ComponentEra] = eraSimilarity(a.YearWeights, b.YearWeights)
		sim.Weights[ComponentEra] = weightEra
	}

	sim.Score = weightedSum(sim.Components, sim.Weights)
	return sim
}

// ProfileSimilarity scores a requester profile against an anonymized
// aggregate profile. Aggregates carry no per-book ratings or read sets, so
// only distribution-level components apply, with their own fixed weighting.
func ProfileSimilarity(p *TasteProfile, agg *models.AnonymizedProfile) float64 {
	genre := CosineWeights(p.GenreWeights, agg.GenreDistribution)
	author := CosineWeights(p.AuthorWeights, normalizeAuthorKeys(agg.AuthorDistribution))

	aggTop := make(map[int64]struct{}, len(agg.TopBookIDs))
	for _, id := range agg.TopBookIDs {
		aggTop[id] = struct{}{}
	}
	top := topOverlap(p.TopBooks, aggTop)

	var pDist, aggDist [5]float64
	for i, n := range p.RatingDist {
		pDist[i] = float64(n)
	}
	for r, n := range agg.RatingDistribution {
		if r >= 1 && r <= 5 {
			aggDist[r-1] = float64(n)
		}
	}
	rating := cosineVec(pDist[:], aggDist[:])

	return genre*0.30 + author*0.25 + top*0.25 + rating*0.20
}

// sharedRatingCorrelation computes the Pearson correlation over books both
// profiles rated, rescaled from [-1,1] to [0,1]. Returns ok=false with fewer
// than minShared shared ratings, or when either side has zero variance (the
// correlation is undefined, not zero).
func sharedRatingCorrelation(a, b *TasteProfile, minShared int) (float64, int, bool) {
	small, large := a.Ratings, b.Ratings
	if len(small) > len(large) {
		small, large = large, small
	}

	var xs, ys []float64
	for id, ra := range small {
		if rb, ok := large[id]; ok {
			xs = append(xs, float64(ra))
			ys = append(ys, float64(rb))
		}
	}

	shared := len(xs)
	if shared < minShared {
		return 0, shared, false
	}

	n := float64(shared)
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, shared, false
	}

	pearson := cov / math.Sqrt(varX*varY)
	return (pearson + 1) / 2, shared, true
}

// jaccard computes |A∩B| / |A∪B| over two ID sets; 0 when both are empty.
func jaccard(a, b map[int64]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for id := range small {
		if _, ok := large[id]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// topOverlap computes |A∩B| / max(|A|,|B|,1).
func topOverlap(a, b map[int64]struct{}) float64 {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for id := range small {
		if _, ok := large[id]; ok {
			inter++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	if denom == 0 {
		denom = 1
	}
	return float64(inter) / float64(denom)
}

// ratingPattern blends normalized-histogram closeness (70%) with mean-rating
// proximity (30%). Both profiles are known to have ratings.
func ratingPattern(a, b *TasteProfile) float64 {
	na, nb := float64(a.RatedCount()), float64(b.RatedCount())

	var l1 float64
	for i := 0; i < 5; i++ {
		l1 += math.Abs(float64(a.RatingDist[i])/na - float64(b.RatingDist[i])/nb)
	}
	histogram := 1 - l1/2

	meanCloseness := 1 - math.Abs(a.MeanRating()-b.MeanRating())/4

	return 0.7*histogram + 0.3*meanCloseness
}

// eraSimilarity compares weight-replicated publish-year distributions bucketed
// by decade: 1 minus half the L1 distance between the normalized buckets.
func eraSimilarity(a, b map[int]float64) float64 {
	bucketsA, totalA := decadeBuckets(a)
	bucketsB, totalB := decadeBuckets(b)
	if totalA == 0 || totalB == 0 {
		return 0
	}

	decades := make(map[int]struct{}, len(bucketsA)+len(bucketsB))
	for d := range bucketsA {
		decades[d] = struct{}{}
	}
	for d := range bucketsB {
		decades[d] = struct{}{}
	}

	var l1 float64
	for d := range decades {
		l1 += math.Abs(bucketsA[d]/totalA - bucketsB[d]/totalB)
	}
	return 1 - l1/2
}

// decadeBuckets folds per-year weights into per-decade totals.
func decadeBuckets(years map[int]float64) (map[int]float64, float64) {
	buckets := make(map[int]float64, len(years))
	var total float64
	for year, w := range years {
		buckets[(year/10)*10] += w
		total += w
	}
	return buckets, total
}

// CosineWeights computes the cosine similarity of two weight maps over their
// key union: dot product divided by the product of L2 norms, 0 when either
// map is empty or zero-normed.
func CosineWeights(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineVec computes cosine similarity of two equal-length vectors.
func cosineVec(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// weightedSum renormalizes the active weights to sum to 1 and folds the
// components into a single score.
func weightedSum(components, weights map[string]float64) float64 {
	var totalWeight float64
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}

	var sum float64
	for name, value := range components {
		sum += value * (weights[name] / totalWeight)
	}
	if sum > 1 {
		sum = 1
	}
	if sum < 0 {
		sum = 0
	}
	return sum
}

// normalizeAuthorKeys re-keys an author distribution with canonical names.
func normalizeAuthorKeys(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for name, w := range m {
		out[NormalizeAuthor(name)] += w
	}
	return out
}
