// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"fmt"
	"time"
)

// Config contains the engine tunables. Similarity component base weights are
// fixed by design and live in similarity.go; everything operational or
// heuristic is configurable here.
type Config struct {
	// DefaultLimit is used when a request passes limit <= 0.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit caps the requested result size.
	MaxLimit int `json:"max_limit"`

	// MinSimilarity is the floor for peer and anonymized-profile sourcing.
	MinSimilarity float64 `json:"min_similarity"`

	// MaxPeers bounds the similar-peer shortlist.
	MaxPeers int `json:"max_peers"`

	// MaxAnonProfiles bounds the anonymized-profile sample.
	MaxAnonProfiles int `json:"max_anon_profiles"`

	// MaxBooksPerAnonProfile bounds top-book pulls per anonymized profile.
	MaxBooksPerAnonProfile int `json:"max_books_per_anon_profile"`

	// MinSharedRatings is the minimum shared rated books for the rating
	// correlation component.
	MinSharedRatings int `json:"min_shared_ratings"`

	// QualityThreshold drops candidates whose community average rating is
	// below it.
	QualityThreshold float64 `json:"quality_threshold"`

	// SeriesSaturation is the read count at which a series is saturated.
	SeriesSaturation int `json:"series_saturation"`

	// AuthorSaturation is the read count at which an author is saturated
	// for fallback sourcing.
	AuthorSaturation int `json:"author_saturation"`

	// MaxGenreRepeats and MaxAuthorRepeats cap repetition in the final
	// list, enforced past the first half of the requested limit.
	MaxGenreRepeats  int `json:"max_genre_repeats"`
	MaxAuthorRepeats int `json:"max_author_repeats"`

	// DiversityBypass lets a candidate skip the repetition caps when its
	// score is at least this fraction of the top score.
	DiversityBypass float64 `json:"diversity_bypass"`

	// FallbackAuthors, FallbackGenres, and FallbackPerSource bound the
	// rule-based fallback tier.
	FallbackAuthors   int `json:"fallback_authors"`
	FallbackGenres    int `json:"fallback_genres"`
	FallbackPerSource int `json:"fallback_per_source"`

	// Cache TTLs. Caches are invalidated only by expiry.
	ResultTTL     time.Duration `json:"result_ttl"`
	PeerTTL       time.Duration `json:"peer_ttl"`
	AnonSampleTTL time.Duration `json:"anon_sample_ttl"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultLimit:           10,
		MaxLimit:               50,
		MinSimilarity:          0.15,
		MaxPeers:               30,
		MaxAnonProfiles:        100,
		MaxBooksPerAnonProfile: 5,
		MinSharedRatings:       3,
		QualityThreshold:       3.5,
		SeriesSaturation:       3,
		AuthorSaturation:       3,
		MaxGenreRepeats:        3,
		MaxAuthorRepeats:       2,
		DiversityBypass:        0.8,
		FallbackAuthors:        5,
		FallbackGenres:         3,
		FallbackPerSource:      10,
		ResultTTL:              15 * time.Minute,
		PeerTTL:                30 * time.Minute,
		AnonSampleTTL:          time.Hour,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit %d below default_limit %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be in [0,1], got %f", c.MinSimilarity)
	}
	if c.MaxPeers <= 0 {
		return fmt.Errorf("max_peers must be positive, got %d", c.MaxPeers)
	}
	if c.MaxAnonProfiles < 0 {
		return fmt.Errorf("max_anon_profiles must be non-negative, got %d", c.MaxAnonProfiles)
	}
	if c.MinSharedRatings < 2 {
		return fmt.Errorf("min_shared_ratings must be at least 2, got %d", c.MinSharedRatings)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 5 {
		return fmt.Errorf("quality_threshold must be in [0,5], got %f", c.QualityThreshold)
	}
	if c.SeriesSaturation < 1 {
		return fmt.Errorf("series_saturation must be positive, got %d", c.SeriesSaturation)
	}
	if c.AuthorSaturation < 1 {
		return fmt.Errorf("author_saturation must be positive, got %d", c.AuthorSaturation)
	}
	if c.MaxGenreRepeats < 1 || c.MaxAuthorRepeats < 1 {
		return fmt.Errorf("repetition caps must be positive")
	}
	if c.DiversityBypass < 0 || c.DiversityBypass > 1 {
		return fmt.Errorf("diversity_bypass must be in [0,1], got %f", c.DiversityBypass)
	}
	if c.ResultTTL <= 0 || c.PeerTTL <= 0 || c.AnonSampleTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
