// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bibliograph/internal/models"
)

// ErrSessionNotFound is returned by SessionStore when a session token is
// unknown or expired. The engine maps it to an empty recommendation list.
var ErrSessionNotFound = errors.New("recommend: session not found")

// Record is one reader-book interaction joined with its catalog metadata.
// Rating is 1-5, zero when unrated.
type Record struct {
	Book   models.Book
	Rating int
	IsTop  bool
}

// ReaderRecords groups one reader's records with the identity metadata
// needed for peer sourcing.
type ReaderRecords struct {
	UserID   int64
	Username string
	Records  []Record
}

// InteractionStore provides reader interaction history. Implementations must
// serve each call with a single bulk query.
type InteractionStore interface {
	// GetReaderRecords returns one reader's interaction records.
	GetReaderRecords(ctx context.Context, userID int64) ([]Record, error)

	// GetPublicReaderRecords returns the records of every visible public
	// reader except excludeUserID, grouped per reader.
	GetPublicReaderRecords(ctx context.Context, excludeUserID int64) ([]ReaderRecords, error)

	// GetLikedRecords returns, per reader, the books rated >= 4 or flagged
	// as top books.
	GetLikedRecords(ctx context.Context, userIDs []int64) (map[int64][]Record, error)
}

// CatalogStore provides read-only book catalog lookups.
type CatalogStore interface {
	// GetBooksByIDs resolves catalog metadata for a set of book IDs.
	// Unknown IDs are omitted from the result.
	GetBooksByIDs(ctx context.Context, ids []int64) (map[int64]models.Book, error)

	// GetBooksByAuthors returns up to perAuthor books per named author with
	// average rating >= minRating. Unknown authors yield no rows.
	GetBooksByAuthors(ctx context.Context, authors []string, minRating float64, perAuthor int) ([]models.Book, error)

	// GetBooksByGenres returns up to perGenre books per genre with average
	// rating >= minRating. Unknown genres yield no rows.
	GetBooksByGenres(ctx context.Context, genres []string, minRating float64, perGenre int) ([]models.Book, error)

	// GetTopRatedBooks returns the highest-rated catalog books.
	GetTopRatedBooks(ctx context.Context, limit int) ([]models.Book, error)
}

// SessionStore resolves anonymous session tokens.
type SessionStore interface {
	// GetSession returns the session for token, or ErrSessionNotFound when
	// the token is unknown or the session has expired.
	GetSession(ctx context.Context, token string) (*models.AnonymousSession, error)
}

// ProfileStore provides the anonymized aggregate profile pool.
type ProfileStore interface {
	// SampleProfiles returns up to limit anonymized profiles.
	SampleProfiles(ctx context.Context, limit int) ([]models.AnonymizedProfile, error)
}

// SourceType discriminates candidate source variants.
type SourceType string

const (
	// SourceSimilarUser marks a book surfaced by a similar registered reader.
	SourceSimilarUser SourceType = "similar_user"
	// SourceAnonymizedProfile marks a book surfaced by an anonymized
	// aggregate profile.
	SourceAnonymizedProfile SourceType = "anonymized_profile"
	// SourceFallbackAuthor marks a rule-based suggestion from a favorite
	// author.
	SourceFallbackAuthor SourceType = "fallback_author"
	// SourceFallbackGenre marks a rule-based suggestion from a favorite
	// genre (or the catalog-wide popularity rung).
	SourceFallbackGenre SourceType = "fallback_genre"
)

// Source is the closed variant of candidate provenance. Consumers resolve
// the concrete type with a type switch.
type Source interface {
	Type() SourceType
}

// SimilarUser records a peer endorsement.
type SimilarUser struct {
	Username    string  `json:"username"`
	Similarity  float64 `json:"similarity"`
	IsTop       bool    `json:"is_top"`
	Rating      int     `json:"rating,omitempty"`
	MatchLabel  string  `json:"match_label"`
	SharedCount int     `json:"shared_count"`
}

// Type implements Source.
func (SimilarUser) Type() SourceType { return SourceSimilarUser }

// AnonymizedProfile records an endorsement from the anonymized pool.
type AnonymizedProfile struct {
	Similarity float64 `json:"similarity"`
}

// Type implements Source.
func (AnonymizedProfile) Type() SourceType { return SourceAnonymizedProfile }

// FallbackAuthor records a rule-based favorite-author suggestion.
type FallbackAuthor struct {
	Reason string `json:"reason"`
}

// Type implements Source.
func (FallbackAuthor) Type() SourceType { return SourceFallbackAuthor }

// FallbackGenre records a rule-based favorite-genre suggestion.
type FallbackGenre struct {
	Reason string `json:"reason"`
}

// Type implements Source.
func (FallbackGenre) Type() SourceType { return SourceFallbackGenre }

// SourceList is a JSON-round-trippable slice of Source values. Cached
// recommendation lists must survive (de)serialization, so each element is
// stored as a {type, data} envelope.
type SourceList []Source

// sourceEnvelope is the wire form of a single Source.
type sourceEnvelope struct {
	Type SourceType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (l SourceList) MarshalJSON() ([]byte, error) {
	envelopes := make([]sourceEnvelope, 0, len(l))
	for _, s := range l {
		data, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, sourceEnvelope{Type: s.Type(), Data: data})
	}
	return json.Marshal(envelopes)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *SourceList) UnmarshalJSON(data []byte) error {
	var envelopes []sourceEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return err
	}

	out := make(SourceList, 0, len(envelopes))
	for _, e := range envelopes {
		var s Source
		switch e.Type {
		case SourceSimilarUser:
			v := SimilarUser{}
			if err := json.Unmarshal(e.Data, &v); err != nil {
				return err
			}
			s = v
		case SourceAnonymizedProfile:
			v := AnonymizedProfile{}
			if err := json.Unmarshal(e.Data, &v); err != nil {
				return err
			}
			s = v
		case SourceFallbackAuthor:
			v := FallbackAuthor{}
			if err := json.Unmarshal(e.Data, &v); err != nil {
				return err
			}
			s = v
		case SourceFallbackGenre:
			v := FallbackGenre{}
			if err := json.Unmarshal(e.Data, &v); err != nil {
				return err
			}
			s = v
		default:
			return fmt.Errorf("unknown source type %q", e.Type)
		}
		out = append(out, s)
	}

	*l = out
	return nil
}

// Candidate is a book under consideration with its accumulated evidence.
// Invariant: Book.ID is never in the requester's read or disliked sets.
type Candidate struct {
	Book models.Book

	// Sources lists every origin that surfaced this book.
	Sources SourceList

	// MaxSimilarity is the highest similarity among contributing sources.
	MaxSimilarity float64

	// RecommenderCount counts peer and anonymized-profile endorsements.
	// Rule-based fallback sources contribute weight but are not
	// recommenders.
	RecommenderCount int

	// TotalWeight is the accumulated endorsement weight.
	TotalWeight float64
}

// RankedCandidate is a candidate that passed the quality gate, with its
// composite rank score and display confidence.
type RankedCandidate struct {
	Candidate

	// Score is the composite rank score. Unbounded above.
	Score float64

	// Confidence is the display confidence in [0, 1], decoupled from Score.
	Confidence float64
}

// Recommendation is one surfaced item of the engine's response.
type Recommendation struct {
	Book       models.Book `json:"book"`
	Score      float64     `json:"score"`
	Confidence float64     `json:"confidence"`
	Sources    SourceList  `json:"sources"`

	// Explanations holds independent justification fragments keyed by kind
	// ("shared_books", "genres", "peers", "rating"). Composition into
	// display copy is the caller's concern.
	Explanations map[string]string `json:"explanations,omitempty"`
}

// MatchLabel maps a similarity score to a human match-quality label.
func MatchLabel(similarity float64) string {
	switch {
	case similarity >= 0.80:
		return "Literary twin"
	case similarity >= 0.60:
		return "Kindred spirit"
	case similarity >= 0.40:
		return "Similar tastes"
	case similarity >= 0.20:
		return "Some overlap"
	default:
		return "Opposite tastes"
	}
}
