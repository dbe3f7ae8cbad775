// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package recommend implements the book recommendation engine.
//
// The engine analyzes a reader's interaction history and recommends unread
// books by finding readers with similar taste and surfacing what those
// readers loved. The pipeline, per request:
//
//  1. ProfileBuilder condenses interaction records (or an anonymous
//     session's pre-aggregated distributions) into an immutable TasteProfile.
//  2. CompareProfiles scores two profiles with seven weighted similarity
//     components and adaptive confidence weighting.
//  3. Collector gathers candidates from three tiers: similar peers,
//     anonymized aggregate profiles, and rule-based fallbacks. Every tier
//     reads in bulk - one store call per tier, never one per peer.
//  4. Scorer converts accumulated evidence into a rank score, applies the
//     quality gate, and derives a separate display confidence.
//  5. DiversityFilter caps per-genre and per-author repetition.
//  6. Explainer attaches independent justification fragments.
//
// The engine is synchronous and request-scoped. All cross-request state
// lives in the injected fail-open cache; a cache outage slows requests down
// but never fails them.
//
// Note: this package defines its own store interfaces rather than importing
// the database package, so the database layer can depend on the engine's
// types without a circular import.
package recommend
