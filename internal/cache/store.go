// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package cache provides the key-value cache used to amortize expensive bulk
// lookups across recommendation requests.
//
// Store is the backend contract. Two implementations are provided: an
// in-memory TTL store and a BadgerDB-backed store. Production code accesses
// either through FailOpen, which converts backend failures into cache misses
// so an outage never fails a request.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is a key-value cache backend. Both methods may fail; callers that
// must not propagate backend errors wrap the store with FailOpen.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases backend resources.
	Close() error
}
