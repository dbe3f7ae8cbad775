// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/bibliograph/internal/metrics"
)

// Truncation limits for telemetry fields. Keys and error messages can embed
// user-derived data of unbounded length.
const (
	maxTelemetryKeyLen = 100
	keyTruncKeep       = 50
	maxTelemetryErrLen = 500
)

// FailOpen wraps a Store so backend failures degrade to cache misses instead
// of failing the request. Every swallowed error is logged and counted; a
// circuit breaker short-circuits a persistently failing backend so requests
// are not slowed by backend timeouts.
type FailOpen struct {
	store   Store
	logger  zerolog.Logger
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewFailOpen creates a fail-open wrapper around store.
func NewFailOpen(store Store, logger zerolog.Logger) *FailOpen {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name: "cache",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: 30 * time.Second,
	})

	return &FailOpen{
		store:   store,
		logger:  logger.With().Str("component", "cache").Logger(),
		breaker: breaker,
	}
}

// Get returns the cached value and true, or nil and false on a miss. Backend
// errors are reported to telemetry and treated as misses.
func (f *FailOpen) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := f.breaker.Execute(func() ([]byte, error) {
		return f.store.Get(ctx, key)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		f.reportFailure("get", key, err)
		return nil, false
	}
	return value, true
}

// Set stores the value, swallowing backend errors after reporting them.
func (f *FailOpen) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_, err := f.breaker.Execute(func() ([]byte, error) {
		return nil, f.store.Set(ctx, key, value, ttl)
	})
	if err != nil {
		f.reportFailure("set", key, err)
	}
}

// GetJSON unmarshals the cached value for key into v. Returns false on a
// miss, a backend failure, or a corrupt entry.
func (f *FailOpen) GetJSON(ctx context.Context, key string, v any) bool {
	data, ok := f.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		f.reportFailure("get", key, fmt.Errorf("unmarshal cached value: %w", err))
		return false
	}
	return true
}

// SetJSON marshals v and stores it under key. Marshal failures are reported
// and swallowed like backend failures.
func (f *FailOpen) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		f.reportFailure("set", key, fmt.Errorf("marshal cache value: %w", err))
		return
	}
	f.Set(ctx, key, data, ttl)
}

// reportFailure emits telemetry for a swallowed backend error.
func (f *FailOpen) reportFailure(operation, key string, err error) {
	// Breaker rejections are the breaker doing its job; count them under a
	// distinct type but keep the log quiet.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CacheBackendFailures.WithLabelValues(operation, "breaker_open").Inc()
		return
	}

	metrics.CacheBackendFailures.WithLabelValues(operation, errorType(err)).Inc()

	f.logger.Warn().
		Str("operation", operation).
		Str("key", TruncateKey(key)).
		Str("error_type", errorType(err)).
		Str("error", TruncateError(err.Error())).
		Msg("cache backend failure, degrading to miss")
}

// errorType derives a low-cardinality label from an error.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "backend"
	}
}

// TruncateKey shortens keys longer than 100 characters to the first and last
// 50 joined by an ellipsis, preserving both the prefix and the identity tail.
func TruncateKey(key string) string {
	if len(key) <= maxTelemetryKeyLen {
		return key
	}
	return key[:keyTruncKeep] + "…" + key[len(key)-keyTruncKeep:]
}

// TruncateError caps error messages at 500 characters.
func TruncateError(msg string) string {
	if len(msg) <= maxTelemetryErrLen {
		return msg
	}
	return msg[:maxTelemetryErrLen]
}
