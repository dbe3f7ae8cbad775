// Bibliograph - Reading Analytics and Book Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package config loads application configuration with layered sources:
// built-in defaults, an optional YAML file, then environment variables
// (BIBLIOGRAPH_ prefix), in increasing precedence.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Logging   LoggingConfig   `koanf:"logging"`
	Recommend RecommendConfig `koanf:"recommend"`
	Anonymize AnonymizeConfig `koanf:"anonymize"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Empty binds all interfaces.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitPerMinute caps requests per client IP. Zero disables limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute" validate:"min=0"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" runs in-memory.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory is the DuckDB memory limit (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads limits DuckDB worker threads. Zero uses all cores.
	Threads int `koanf:"threads" validate:"min=0"`
}

// CacheConfig holds cache backend settings.
type CacheConfig struct {
	// Backend selects the cache store: "memory" or "badger".
	Backend string `koanf:"backend" validate:"oneof=memory badger"`

	// Path is the BadgerDB directory (badger backend only).
	Path string `koanf:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// RecommendConfig holds the engine tunables exposed through app config.
// Mirrored into recommend.Config by engineConfig in cmd/server.
type RecommendConfig struct {
	DefaultLimit int `koanf:"default_limit" validate:"min=1"`
	MaxLimit     int `koanf:"max_limit" validate:"min=1"`

	MinSimilarity    float64 `koanf:"min_similarity" validate:"min=0,max=1"`
	MaxPeers         int     `koanf:"max_peers" validate:"min=1"`
	MaxAnonProfiles  int     `koanf:"max_anon_profiles" validate:"min=0"`
	QualityThreshold float64 `koanf:"quality_threshold" validate:"min=0,max=5"`

	SeriesSaturation  int     `koanf:"series_saturation" validate:"min=1"`
	AuthorSaturation  int     `koanf:"author_saturation" validate:"min=1"`
	MaxGenreRepeats   int     `koanf:"max_genre_repeats" validate:"min=1"`
	MaxAuthorRepeats  int     `koanf:"max_author_repeats" validate:"min=1"`
	DiversityBypass   float64 `koanf:"diversity_bypass" validate:"min=0,max=1"`

	ResultTTL     time.Duration `koanf:"result_ttl"`
	PeerTTL       time.Duration `koanf:"peer_ttl"`
	AnonSampleTTL time.Duration `koanf:"anon_sample_ttl"`
}

// AnonymizeConfig holds the session anonymization batch settings.
type AnonymizeConfig struct {
	Enabled bool `koanf:"enabled"`

	// Interval between batch runs.
	Interval time.Duration `koanf:"interval"`

	// MinBooks is the minimum book count for a session to be anonymized.
	MinBooks int `koanf:"min_books" validate:"min=1"`

	// RetentionDays keeps anonymized sessions before purging.
	RetentionDays int `koanf:"retention_days" validate:"min=1"`
}

// defaultConfig returns a Config with all sensible default values. Engine
// defaults match the recommendation design constants.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "",
			Port:               8080,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			RateLimitPerMinute: 120,
		},
		Database: DatabaseConfig{
			Path:      "/data/bibliograph.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Cache: CacheConfig{
			Backend: "badger",
			Path:    "/data/cache",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Recommend: RecommendConfig{
			DefaultLimit:     10,
			MaxLimit:         50,
			MinSimilarity:    0.15,
			MaxPeers:         30,
			MaxAnonProfiles:  100,
			QualityThreshold: 3.5,
			SeriesSaturation: 3,
			AuthorSaturation: 3,
			MaxGenreRepeats:  3,
			MaxAuthorRepeats: 2,
			DiversityBypass:  0.8,
			ResultTTL:        15 * time.Minute,
			PeerTTL:          30 * time.Minute,
			AnonSampleTTL:    time.Hour,
		},
		Anonymize: AnonymizeConfig{
			Enabled:       true,
			Interval:      time.Hour,
			MinBooks:      10,
			RetentionDays: 30,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("recommend.default_limit %d exceeds max_limit %d",
			c.Recommend.DefaultLimit, c.Recommend.MaxLimit)
	}
	if c.Cache.Backend == "badger" && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required for the badger backend")
	}

	return nil
}
