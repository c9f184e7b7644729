// Package config provides configuration loading for fixd.
//
// Configuration is loaded from an optional YAML file, overridden by FIXD_*
// environment variables, over hardcoded defaults.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete fixd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Store      StoreConfig      `koanf:"store"`
	Index      IndexConfig      `koanf:"index"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Search     SearchConfig     `koanf:"search"`
	Decay      DecayConfig      `koanf:"decay"`
	Log        LogConfig        `koanf:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second per client, 0 disables
}

// StoreConfig holds record store configuration.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Provider   string `koanf:"provider"` // "chromem" or "qdrant"
	Path       string `koanf:"path"`     // chromem persistence dir; empty = in-memory
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	VectorSize int    `koanf:"vector_size"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"` // "tei" or "fallback"
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
}

// SearchConfig holds retrieval thresholds.
type SearchConfig struct {
	SimilarityFloor float64 `koanf:"similarity_floor"`
	ConfidenceFloor float64 `koanf:"confidence_floor"`
	MaxResults      int     `koanf:"max_results"`

	// MinVerifiedAttempts is the attempt count below which a solution is
	// annotated as low-confidence in API responses. 0 disables the
	// annotation.
	MinVerifiedAttempts int `koanf:"min_verified_attempts"`
}

// DecayConfig holds the decay sweep schedule.
type DecayConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// applyDefaults sets defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8440
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "fixd.db"
	}
	if cfg.Index.Provider == "" {
		cfg.Index.Provider = "chromem"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "fixd_bugs"
	}
	if cfg.Index.VectorSize == 0 {
		cfg.Index.VectorSize = 384
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "tei"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Search.SimilarityFloor == 0 {
		cfg.Search.SimilarityFloor = 0.75
	}
	if cfg.Search.ConfidenceFloor == 0 {
		cfg.Search.ConfidenceFloor = 0.5
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 10
	}
	if cfg.Decay.Interval == 0 {
		cfg.Decay.Interval = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Index.Provider != "chromem" && c.Index.Provider != "qdrant" {
		return fmt.Errorf("%w: unknown index provider %q", ErrInvalidConfig, c.Index.Provider)
	}
	if c.Embeddings.Provider != "tei" && c.Embeddings.Provider != "fallback" {
		return fmt.Errorf("%w: unknown embeddings provider %q", ErrInvalidConfig, c.Embeddings.Provider)
	}
	if c.Search.SimilarityFloor < 0 || c.Search.SimilarityFloor > 1 {
		return fmt.Errorf("%w: similarity floor %.2f out of [0, 1]", ErrInvalidConfig, c.Search.SimilarityFloor)
	}
	if c.Search.ConfidenceFloor < 0 || c.Search.ConfidenceFloor > 1 {
		return fmt.Errorf("%w: confidence floor %.2f out of [0, 1]", ErrInvalidConfig, c.Search.ConfidenceFloor)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("%w: max results must be positive", ErrInvalidConfig)
	}
	if c.Search.MinVerifiedAttempts < 0 {
		return fmt.Errorf("%w: min verified attempts must not be negative", ErrInvalidConfig)
	}
	if c.Decay.Interval < time.Minute {
		return fmt.Errorf("%w: decay interval %s below one minute", ErrInvalidConfig, c.Decay.Interval)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}
