// Package config provides configuration loading and management for repolex.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/c360studio/repolex/apperror"
)

// Config is the complete repolex configuration. It is persisted as a JSON
// document keyed by snake_case option names at {root}/config/config.json.
type Config struct {
	// StorageRoot is the base directory for all repolex state.
	StorageRoot string `json:"storage_root" validate:"required"`

	// AuthToken is an optional bearer token for private source fetches.
	AuthToken string `json:"auth_token,omitempty"`

	// LogLevel controls log verbosity.
	LogLevel string `json:"log_level" validate:"oneof=debug info warning error critical"`

	// ProcessingTimeoutSeconds bounds a whole ingestion.
	ProcessingTimeoutSeconds int `json:"processing_timeout_seconds" validate:"min=30,max=3600"`

	// MaxFileSizeMB is the parser hard cap per source file.
	MaxFileSizeMB int `json:"max_file_size_mb" validate:"min=1,max=100"`

	// MaxConcurrentParsers bounds the parser worker pool.
	MaxConcurrentParsers int `json:"max_concurrent_parsers" validate:"min=1,max=16"`

	// QueryTimeoutSeconds is the default per-query timeout.
	QueryTimeoutSeconds int `json:"query_timeout_seconds" validate:"min=5,max=300"`

	// RequireConfirmationForDestructive gates remove operations behind an
	// interactive confirmation when no force token is given.
	RequireConfirmationForDestructive bool `json:"require_confirmation_for_destructive"`
}

var validate = validator.New()

// Default returns a Config with documented defaults. StorageRoot defaults
// to ~/.repolex.
func Default() *Config {
	root := ".repolex"
	if home, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(home, ".repolex")
	}
	return &Config{
		StorageRoot:                       root,
		LogLevel:                          "info",
		ProcessingTimeoutSeconds:          3600,
		MaxFileSizeMB:                     10,
		MaxConcurrentParsers:              4,
		QueryTimeoutSeconds:               30,
		RequireConfirmationForDestructive: true,
	}
}

// Validate checks the configuration against the schema ranges. A failing
// config is reported as a Configuration error listing every violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperror.Wrap(apperror.KindConfiguration, err, "config validation failed")
	}
	suggestions := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		suggestions = append(suggestions, fmt.Sprintf("%s violates %q", fe.Field(), fe.Tag()))
	}
	return apperror.New(apperror.KindConfiguration, "invalid configuration", suggestions...)
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorePath is the RDF store data directory.
func (c *Config) StorePath() string { return filepath.Join(c.StorageRoot, "store") }

// ReposPath is the root of all repository checkouts.
func (c *Config) ReposPath() string { return filepath.Join(c.StorageRoot, "repos") }

// ExportsPath is the default export destination root.
func (c *Config) ExportsPath() string { return filepath.Join(c.StorageRoot, "exports") }

// LogsPath is the operational log directory.
func (c *Config) LogsPath() string { return filepath.Join(c.StorageRoot, "logs") }

// ConfigPath is the location of the persisted config document.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.StorageRoot, "config", "config.json")
}

// MaxFileSizeBytes converts the MB cap to bytes for the parser walker.
func (c *Config) MaxFileSizeBytes() int64 { return int64(c.MaxFileSizeMB) * 1024 * 1024 }
