package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/c360studio/repolex/apperror"
)

// Loader reads and writes the persisted configuration document.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads {root}/config/config.json, filling missing fields from
// defaults. A missing file yields the defaults unchanged. An unparseable or
// invalid file is a Configuration error; the caller keeps its prior config.
func (l *Loader) Load(storageRoot string) (*Config, error) {
	cfg := Default()
	if storageRoot != "" {
		cfg.StorageRoot = storageRoot
	}

	path := cfg.ConfigPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Debug("no config file, using defaults", slog.String("path", path))
		return cfg, nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindConfiguration, err, "read config file",
			"check permissions on "+path)
	}

	// Unmarshal over defaults so absent fields keep their default values.
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, apperror.Wrap(apperror.KindConfiguration, err, "parse config file",
			"config must be a JSON object with snake_case keys",
			"fix or delete "+path)
	}
	if storageRoot != "" {
		// An explicit root on the command line wins over the stored value.
		cfg.StorageRoot = storageRoot
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l.logger.Debug("loaded config", slog.String("path", path))
	return cfg, nil
}

// Save validates cfg and writes it atomically (temp file + rename) to its
// config path, creating the directory if needed.
func (l *Loader) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := cfg.ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperror.Wrap(apperror.KindConfiguration, err, "create config directory")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return apperror.Wrap(apperror.KindConfiguration, err, "encode config")
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperror.Wrap(apperror.KindConfiguration, err, "write config file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperror.Wrap(apperror.KindConfiguration, err, "replace config file")
	}
	l.logger.Debug("saved config", slog.String("path", path))
	return nil
}
