package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/c360studio/repolex/apperror"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.QueryTimeoutSeconds != 30 {
		t.Errorf("QueryTimeoutSeconds = %d, want 30", cfg.QueryTimeoutSeconds)
	}
	if cfg.MaxFileSizeMB != 10 {
		t.Errorf("MaxFileSizeMB = %d, want 10", cfg.MaxFileSizeMB)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.MaxConcurrentParsers = 64

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for out-of-range max_concurrent_parsers")
	}
	if apperror.KindOf(err) != apperror.KindConfiguration {
		t.Errorf("kind = %q, want configuration", apperror.KindOf(err))
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	if cfg.Validate() == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := NewLoader(nil).Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageRoot != root {
		t.Errorf("StorageRoot = %q, want %q", cfg.StorageRoot, root)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	loader := NewLoader(slog.Default())

	cfg := Default()
	cfg.StorageRoot = root
	cfg.QueryTimeoutSeconds = 60
	cfg.LogLevel = "debug"
	if err := loader.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := loader.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.QueryTimeoutSeconds != 60 {
		t.Errorf("QueryTimeoutSeconds = %d, want 60", loaded.QueryTimeoutSeconds)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", loaded.LogLevel)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"log_level":"warning"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(nil).Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warning" {
		t.Errorf("LogLevel = %q, want warning", cfg.LogLevel)
	}
	if cfg.ProcessingTimeoutSeconds != 3600 {
		t.Errorf("ProcessingTimeoutSeconds = %d, want default 3600", cfg.ProcessingTimeoutSeconds)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.StorageRoot = t.TempDir()
	cfg.QueryTimeoutSeconds = 1
	if err := NewLoader(nil).Save(cfg); err == nil {
		t.Fatal("expected save of invalid config to fail")
	}
	if _, err := os.Stat(cfg.ConfigPath()); !os.IsNotExist(err) {
		t.Error("invalid config must not be persisted")
	}
}
