package monitoring

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig("/tmp/resona")

	if cfg.Level != "info" {
		t.Errorf("Level = %v, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %v, want json", cfg.Format)
	}
	if cfg.FilePath != filepath.Join("/tmp/resona", "logs", "app.log") {
		t.Errorf("unexpected FilePath: %v", cfg.FilePath)
	}
	if cfg.MaxSizeMB != 100 {
		t.Errorf("MaxSizeMB = %v, want 100", cfg.MaxSizeMB)
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := DefaultLogConfig(t.TempDir())
	cfg.Level = "chatty"

	if _, err := NewLogger(cfg); err == nil {
		t.Error("NewLogger should fail for invalid level")
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLogConfig(dir)

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	logger.Info("playback started")
	_ = logger.Sync()

	if _, err := os.Stat(cfg.FilePath); err != nil {
		t.Errorf("log file should exist: %v", err)
	}
}

func TestNewLogger_ConsoleOutput(t *testing.T) {
	cfg := DefaultLogConfig(t.TempDir())
	cfg.Output = "console"
	cfg.Format = "console"

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	logger.Debug("not shown at info level")
}
