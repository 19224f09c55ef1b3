package config

import (
	"path/filepath"
	"testing"
)

func newValidConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "settings.json"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return cfg
}

func TestLoad_CreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Playback.CrossfadeSeconds != 3.0 {
		t.Errorf("CrossfadeSeconds = %v, want 3.0", cfg.Playback.CrossfadeSeconds)
	}
	if cfg.Playback.MaxCrossfadeSeconds != 12.0 {
		t.Errorf("MaxCrossfadeSeconds = %v, want 12.0", cfg.Playback.MaxCrossfadeSeconds)
	}
	if cfg.Playback.ProgressTickMs != 250 {
		t.Errorf("ProgressTickMs = %v, want 250", cfg.Playback.ProgressTickMs)
	}
	if cfg.Streaming.SignedTTL != 3600 {
		t.Errorf("SignedTTL = %v, want 3600", cfg.Streaming.SignedTTL)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %v, want info", cfg.Logging.Level)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg.Playback.CrossfadeSeconds = 6.5
	cfg.Streaming.Bucket = "audio-files"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after save error: %v", err)
	}
	if reloaded.Playback.CrossfadeSeconds != 6.5 {
		t.Errorf("CrossfadeSeconds = %v, want 6.5", reloaded.Playback.CrossfadeSeconds)
	}
	if reloaded.Streaming.Bucket != "audio-files" {
		t.Errorf("Bucket = %v, want audio-files", reloaded.Streaming.Bucket)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"crossfade above max", func(c *Config) { c.Playback.CrossfadeSeconds = 15 }, true},
		{"negative crossfade", func(c *Config) { c.Playback.CrossfadeSeconds = -1 }, true},
		{"tick too fast", func(c *Config) { c.Playback.ProgressTickMs = 10 }, true},
		{"negative load retries", func(c *Config) { c.Playback.LoadRetries = -1 }, true},
		{"zero signed ttl", func(c *Config) { c.Streaming.SignedTTL = 0 }, true},
		{"empty cache dir", func(c *Config) { c.Cache.Dir = "" }, true},
		{"thumbnail too small", func(c *Config) { c.Cache.ThumbnailSize = 8 }, true},
		{"zero network timeout", func(c *Config) { c.Network.Timeout = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newValidConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
