package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Playback  PlaybackConfig  `json:"playback" mapstructure:"playback"`
	Streaming StreamingConfig `json:"streaming" mapstructure:"streaming"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Network   NetworkConfig   `json:"network" mapstructure:"network"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// PlaybackConfig contains playback engine settings
type PlaybackConfig struct {
	CrossfadeSeconds    float64 `json:"crossfade_seconds" mapstructure:"crossfade_seconds"`
	MaxCrossfadeSeconds float64 `json:"max_crossfade_seconds" mapstructure:"max_crossfade_seconds"`
	PreloadSeconds      float64 `json:"preload_seconds" mapstructure:"preload_seconds"`
	ProgressTickMs      int     `json:"progress_tick_ms" mapstructure:"progress_tick_ms"`
	LoadRetries         int     `json:"load_retries" mapstructure:"load_retries"`
	LoadTimeoutSeconds  int     `json:"load_timeout_seconds" mapstructure:"load_timeout_seconds"`
	VolumeRampMs        int     `json:"volume_ramp_ms" mapstructure:"volume_ramp_ms"`
}

// StreamingConfig contains signed-URL service settings
type StreamingConfig struct {
	Endpoint      string `json:"endpoint" mapstructure:"endpoint"`
	PublicBaseURL string `json:"public_base_url" mapstructure:"public_base_url"`
	Bucket        string `json:"bucket" mapstructure:"bucket"`
	SignedTTL     int    `json:"signed_ttl" mapstructure:"signed_ttl"`
	MaxRetries    int    `json:"max_retries" mapstructure:"max_retries"`
	APIKey        string `json:"api_key" mapstructure:"api_key"`
}

// CacheConfig contains offline cache settings
type CacheConfig struct {
	Dir            string `json:"dir" mapstructure:"dir"`
	MaxSizeMB      int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	ThumbnailSize  int    `json:"thumbnail_size" mapstructure:"thumbnail_size"`
	ProbeMetadata  bool   `json:"probe_metadata" mapstructure:"probe_metadata"`
}

// NetworkConfig contains network-related settings
type NetworkConfig struct {
	Timeout              int    `json:"timeout" mapstructure:"timeout"`
	ProbeURL             string `json:"probe_url" mapstructure:"probe_url"`
	ProbeIntervalSeconds int    `json:"probe_interval_seconds" mapstructure:"probe_interval_seconds"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	Output     string `json:"output" mapstructure:"output"`
	FilePath   string `json:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// Load loads configuration from file or creates default
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath == "" {
		configPath = GetConfigPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := ensureConfigDir(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := v.WriteConfigAs(configPath); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		} else if os.IsNotExist(err) {
			if err := v.WriteConfigAs(configPath); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Allow environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("RESONA")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Playback validation
	if c.Playback.MaxCrossfadeSeconds <= 0 {
		return fmt.Errorf("max crossfade duration must be positive")
	}

	if c.Playback.CrossfadeSeconds < 0 || c.Playback.CrossfadeSeconds > c.Playback.MaxCrossfadeSeconds {
		return fmt.Errorf("crossfade duration must be between 0 and %.0f seconds", c.Playback.MaxCrossfadeSeconds)
	}

	if c.Playback.PreloadSeconds < 1 {
		return fmt.Errorf("preload lookahead must be at least 1 second")
	}

	if c.Playback.ProgressTickMs < 50 {
		return fmt.Errorf("progress tick must be at least 50ms")
	}

	if c.Playback.LoadRetries < 0 {
		return fmt.Errorf("load retries cannot be negative")
	}

	if c.Playback.LoadTimeoutSeconds < 1 {
		return fmt.Errorf("load timeout must be at least 1 second")
	}

	// Streaming validation
	if c.Streaming.SignedTTL < 1 {
		return fmt.Errorf("signed URL TTL must be at least 1 second")
	}

	if c.Streaming.MaxRetries < 0 {
		return fmt.Errorf("streaming max retries cannot be negative")
	}

	// Cache validation
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache directory cannot be empty")
	}

	if c.Cache.MaxSizeMB < 1 {
		return fmt.Errorf("cache size must be at least 1 MB")
	}

	if c.Cache.ThumbnailSize < 32 || c.Cache.ThumbnailSize > 2048 {
		return fmt.Errorf("thumbnail size must be between 32 and 2048 pixels")
	}

	// Network validation
	if c.Network.Timeout < 1 {
		return fmt.Errorf("network timeout must be at least 1 second")
	}

	if c.Network.ProbeIntervalSeconds < 0 {
		return fmt.Errorf("probe interval cannot be negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logging.Format)
	}

	validOutputs := map[string]bool{"file": true, "console": true, "both": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s (must be file, console, or both)", c.Logging.Output)
	}

	if c.Logging.MaxSizeMB < 1 {
		return fmt.Errorf("log max size must be at least 1 MB")
	}

	if c.Logging.MaxBackups < 0 {
		return fmt.Errorf("log max backups cannot be negative")
	}

	if c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("log max age cannot be negative")
	}

	return nil
}

// Save saves the configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.Set("playback", c.Playback)
	v.Set("streaming", c.Streaming)
	v.Set("cache", c.Cache)
	v.Set("network", c.Network)
	v.Set("logging", c.Logging)

	return v.WriteConfig()
}

// Reload reloads the configuration from file
func (c *Config) Reload(configPath string) error {
	newConfig, err := Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	*c = *newConfig
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Playback defaults
	v.SetDefault("playback.crossfade_seconds", 3.0)
	v.SetDefault("playback.max_crossfade_seconds", 12.0)
	v.SetDefault("playback.preload_seconds", 20.0)
	v.SetDefault("playback.progress_tick_ms", 250)
	v.SetDefault("playback.load_retries", 3)
	v.SetDefault("playback.load_timeout_seconds", 15)
	v.SetDefault("playback.volume_ramp_ms", 80)

	// Streaming defaults
	v.SetDefault("streaming.endpoint", "")
	v.SetDefault("streaming.public_base_url", "")
	v.SetDefault("streaming.bucket", "tracks")
	v.SetDefault("streaming.signed_ttl", 3600)
	v.SetDefault("streaming.max_retries", 3)

	// Cache defaults
	v.SetDefault("cache.dir", filepath.Join(GetDataDir(), "cache"))
	v.SetDefault("cache.max_size_mb", 2048)
	v.SetDefault("cache.thumbnail_size", 300)
	v.SetDefault("cache.probe_metadata", true)

	// Network defaults
	v.SetDefault("network.timeout", 30)
	v.SetDefault("network.probe_url", "")
	v.SetDefault("network.probe_interval_seconds", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "file")
	v.SetDefault("logging.file_path", filepath.Join(GetDataDir(), "logs", "app.log"))
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(GetDataDir(), "settings.json")
}

// ensureConfigDir ensures the configuration directory exists
func ensureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

// GetDataDir returns the application data directory
func GetDataDir() string {
	if dir := os.Getenv("RESONA_DATA_DIR"); dir != "" {
		return dir
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "."
		}
		return filepath.Join(home, ".resona")
	}
	return filepath.Join(configDir, "Resona")
}
