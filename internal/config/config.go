package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// Environment variables that override file values.
const (
	EnvDBPath    = "CARDSYNERGY_DB_PATH"
	EnvRedisAddr = "CARDSYNERGY_REDIS_ADDR"
	EnvGeminiKey = "GEMINI_API_KEY"
)

// Config represents the application configuration.
type Config struct {
	Server          ServerConfig          `toml:"server"`
	Database        DatabaseConfig        `toml:"database"`
	Cache           CacheConfig           `toml:"cache"`
	LLM             LLMConfig             `toml:"llm"`
	Recommendations RecommendationsConfig `toml:"recommendations"`
	Themes          ThemesConfig          `toml:"themes"`
	Log             LogConfig             `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr            string `toml:"addr" validate:"required"`
	RequestTimeout  string `toml:"request_timeout"`  // e.g. "30s"
	ShutdownTimeout string `toml:"shutdown_timeout"` // e.g. "10s"

	// RateLimitPerMinute is per client IP; 0 disables limiting.
	RateLimitPerMinute int      `toml:"rate_limit_per_minute" validate:"gte=0"`
	AllowedOrigins     []string `toml:"allowed_origins"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path        string `toml:"path"` // empty = ~/.cardsynergy/cards.db
	AutoMigrate bool   `toml:"auto_migrate"`

	// BackupInterval schedules backups while serving; empty disables them.
	BackupInterval string `toml:"backup_interval"`
	BackupDir      string `toml:"backup_dir"` // empty = backups/ next to the database
}

// CacheConfig contains cache settings.
type CacheConfig struct {
	Backend   string `toml:"backend" validate:"oneof=sqlite redis"`
	RedisAddr string `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int    `toml:"redis_db" validate:"gte=0"`
	Prefix    string `toml:"prefix"`
	CardTTL   string `toml:"card_ttl"`   // e.g. "24h"
	SearchTTL string `toml:"search_ttl"` // e.g. "1h"

	// PurgeInterval is how often expired entries are removed while serving.
	PurgeInterval string `toml:"purge_interval"`
}

// LLMConfig contains theme classification provider settings.
type LLMConfig struct {
	Provider          string  `toml:"provider" validate:"oneof=ollama gemini none"`
	Model             string  `toml:"model"` // empty selects the provider default
	OllamaURL         string  `toml:"ollama_url" validate:"omitempty,url"`
	GeminiAPIKey      string  `toml:"gemini_api_key"`
	Temperature       float64 `toml:"temperature" validate:"gte=0,lte=2"`
	Timeout           string  `toml:"timeout"` // per classification
	RequestsPerMinute int     `toml:"requests_per_minute" validate:"gte=0"`
	FailureThreshold  uint32  `toml:"failure_threshold"`
	BreakerTimeout    string  `toml:"breaker_timeout"`
	AutoPullModel     bool    `toml:"auto_pull_model"`
}

// RecommendationsConfig contains scoring tunables. All but Workers apply live.
type RecommendationsConfig struct {
	PoolSize       int  `toml:"pool_size" validate:"gte=0"`
	DefaultLimit   int  `toml:"default_limit" validate:"gte=1,lte=20"`
	SearchPageSize int  `toml:"search_page_size" validate:"gte=1"`
	MaxPageSize    int  `toml:"max_page_size" validate:"gtefield=SearchPageSize"`
	Workers        int  `toml:"workers" validate:"gte=0"` // 0 = GOMAXPROCS
	FallbackToAPI  bool `toml:"fallback_to_api"`
}

// ThemesConfig contains theme lookup tunables.
type ThemesConfig struct {
	MinConfidence int `toml:"min_confidence" validate:"gte=25,lte=100"`
	CardLimit     int `toml:"card_limit" validate:"gte=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level     string `toml:"level" validate:"oneof=trace debug info warn error"`
	Format    string `toml:"format" validate:"oneof=json console"`
	Caller    bool   `toml:"caller"`
	Timestamp bool   `toml:"timestamp"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               "127.0.0.1:8080",
			RequestTimeout:     "30s",
			ShutdownTimeout:    "10s",
			RateLimitPerMinute: 120,
			AllowedOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			AutoMigrate: true,
		},
		Cache: CacheConfig{
			Backend:   "sqlite",
			Prefix:    "cardsynergy:",
			CardTTL:       "24h",
			SearchTTL:     "1h",
			PurgeInterval: "1h",
		},
		LLM: LLMConfig{
			Provider:          "ollama",
			OllamaURL:         "http://localhost:11434",
			Temperature:       0.2,
			Timeout:           "20s",
			RequestsPerMinute: 30,
			FailureThreshold:  5,
			BreakerTimeout:    "30s",
		},
		Recommendations: RecommendationsConfig{
			PoolSize:       40000,
			DefaultLimit:   15,
			SearchPageSize: 20,
			MaxPageSize:    100,
			FallbackToAPI:  true,
		},
		Themes: ThemesConfig{
			MinConfidence: 40,
			CardLimit:     60,
		},
		Log: LogConfig{
			Level:     "info",
			Format:    "console",
			Timestamp: true,
		},
	}
}

// Dir returns ~/.cardsynergy, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".cardsynergy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the path of the default configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the configuration at path, or the default path when path is
// empty. A missing file yields the defaults. Environment overrides are
// applied and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	config := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		// Keys absent from the file keep their defaults.
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Backend = "redis"
	}
	if v := os.Getenv(EnvGeminiKey); v != "" {
		c.LLM.GeminiAPIKey = v
	}
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	durations := map[string]string{
		"server.request_timeout":   c.Server.RequestTimeout,
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"cache.card_ttl":           c.Cache.CardTTL,
		"cache.search_ttl":         c.Cache.SearchTTL,
		"cache.purge_interval":     c.Cache.PurgeInterval,
		"database.backup_interval": c.Database.BackupInterval,
		"llm.timeout":              c.LLM.Timeout,
		"llm.breaker_timeout":      c.LLM.BreakerTimeout,
	}

	for key, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative: %s", key, value)
		}
	}

	if c.LLM.Provider == "gemini" && c.LLM.GeminiAPIKey == "" {
		return fmt.Errorf("llm.gemini_api_key (or %s) is required for the gemini provider", EnvGeminiKey)
	}
	return nil
}

// duration parses a validated duration string, using fallback when empty.
func duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || value == "" {
		return fallback
	}
	return d
}

// RequestTimeout returns the HTTP handler timeout.
func (c *Config) RequestTimeout() time.Duration {
	return duration(c.Server.RequestTimeout, 30*time.Second)
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	return duration(c.Server.ShutdownTimeout, 10*time.Second)
}

// CardTTL returns the card cache TTL.
func (c *Config) CardTTL() time.Duration {
	return duration(c.Cache.CardTTL, 24*time.Hour)
}

// SearchTTL returns the search cache TTL.
func (c *Config) SearchTTL() time.Duration {
	return duration(c.Cache.SearchTTL, time.Hour)
}

// PurgeInterval returns the cache purge period.
func (c *Config) PurgeInterval() time.Duration {
	return duration(c.Cache.PurgeInterval, time.Hour)
}

// BackupInterval returns the scheduled backup period. Zero disables backups.
func (c *Config) BackupInterval() time.Duration {
	return duration(c.Database.BackupInterval, 0)
}

// LLMTimeout returns the per-classification timeout.
func (c *Config) LLMTimeout() time.Duration {
	return duration(c.LLM.Timeout, 20*time.Second)
}

// BreakerTimeout returns how long the LLM breaker stays open.
func (c *Config) BreakerTimeout() time.Duration {
	return duration(c.LLM.BreakerTimeout, 30*time.Second)
}

// DatabasePath returns the SQLite path, defaulting to ~/.cardsynergy/cards.db.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cards.db"), nil
}

// Watch reloads the file at path whenever it changes and passes each valid
// configuration to onChange. Invalid files are logged and skipped. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	target := filepath.Clean(path)
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(100 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Config watcher error")
		case <-debounce:
			debounce = nil
			config, err := Load(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
				continue
			}
			log.Info().Str("path", path).Msg("Config reloaded")
			onChange(config)
		}
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.LLM.GeminiAPIKey != "" {
		out.LLM.GeminiAPIKey = strings.Repeat("*", 8)
	}
	return &out
}
