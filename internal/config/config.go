// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/orbitapp/orbit-server/internal/auth"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Store     StoreConfig
	Server    ServerConfig
	Auth      AuthConfig
	Listing   ListingConfig
	Import    ImportConfig
	Cascade   CascadeConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StoreConfig holds document store configuration.
type StoreConfig struct {
	// DataPath holds the Badger database and the auth key.
	DataPath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s); streams extend their own deadline
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string      // Allowed origins (default: none)
}

// AuthConfig holds token verification configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key shared with the identity provider (32 bytes).
	// Set from <data-path>/auth.key at startup when not configured.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration
	// AdminUserIDs may run maintenance endpoints such as tag reconcile.
	AdminUserIDs []string
}

// ListingConfig sizes listing pages.
type ListingConfig struct {
	PageSize       int
	SearchPageSize int
}

// ImportConfig holds bulk import settings.
type ImportConfig struct {
	ChunkSize      int   // rows per atomic commit (default: 300)
	MaxUploadBytes int64 // largest accepted document (default: 10 MB)
}

// CascadeConfig holds the retry policy for cascade deletes.
type CascadeConfig struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	MaxBackoff    time.Duration
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

// JobsConfig holds background job schedules.
type JobsConfig struct {
	// TagReconcileInterval runs a usage-count reconcile periodically. Zero disables it.
	TagReconcileInterval time.Duration
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("orbit", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the database and auth key")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed origins")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (e.g., 15m)")

	importChunk := fs.String("import-chunk-size", "", "Rows per import commit (default: 300)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine. Existing environment variables win over the file.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "")),
		},
		Listing: ListingConfig{
			PageSize:       getIntConfigValue("", "LISTING_PAGE_SIZE", 20),
			SearchPageSize: getIntConfigValue("", "LISTING_SEARCH_PAGE_SIZE", 200),
		},
		Import: ImportConfig{
			ChunkSize:      getIntConfigValue(*importChunk, "IMPORT_CHUNK_SIZE", 300),
			MaxUploadBytes: int64(getIntConfigValue("", "IMPORT_MAX_UPLOAD_BYTES", 10<<20)),
		},
		Cascade: CascadeConfig{
			RetryAttempts: getIntConfigValue("", "CASCADE_RETRY_ATTEMPTS", 2),
		},
		Auth: AuthConfig{
			AdminUserIDs: splitList(getConfigValue("", "ADMIN_USER_IDS", "")),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolConfigValue("", "RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getIntConfigValue("", "RATE_LIMIT_PER_MINUTE", 300),
			Burst:             getIntConfigValue("", "RATE_LIMIT_BURST", 100),
		},
	}

	if keyHex := os.Getenv("ACCESS_TOKEN_KEY"); keyHex != "" {
		key, err := auth.ParseKey(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid ACCESS_TOKEN_KEY: %w", err)
		}
		cfg.Auth.AccessTokenKey = key
	}

	durations := []struct {
		dst  *time.Duration
		flag string
		env  string
		def  string
	}{
		{&cfg.Auth.AccessTokenDuration, *accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Cascade.RetryBackoff, "", "CASCADE_RETRY_BACKOFF", "50ms"},
		{&cfg.Cascade.MaxBackoff, "", "CASCADE_MAX_BACKOFF", "1s"},
		{&cfg.Jobs.TagReconcileInterval, "", "TAG_RECONCILE_INTERVAL", "0s"},
	}
	for _, d := range durations {
		s := getConfigValue(d.flag, d.env, d.def)
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.env), s, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Store.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Import.ChunkSize <= 0 {
		return fmt.Errorf("import chunk size must be positive, got %d", c.Import.ChunkSize)
	}
	if c.Listing.PageSize <= 0 || c.Listing.SearchPageSize <= 0 {
		return errors.New("listing page sizes must be positive")
	}
	if c.Cascade.RetryAttempts < 0 {
		return errors.New("cascade retry attempts cannot be negative")
	}
	if c.Jobs.TagReconcileInterval < 0 {
		return errors.New("tag reconcile interval cannot be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("rate limit requires positive requests per minute and burst")
	}

	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Orbit", "data")

	expanded, err := expandPath(c.Store.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Store.DataPath = expanded
	return nil
}

// DatabasePath is the Badger directory under the data path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Store.DataPath, "db")
}

// BackupPath is where orbitctl keeps backup archives.
func (c *Config) BackupPath() string {
	return filepath.Join(c.Store.DataPath, "backups")
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
