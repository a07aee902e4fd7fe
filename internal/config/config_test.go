package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:       AppConfig{Environment: "development"},
		Logger:    LoggerConfig{Level: "info"},
		Store:     StoreConfig{DataPath: "/some/path"},
		Listing:   ListingConfig{PageSize: 20, SearchPageSize: 200},
		Import:    ImportConfig{ChunkSize: 300},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 10},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Limits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty data path", func(c *Config) { c.Store.DataPath = "" }, "data path cannot be empty"},
		{"zero chunk", func(c *Config) { c.Import.ChunkSize = 0 }, "chunk size"},
		{"zero page", func(c *Config) { c.Listing.PageSize = 0 }, "page sizes"},
		{"negative retries", func(c *Config) { c.Cascade.RetryAttempts = -1 }, "retry attempts"},
		{"negative reconcile interval", func(c *Config) { c.Jobs.TagReconcileInterval = -time.Second }, "reconcile interval"},
		{"rate limit without burst", func(c *Config) { c.RateLimit.Burst = 0 }, "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := validConfig()
	cfg.RateLimit = RateLimitConfig{Enabled: false}
	assert.NoError(t, cfg.Validate(), "disabled rate limit needs no numbers")
}

func TestExpandDataPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"", filepath.Join(homeDir, "Orbit", "data")},
		{"~/my-data", filepath.Join(homeDir, "my-data")},
		{"/absolute/path/to/data", "/absolute/path/to/data"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := &Config{Store: StoreConfig{DataPath: tt.in}}
			require.NoError(t, cfg.expandDataPath())
			assert.Equal(t, tt.want, cfg.Store.DataPath)
		})
	}

	cfg := &Config{Store: StoreConfig{DataPath: "relative/path"}}
	require.NoError(t, cfg.expandDataPath())
	assert.True(t, filepath.IsAbs(cfg.Store.DataPath))
	assert.Equal(t, filepath.Join(cfg.Store.DataPath, "db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join(cfg.Store.DataPath, "backups"), cfg.BackupPath())
}

func TestGetConfigValue_Precedence(t *testing.T) {
	assert.Equal(t, "flag-value", getConfigValue("flag-value", "ENV_KEY", "default-value"))

	t.Setenv("TEST_ENV_KEY", "env-value")
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))

	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY", "default-value"))
}

func TestLoad_EnvFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := `# Test env file
ENV=staging
LOG_LEVEL=debug
IMPORT_CHUNK_SIZE=50
CORS_ORIGINS="https://a.example, https://b.example"
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	for _, k := range []string{"ENV", "LOG_LEVEL", "IMPORT_CHUNK_SIZE", "CORS_ORIGINS"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CASCADE_RETRY_BACKOFF", "10ms")
	t.Setenv("ADMIN_USER_IDS", "alice, ops")

	cfg, err := Load([]string{
		"-env-file", envFile,
		"-data-path", dir,
		"-log-level", "warn",
	})
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "warn", cfg.Logger.Level, "flag beats .env")
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 50, cfg.Import.ChunkSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 10*time.Millisecond, cfg.Cascade.RetryBackoff)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, dir, cfg.Store.DataPath)
	assert.Equal(t, []string{"alice", "ops"}, cfg.Auth.AdminUserIDs)
	assert.Zero(t, cfg.Jobs.TagReconcileInterval)
}

func TestLoad_ExistingEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_LEVEL=debug\n"), 0o600))

	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load([]string{"-env-file", envFile, "-data-path", dir})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logger.Level)
}

func TestLoad_InvalidInputs(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("SERVER_READ_TIMEOUT", "soon")
	_, err := Load([]string{"-env-file", filepath.Join(dir, "missing.env"), "-data-path", dir})
	assert.ErrorContains(t, err, "server_read_timeout")

	t.Setenv("SERVER_READ_TIMEOUT", "")
	t.Setenv("ACCESS_TOKEN_KEY", "not-hex")
	_, err = Load([]string{"-env-file", filepath.Join(dir, "missing.env"), "-data-path", dir})
	assert.ErrorContains(t, err, "ACCESS_TOKEN_KEY")

	_, err = Load([]string{"-no-such-flag"})
	assert.Error(t, err)
}
