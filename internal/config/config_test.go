package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-lms-client/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lmsclient.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestNew_DefaultsAreValid tests that the built-in defaults pass validation
func TestNew_DefaultsAreValid(t *testing.T) {
	require.NoError(t, config.Validate(config.New()))
}

// TestLoad_File tests that file values override defaults
func TestLoad_File(t *testing.T) {
	path := writeConfigFile(t, `
env: test
api:
  base_url: https://api.essays.example.com
  module: essay-pro
cache:
  default_ttl: 90s
  exclude:
    - /essays/*/drafts
    - /auth/*
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "TEST", cfg.GetEnv())
	require.Equal(t, "https://api.essays.example.com", cfg.GetBaseURL())
	require.Equal(t, "essay-pro", cfg.GetModule())
	require.Equal(t, 90*time.Second, cfg.GetDefaultCacheTTL())
	require.Equal(t, []string{"/essays/*/drafts", "/auth/*"}, cfg.GetCacheExclusions())
	require.Equal(t, "/auth/refresh", cfg.GetRefreshPath(), "unset keys keep their defaults")
}

// TestLoad_EnvOverride tests that environment variables win over the file
func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, "api:\n  base_url: https://file.example.com\n")
	t.Setenv("LMS_API_BASE_URL", "https://env.example.com")
	t.Setenv("LMS_CACHE_DISABLED", "true")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com", cfg.GetBaseURL())
	require.True(t, cfg.GetCacheDisabled())
}

// TestLoad_RedisRequiresURL tests that selecting redis without a URL is rejected
func TestLoad_RedisRequiresURL(t *testing.T) {
	path := writeConfigFile(t, "store:\n  backend: redis\n")

	_, err := config.Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid configuration")
}

// TestLoad_MissingExplicitFile tests that an explicit path must exist
func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestLoad_StoreFromEnv tests that the store backend can be picked from the environment
func TestLoad_StoreFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LMS_STORE_BACKEND", "memory")
	t.Setenv("LMS_STORE_DIR", dir)
	t.Setenv("LMS_STORE", "ignored")

	cfg, err := config.Load(writeConfigFile(t, "env: dev\n"))
	require.NoError(t, err)
	require.Equal(t, config.StoreBackendMemory, cfg.GetStoreBackend())
	require.Equal(t, dir, cfg.GetStoreDir())
}

// TestLoad_StoreFromEnvWithoutFile tests env-only loading when no config file exists
func TestLoad_StoreFromEnvWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LMS_STORE_BACKEND", "redis")
	t.Setenv("LMS_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.StoreBackendRedis, cfg.GetStoreBackend())
	require.Equal(t, "redis://localhost:6379/0", cfg.GetRedisURL())
}
