package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config interface {
	EnvConfig
	APIConfig
	CacheConfig
	StoreConfig
}

type EnvConfig interface {
	GetEnv() string
	GetAppName() string
	GetLogLevel() string
}

type APIConfig interface {
	GetBaseURL() string
	GetTimeout() time.Duration
	GetModule() string
	GetFallbackLanguage() string
	GetLoginPath() string
	GetRefreshPath() string
	GetBreakerEnabled() bool
}

type CacheConfig interface {
	GetCacheDisabled() bool
	GetDefaultCacheTTL() time.Duration
	GetCacheExclusions() []string
}

type StoreConfig interface {
	GetStoreBackend() string
	GetStoreDir() string
	GetRedisURL() string
}

const (
	StoreBackendMemory = "memory"
	StoreBackendFile   = "file"
	StoreBackendRedis  = "redis"
)

// Settings is the decoded configuration. It satisfies Config directly so tests can
// build one by hand without going through viper.
type Settings struct {
	Env      string        `mapstructure:"env" validate:"required,oneof=DEV TEST QA PROD"`
	AppName  string        `mapstructure:"app_name" validate:"required"`
	LogLevel string        `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	API      APISettings   `mapstructure:"api" validate:"required"`
	Cache    CacheSettings `mapstructure:"cache"`
	Store    StoreSettings `mapstructure:"store" validate:"required"`
}

type APISettings struct {
	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"min=0"`
	Module           string        `mapstructure:"module"`
	FallbackLanguage string        `mapstructure:"fallback_language" validate:"required"`
	LoginPath        string        `mapstructure:"login_path" validate:"required,startswith=/"`
	RefreshPath      string        `mapstructure:"refresh_path" validate:"required,startswith=/"`
	Breaker          bool          `mapstructure:"breaker"`
}

type CacheSettings struct {
	Disabled   bool          `mapstructure:"disabled"`
	DefaultTTL time.Duration `mapstructure:"default_ttl" validate:"min=0"`
	Exclude    []string      `mapstructure:"exclude"`
}

type StoreSettings struct {
	Backend  string `mapstructure:"backend" validate:"required,oneof=memory file redis"`
	Dir      string `mapstructure:"dir" validate:"required_if=Backend file"`
	RedisURL string `mapstructure:"redis_url" validate:"required_if=Backend redis"`
}

var _ Config = Settings{}

// New returns the built-in defaults.
func New() Settings {
	return Settings{
		Env:      "DEV",
		AppName:  "Essay Client",
		LogLevel: "info",
		API: APISettings{
			BaseURL:          "http://localhost:8080",
			Timeout:          30 * time.Second,
			Module:           "essay",
			FallbackLanguage: "en",
			LoginPath:        "/auth/login",
			RefreshPath:      "/auth/refresh",
		},
		Cache: CacheSettings{
			DefaultTTL: 5 * time.Minute,
		},
		Store: StoreSettings{
			Backend: StoreBackendFile,
			Dir:     defaultStoreDir(),
		},
	}
}

func (s Settings) GetEnv() string      { return s.Env }
func (s Settings) GetAppName() string  { return s.AppName }
func (s Settings) GetLogLevel() string { return s.LogLevel }

func (s Settings) GetBaseURL() string          { return s.API.BaseURL }
func (s Settings) GetTimeout() time.Duration   { return s.API.Timeout }
func (s Settings) GetModule() string           { return s.API.Module }
func (s Settings) GetFallbackLanguage() string { return s.API.FallbackLanguage }
func (s Settings) GetLoginPath() string        { return s.API.LoginPath }
func (s Settings) GetRefreshPath() string      { return s.API.RefreshPath }
func (s Settings) GetBreakerEnabled() bool     { return s.API.Breaker }

func (s Settings) GetCacheDisabled() bool            { return s.Cache.Disabled }
func (s Settings) GetDefaultCacheTTL() time.Duration { return s.Cache.DefaultTTL }
func (s Settings) GetCacheExclusions() []string      { return s.Cache.Exclude }

func (s Settings) GetStoreBackend() string { return s.Store.Backend }
func (s Settings) GetStoreDir() string     { return s.Store.Dir }
func (s Settings) GetRedisURL() string     { return s.Store.RedisURL }

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lmsclient")
	}
	return filepath.Join(home, ".lmsclient", "store")
}
