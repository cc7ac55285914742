package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	lmserrors "github.com/jrsteele09/go-lms-client/internal/errors"
	"github.com/spf13/viper"
)

const (
	configName     = "lmsclient"
	configFileType = "yaml"
)

// envBindings maps configuration keys onto the environment variables that override them.
func envBindings() map[string]string {
	return map[string]string{
		"env":                   "ENV",
		"app_name":              "LMS_APP_NAME",
		"log_level":             "LMS_LOG_LEVEL",
		"api.base_url":          "LMS_API_BASE_URL",
		"api.timeout":           "LMS_API_TIMEOUT",
		"api.module":            "LMS_API_MODULE",
		"api.fallback_language": "LMS_FALLBACK_LANGUAGE",
		"api.login_path":        "LMS_LOGIN_PATH",
		"api.refresh_path":      "LMS_REFRESH_PATH",
		"api.breaker":           "LMS_API_BREAKER",
		"cache.disabled":        "LMS_CACHE_DISABLED",
		"cache.default_ttl":     "LMS_CACHE_TTL",
		"cache.exclude":         "LMS_CACHE_EXCLUDE",
		"store.backend":         "LMS_STORE_BACKEND",
		"store.dir":             "LMS_STORE_DIR",
		"store.redis_url":       "LMS_REDIS_URL",
	}
}

// Load reads lmsclient.yaml (from path, the working directory or $HOME/.lmsclient)
// when present, applies environment overrides and validates the result.
func Load(path string) (Settings, error) {
	v := viper.New()
	setDefaults(v, New())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.lmsclient")
		}
	}

	// Only the explicit bindings are read from the environment.
	for key, envVar := range envBindings() {
		if err := v.BindEnv(key, envVar); err != nil {
			return Settings{}, fmt.Errorf("[config Load] binding %s: %w", envVar, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !lmserrors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("[config Load] reading config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("[config Load] decoding config: %w", err)
	}
	settings.Env = strings.ToUpper(settings.Env)

	if err := Validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks the struct tags on Settings.
func Validate(settings Settings) error {
	if err := validator.New().Struct(settings); err != nil {
		return fmt.Errorf("[config Validate] invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("env", d.Env)
	v.SetDefault("app_name", d.AppName)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.module", d.API.Module)
	v.SetDefault("api.fallback_language", d.API.FallbackLanguage)
	v.SetDefault("api.login_path", d.API.LoginPath)
	v.SetDefault("api.refresh_path", d.API.RefreshPath)
	v.SetDefault("api.breaker", d.API.Breaker)
	v.SetDefault("cache.disabled", d.Cache.Disabled)
	v.SetDefault("cache.default_ttl", d.Cache.DefaultTTL)
	v.SetDefault("cache.exclude", d.Cache.Exclude)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("store.redis_url", d.Store.RedisURL)
}
