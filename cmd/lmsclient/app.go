package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-lms-client/api"
	"github.com/jrsteele09/go-lms-client/internal/config"
	"github.com/jrsteele09/go-lms-client/session"
	"github.com/jrsteele09/go-lms-client/store"
	"github.com/jrsteele09/go-lms-client/store/filestore"
	"github.com/jrsteele09/go-lms-client/store/memstore"
	"github.com/jrsteele09/go-lms-client/store/redisstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app is what every command runs against.
type app struct {
	cfg     config.Settings
	handler *api.Handler
	close   func() error
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)

	sessions, cache, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redirect := session.RedirectFunc(func(failingPath string) {
		fmt.Fprintf(os.Stderr, "login required for %s: run `lmsclient login`\n", failingPath)
	})
	h, err := api.New(cfg, sessions, cache,
		api.WithRedirector(redirect),
		api.WithLocale(localeFromEnv),
	)
	if err != nil {
		_ = closeStores()
		return nil, err
	}
	return &app{cfg: cfg, handler: h, close: closeStores}, nil
}

// Close waits for pending cache writes and releases the stores.
func (a *app) Close() error {
	a.handler.Wait()
	return a.close()
}

func openStores(ctx context.Context, cfg config.StoreConfig) (sessions, cache store.Store, closeFn func() error, err error) {
	noop := func() error { return nil }

	switch cfg.GetStoreBackend() {
	case config.StoreBackendMemory:
		return memstore.New(), memstore.New(), noop, nil

	case config.StoreBackendRedis:
		client, err := redisstore.Connect(ctx, cfg.GetRedisURL())
		if err != nil {
			return nil, nil, nil, err
		}
		return redisstore.New(client, store.NamespaceSession), redisstore.New(client, store.NamespaceCache), client.Close, nil

	default:
		sessions, err := filestore.New(cfg.GetStoreDir(), store.NamespaceSession)
		if err != nil {
			return nil, nil, nil, err
		}
		cache, err := filestore.New(cfg.GetStoreDir(), store.NamespaceCache)
		if err != nil {
			return nil, nil, nil, err
		}
		return sessions, cache, noop, nil
	}
}

func setupLogging(cfg config.EnvConfig) {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil || cfg.GetLogLevel() == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// localeFromEnv reads the POSIX locale, so LANG=fr_FR.UTF-8 yields "fr".
func localeFromEnv() string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(name)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		v, _, _ = strings.Cut(v, ".")
		v, _, _ = strings.Cut(v, "_")
		return strings.ToLower(v)
	}
	return ""
}
