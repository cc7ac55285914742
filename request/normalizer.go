// Package request turns a call's logical payload into wire-ready data: language and
// tenant tagging, cache flagging, impersonation, flattening and the choice between
// query, JSON and multipart encodings.
package request

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Payload keys added to outgoing calls.
const (
	KeyLang        = "lang"
	KeyModule      = "module"
	KeyCache       = "_cache"
	KeyImpersonate = "impersonate_group"
)

// Config is the part of the client configuration the normalizer reads.
type Config interface {
	GetModule() string
	GetFallbackLanguage() string
	GetCacheDisabled() bool
	GetCacheExclusions() []string
}

// LocaleFunc returns the active UI locale, or "" when none is set.
type LocaleFunc func() string

// ImpersonationSource provides the group the user is impersonating, or "".
type ImpersonationSource interface {
	ImpersonatedGroup(ctx context.Context) (string, error)
}

// Options are the per-call settings the normalizer acts on.
type Options struct {
	Language string // Overrides the active locale
	Cache    bool   // Caller asked for a cached response
	Flatten  bool   // Rewrite nested values into bracket-indexed keys
}

// Prepared is a call ready for the transport.
type Prepared struct {
	Method      string
	Path        string
	Payload     map[string]any // Final payload, after augmentation and flattening
	Query       url.Values     // Set for GET and DELETE
	Body        []byte         // Set for other methods
	ContentType string         // Set with Body
	Multipart   bool
	Cacheable   bool
}

type Normalizer struct {
	module        string
	fallbackLang  string
	cacheDisabled bool
	exclusions    []string
	locale        LocaleFunc
	impersonation ImpersonationSource
	logger        zerolog.Logger
}

// NormalizerOption defines a function type to modify the Normalizer instance.
type NormalizerOption func(*Normalizer)

func WithLocale(locale LocaleFunc) NormalizerOption {
	return func(n *Normalizer) {
		n.locale = locale
	}
}

// WithImpersonation sets where the impersonated group is read from
func WithImpersonation(source ImpersonationSource) NormalizerOption {
	return func(n *Normalizer) {
		n.impersonation = source
	}
}

func WithLogger(logger zerolog.Logger) NormalizerOption {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

func NewNormalizer(cfg Config, options ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		module:        cfg.GetModule(),
		fallbackLang:  cfg.GetFallbackLanguage(),
		cacheDisabled: cfg.GetCacheDisabled(),
		exclusions:    cfg.GetCacheExclusions(),
		logger:        log.Logger,
	}
	for _, opt := range options {
		opt(n)
	}
	return n
}

// Prepare shapes input for a call to method and path. It never rejects a payload;
// only encoding failures are returned.
func (n *Normalizer) Prepare(ctx context.Context, method, callPath string, input any, opts Options) (*Prepared, error) {
	method = strings.ToUpper(method)
	payload, err := ToPayload(method, input)
	if err != nil {
		return nil, err
	}

	n.augment(payload, opts.Language)
	if err := n.impersonate(ctx, payload); err != nil {
		return nil, err
	}

	// Uploads are neither cached nor cache-flagged.
	p := &Prepared{Method: method, Path: callPath}
	p.Multipart = !IsQueryMethod(method) && HasFile(payload)
	if opts.Cache && !p.Multipart && n.Cacheable(callPath) {
		payload[KeyCache] = 1
		p.Cacheable = true
	}

	if opts.Flatten {
		payload = Flatten(payload)
	}
	p.Payload = payload

	switch {
	case IsQueryMethod(method):
		if p.Query, err = EncodeQuery(payload); err != nil {
			return nil, err
		}
	case p.Multipart:
		if p.Body, p.ContentType, err = EncodeMultipart(payload); err != nil {
			return nil, err
		}
	default:
		if p.Body, err = EncodeJSON(payload); err != nil {
			return nil, err
		}
		p.ContentType = "application/json"
	}
	return p, nil
}

// augment sets the language and tenant tags. An explicit language wins, then a lang
// already in the payload, then the active locale, then the fallback.
func (n *Normalizer) augment(payload map[string]any, override string) {
	switch {
	case override != "":
		payload[KeyLang] = override
	case payload[KeyLang] != nil && payload[KeyLang] != "":
		// keep the caller's value
	default:
		lang := ""
		if n.locale != nil {
			lang = n.locale()
		}
		if lang == "" {
			lang = n.fallbackLang
		}
		payload[KeyLang] = lang
	}

	if _, ok := payload[KeyModule]; !ok && n.module != "" {
		payload[KeyModule] = n.module
	}
}

func (n *Normalizer) impersonate(ctx context.Context, payload map[string]any) error {
	if n.impersonation == nil {
		return nil
	}
	group, err := n.impersonation.ImpersonatedGroup(ctx)
	if err != nil {
		return fmt.Errorf("[Normalizer Prepare] impersonation: %w", err)
	}
	if group != "" {
		payload[KeyImpersonate] = group
	}
	return nil
}

// Cacheable reports whether a call to callPath may use the response cache. The global
// disable flag overrides everything. Exclusion patterns ending in "*" match by prefix;
// others use path.Match.
func (n *Normalizer) Cacheable(callPath string) bool {
	if n.cacheDisabled {
		return false
	}
	for _, pattern := range n.exclusions {
		if excluded(pattern, callPath) {
			n.logger.Debug().Str("path", callPath).Str("pattern", pattern).Msg("path excluded from cache")
			return false
		}
	}
	return true
}

func excluded(pattern, callPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.ContainsAny(prefix, "*?[") {
		return strings.HasPrefix(callPath, prefix)
	}
	matched, err := path.Match(pattern, callPath)
	return err == nil && matched
}
