// Package api is the entry point of the client: every data call goes through
// Handler.Call, which shapes the request, attaches or refreshes the session token,
// consults the response cache and returns either data or an *apierror.Error.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-lms-client/apierror"
	"github.com/jrsteele09/go-lms-client/request"
	"github.com/jrsteele09/go-lms-client/response"
	"github.com/jrsteele09/go-lms-client/session"
	"github.com/jrsteele09/go-lms-client/store"
	"github.com/jrsteele09/go-lms-client/transport"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Config is the configuration the handler is built from.
type Config interface {
	request.Config
	GetEnv() string
	GetBaseURL() string
	GetTimeout() time.Duration
	GetLoginPath() string
	GetRefreshPath() string
	GetBreakerEnabled() bool
	GetDefaultCacheTTL() time.Duration
}

type Handler struct {
	guard      *session.Guard
	sessions   *session.StoreRepo
	normalizer *request.Normalizer
	transport  *transport.Transport
	classifier *response.Classifier
	mocker     Mocker
	loginPath  string
	logger     zerolog.Logger
}

type handlerOptions struct {
	redirector session.Redirector
	refresher  session.Refresher
	locale     request.LocaleFunc
	mocker     Mocker
	client     *http.Client
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

// HandlerOption defines a function type to modify how the Handler is built.
type HandlerOption func(*handlerOptions)

// WithRedirector sets the login redirect collaborator
func WithRedirector(r session.Redirector) HandlerOption {
	return func(o *handlerOptions) {
		o.redirector = r
	}
}

// WithRefresher replaces the HTTP refresh call
func WithRefresher(r session.Refresher) HandlerOption {
	return func(o *handlerOptions) {
		o.refresher = r
	}
}

func WithLocale(locale request.LocaleFunc) HandlerOption {
	return func(o *handlerOptions) {
		o.locale = locale
	}
}

func WithMocker(m Mocker) HandlerOption {
	return func(o *handlerOptions) {
		o.mocker = m
	}
}

func WithHTTPClient(client *http.Client) HandlerOption {
	return func(o *handlerOptions) {
		o.client = client
	}
}

// WithNowFunc sets the clock used for token expiry (primarily for testing)
func WithNowFunc(now func() time.Time) HandlerOption {
	return func(o *handlerOptions) {
		o.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) HandlerOption {
	return func(o *handlerOptions) {
		o.logger = logger
	}
}

// New builds a Handler. sessions holds the session document and must be durable for
// logins to survive restarts; cache holds responses and may be nil to disable caching.
func New(cfg Config, sessions store.Store, cache store.Store, options ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("[api New] session store is required")
	}

	o := handlerOptions{logger: log.Logger}
	for _, opt := range options {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: cfg.GetTimeout()}
	}

	transportOpts := []transport.TransportOption{
		transport.WithHTTPClient(o.client),
		transport.WithColour(cfg.GetEnv() == "DEV"),
		transport.WithLogger(o.logger),
	}
	if cache != nil {
		transportOpts = append(transportOpts, transport.WithCache(cache, cfg.GetDefaultCacheTTL()))
	}
	if cfg.GetBreakerEnabled() {
		transportOpts = append(transportOpts, transport.WithBreaker(transport.NewBreaker("api")))
	}
	tr := transport.New(cfg.GetBaseURL(), transportOpts...)

	if o.refresher == nil {
		o.refresher = session.NewHTTPRefresher(cfg.GetBaseURL(), cfg.GetRefreshPath(), tr.Client())
	}

	repo := session.NewStoreRepo(sessions)
	guardOpts := []session.GuardOption{session.WithLogger(o.logger)}
	if o.redirector != nil {
		guardOpts = append(guardOpts, session.WithRedirector(o.redirector))
	}
	if o.nowFunc != nil {
		guardOpts = append(guardOpts, session.WithNowFunc(o.nowFunc))
	}
	guard, err := session.NewGuard(repo, o.refresher, guardOpts...)
	if err != nil {
		return nil, fmt.Errorf("[api New] %w", err)
	}

	return &Handler{
		guard:    guard,
		sessions: repo,
		normalizer: request.NewNormalizer(cfg,
			request.WithLocale(o.locale),
			request.WithImpersonation(repo),
			request.WithLogger(o.logger),
		),
		transport:  tr,
		classifier: response.NewClassifier(guard, response.WithLogger(o.logger)),
		mocker:     o.mocker,
		loginPath:  cfg.GetLoginPath(),
		logger:     o.logger,
	}, nil
}

// Call runs one API call. Every failure is returned as an *apierror.Error.
func (h *Handler) Call(ctx context.Context, call Call) (any, error) {
	result, err := h.call(ctx, call)
	if err != nil {
		return nil, apierror.Normalize(err)
	}
	return result, nil
}

func (h *Handler) call(ctx context.Context, call Call) (any, error) {
	if h.mocker != nil && !call.Options.SkipMocker {
		result, handled, err := h.mocker.Mock(ctx, call)
		if handled {
			h.logger.Debug().Str("method", call.Method).Str("path", call.Path).Msg("served by mocker")
			return result, err
		}
	}

	prepared, err := h.normalizer.Prepare(ctx, call.Method, call.Path, call.Input, request.Options{
		Language: call.Options.Language,
		Cache:    call.Options.Cache.Enabled,
		Flatten:  call.Options.Flatten,
	})
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}

	header := http.Header{}
	if prepared.ContentType != "" {
		header.Set("Content-Type", prepared.ContentType)
	}
	if call.RequiresToken {
		accessToken, err := h.guard.Authorize(ctx, call.Path, call.Options.Optional)
		if err != nil {
			return nil, err
		}
		if accessToken != "" {
			tok := &oauth2.Token{AccessToken: accessToken}
			header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
		}
	}

	resp := h.transport.Do(ctx, &transport.Request{
		Method:    prepared.Method,
		Path:      prepared.Path,
		Query:     prepared.Query,
		Header:    header,
		Body:      prepared.Body,
		Cacheable: prepared.Cacheable,
		TTL:       call.Options.Cache.TTL,
	})

	return h.classifier.Classify(resp, response.Options{
		Path:        call.Path,
		Optional:    call.Options.Optional,
		Raw:         call.Options.Raw,
		Blob:        call.Options.ResponseType == ResponseTypeBlob,
		PostProcess: call.Options.PostProcess,
	})
}

// Login posts credentials to the login endpoint and stores the returned session.
func (h *Handler) Login(ctx context.Context, credentials any) (*session.Session, error) {
	grant, err := Decode[session.TokenGrant](h.Call(ctx, Call{
		Method:  http.MethodPost,
		Path:    h.loginPath,
		Input:   credentials,
		Options: Options{SkipMocker: true},
	}))
	if err != nil {
		return nil, err
	}

	s, err := h.guard.Login(ctx, &grant, "", "")
	if err != nil {
		return nil, apierror.Normalize(err)
	}
	return s, nil
}

// Logout clears the session, the impersonated group and the whole response cache.
func (h *Handler) Logout(ctx context.Context) error {
	err := errors.Join(h.guard.Logout(ctx), h.transport.ClearCache(ctx))
	if err != nil {
		return apierror.Normalize(pkgerrors.WithStack(err))
	}
	return nil
}

// ClearCache empties the response cache.
func (h *Handler) ClearCache(ctx context.Context) error {
	if err := h.transport.ClearCache(ctx); err != nil {
		return apierror.Normalize(pkgerrors.WithStack(err))
	}
	return nil
}

// Impersonate makes subsequent calls act on behalf of group. An empty group stops
// impersonating.
func (h *Handler) Impersonate(ctx context.Context, group string) error {
	if err := h.sessions.SetImpersonatedGroup(ctx, group); err != nil {
		return apierror.Normalize(pkgerrors.WithStack(err))
	}
	h.logger.Info().Str("group", group).Msg("impersonation changed")
	return nil
}

// ImpersonatedGroup returns the group being impersonated, or "".
func (h *Handler) ImpersonatedGroup(ctx context.Context) (string, error) {
	group, err := h.sessions.ImpersonatedGroup(ctx)
	if err != nil {
		return "", apierror.Normalize(pkgerrors.WithStack(err))
	}
	return group, nil
}

// Session returns the stored session, or nil when logged out.
func (h *Handler) Session(ctx context.Context) (*session.Session, error) {
	s, err := h.guard.Current(ctx)
	if err != nil {
		return nil, apierror.Normalize(pkgerrors.WithStack(err))
	}
	return s, nil
}

// TokenSource exposes the session to oauth2-aware HTTP clients.
func (h *Handler) TokenSource(ctx context.Context) oauth2.TokenSource {
	return h.guard.TokenSource(ctx)
}

// Wait blocks until pending cache writes have finished.
func (h *Handler) Wait() {
	h.transport.Wait()
}
