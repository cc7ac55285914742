package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-lms-client/apierror"
	lmserrors "github.com/jrsteele09/go-lms-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// refreshKey is the only key used on the pending-refresh group: there is one session
// per Guard, so there is at most one refresh to share.
const refreshKey = "refresh"

// Guard owns the session's token lifecycle. It decides per call whether a usable
// access token exists, refreshes an expired one at most once no matter how many
// callers are waiting, and sends the user to login when no session can be had.
type Guard struct {
	repo       Repo
	refresher  Refresher
	redirector Redirector
	pending    singleflight.Group
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

// WithNowFunc sets the local clock (primarily for testing)
func WithNowFunc(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.nowFunc = now
	}
}

// WithRedirector sets the login redirect collaborator
func WithRedirector(r Redirector) GuardOption {
	return func(g *Guard) {
		g.redirector = r
	}
}

func WithLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard creates a Guard. Without WithRedirector, login redirects are dropped.
func NewGuard(repo Repo, refresher Refresher, options ...GuardOption) (*Guard, error) {
	if repo == nil {
		return nil, errors.New("[NewGuard] session repo is required")
	}
	if refresher == nil {
		return nil, errors.New("[NewGuard] refresher is required")
	}

	g := &Guard{
		repo:       repo,
		refresher:  refresher,
		redirector: nopRedirector{},
		nowFunc:    time.Now,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Authorize returns the access token to attach to a call on path. For optional calls
// a missing or unusable session yields "" and no error, and the login redirect is
// never triggered.
func (g *Guard) Authorize(ctx context.Context, path string, optional bool) (string, error) {
	s, err := g.authorize(ctx, path, optional)
	if err != nil || s == nil {
		return "", err
	}
	return s.AccessToken, nil
}

func (g *Guard) authorize(ctx context.Context, path string, optional bool) (*Session, error) {
	s, err := g.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("[Guard Authorize] loading session: %w", err)
	}
	if !s.Complete() {
		return g.unauthenticated(path, optional, "no session")
	}

	elapsed := s.Elapsed(g.nowFunc())
	switch {
	case elapsed > s.RefreshLifetime:
		return g.unauthenticated(path, optional, "refresh token expired")

	case elapsed > s.AccessLifetime:
		g.logger.Debug().Str("path", path).Dur("elapsed", elapsed).Msg("access token expired, refreshing")
		refreshed, err := g.refresh(ctx)
		if err == nil {
			return refreshed, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if optional {
			g.logger.Debug().Err(err).Str("path", path).Msg("optional call continuing without a token")
			return nil, nil
		}
		g.redirector.Redirect(false, path)
		return nil, err

	default:
		return s, nil
	}
}

func (g *Guard) unauthenticated(path string, optional bool, reason string) (*Session, error) {
	if optional {
		return nil, nil
	}
	g.logger.Debug().Str("path", path).Str("reason", reason).Msg("login required")
	g.redirector.Redirect(false, path)
	return nil, apierror.New(apierror.KindUnauthenticated, "", "").
		WithCause(lmserrors.Wrapf(lmserrors.ErrUnauthenticated, "[Guard Authorize] %s", reason))
}

// refresh joins the in-flight refresh or starts one. The refresh runs detached from
// ctx so that one caller giving up does not fail the others; each caller still stops
// waiting when its own ctx ends.
func (g *Guard) refresh(ctx context.Context) (*Session, error) {
	ch := g.pending.DoChan(refreshKey, func() (any, error) {
		return g.doRefresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

func (g *Guard) doRefresh(ctx context.Context) (*Session, error) {
	current, err := g.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("[Guard refresh] loading session: %w", err)
	}
	if !current.Complete() {
		return nil, apierror.New(apierror.KindUnauthenticated, "", "").
			WithCause(lmserrors.Wrapf(lmserrors.ErrUnauthenticated, "[Guard refresh] session cleared"))
	}

	// A refresh that settled just before this one started has already stored fresh
	// tokens; the old refresh token may no longer be valid.
	if current.Elapsed(g.nowFunc()) <= current.AccessLifetime {
		return current, nil
	}

	grant, err := g.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		g.logger.Error().Err(err).Msg("token refresh failed, clearing session")
		g.clear(ctx)
		return nil, apierror.New(apierror.KindRefreshFailure, "", "").
			WithCause(lmserrors.Wrapf(lmserrors.ErrRefreshFailed, "[Guard refresh] %v", err))
	}
	if !grant.Complete() {
		g.logger.Error().Msg("token refresh returned an incomplete grant, clearing session")
		g.clear(ctx)
		return nil, apierror.New(apierror.KindRefreshFailure, "", "").
			WithCause(lmserrors.Wrapf(lmserrors.ErrIncompleteGrant, "[Guard refresh]"))
	}

	next := newSession(grant, current, g.nowFunc())
	if err := g.repo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("[Guard refresh] saving session: %w", err)
	}
	g.logger.Info().Time("expires", next.AccessExpiry()).Msg("access token refreshed")
	return next, nil
}

func (g *Guard) clear(ctx context.Context) {
	if err := g.repo.Clear(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("failed to clear session")
	}
}

// Redirect forwards to the login redirect collaborator. The response classifier uses
// it on 401s.
func (g *Guard) Redirect(optional bool, failingPath string) {
	if optional {
		return
	}
	g.redirector.Redirect(false, failingPath)
}

// Login stores the session described by a login grant. Empty role and lang fall back
// to the grant's values and then to the token's role claim.
func (g *Guard) Login(ctx context.Context, grant *TokenGrant, role Role, lang string) (*Session, error) {
	if !grant.Complete() {
		return nil, apierror.New(apierror.KindContract, "", "").
			WithCause(lmserrors.Wrapf(lmserrors.ErrIncompleteGrant, "[Guard Login]"))
	}

	s := newSession(grant, &Session{Role: role, Lang: lang}, g.nowFunc())
	if err := g.repo.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("[Guard Login] saving session: %w", err)
	}
	g.logger.Info().Str("role", string(s.Role)).Msg("logged in")
	return s, nil
}

// Logout clears the session.
func (g *Guard) Logout(ctx context.Context) error {
	if err := g.repo.Clear(ctx); err != nil {
		return fmt.Errorf("[Guard Logout] %w", err)
	}
	g.logger.Info().Msg("logged out")
	return nil
}

// Current returns the stored session, or nil.
func (g *Guard) Current(ctx context.Context) (*Session, error) {
	return g.repo.Load(ctx)
}

// TokenSource exposes the session as an oauth2.TokenSource, so an oauth2.Transport
// can authenticate ad-hoc requests with the same refresh rules.
func (g *Guard) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &guardTokenSource{ctx: ctx, guard: g}
}

type guardTokenSource struct {
	ctx   context.Context
	guard *Guard
}

func (ts *guardTokenSource) Token() (*oauth2.Token, error) {
	s, err := ts.guard.authorize(ts.ctx, "", false)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.AccessExpiry(),
	}, nil
}
