package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-lms-client/store"
	"github.com/rs/zerolog/log"
)

const (
	sessionKey     = "current"
	impersonateKey = "impersonate_group"
)

// Repo persists the session. Load returns nil, nil when there is no session.
type Repo interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}

var _ Repo = (*StoreRepo)(nil)

// StoreRepo keeps the session, and the impersonated group, in the session namespace
// of a durable store.
type StoreRepo struct {
	store store.Store
}

func NewStoreRepo(s store.Store) *StoreRepo {
	return &StoreRepo{store: s}
}

func (r *StoreRepo) Load(ctx context.Context) (*Session, error) {
	data, found, err := r.store.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("[StoreRepo Load] %w", err)
	}
	if !found {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable session")
		return nil, nil
	}
	return &s, nil
}

func (r *StoreRepo) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("[StoreRepo Save] marshal: %w", err)
	}
	if err := r.store.Set(ctx, sessionKey, data, 0); err != nil {
		return fmt.Errorf("[StoreRepo Save] %w", err)
	}
	return nil
}

// Clear empties the whole session namespace, impersonation included.
func (r *StoreRepo) Clear(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("[StoreRepo Clear] %w", err)
	}
	return nil
}

// ImpersonatedGroup returns the group the user is currently impersonating, or "".
func (r *StoreRepo) ImpersonatedGroup(ctx context.Context) (string, error) {
	data, found, err := r.store.Get(ctx, impersonateKey)
	if err != nil {
		return "", fmt.Errorf("[StoreRepo ImpersonatedGroup] %w", err)
	}
	if !found {
		return "", nil
	}
	return string(data), nil
}

func (r *StoreRepo) SetImpersonatedGroup(ctx context.Context, group string) error {
	if group == "" {
		return r.ClearImpersonatedGroup(ctx)
	}
	if err := r.store.Set(ctx, impersonateKey, []byte(group), 0); err != nil {
		return fmt.Errorf("[StoreRepo SetImpersonatedGroup] %w", err)
	}
	return nil
}

func (r *StoreRepo) ClearImpersonatedGroup(ctx context.Context) error {
	if err := r.store.Remove(ctx, impersonateKey); err != nil {
		return fmt.Errorf("[StoreRepo ClearImpersonatedGroup] %w", err)
	}
	return nil
}
