package session_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-lms-client/session"
	"github.com/jrsteele09/go-lms-client/store/memstore"
	"github.com/stretchr/testify/require"
)

// TestStoreRepo_ImpersonationClearedWithSession tests that clearing the session drops impersonation
func TestStoreRepo_ImpersonationClearedWithSession(t *testing.T) {
	ctx := context.Background()
	repo := session.NewStoreRepo(memstore.New())

	require.NoError(t, repo.Save(ctx, &session.Session{AccessToken: "a", LoggedIn: true}))
	require.NoError(t, repo.SetImpersonatedGroup(ctx, "group-7"))

	group, err := repo.ImpersonatedGroup(ctx)
	require.NoError(t, err)
	require.Equal(t, "group-7", group)

	require.NoError(t, repo.Clear(ctx))

	s, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, s)
	group, err = repo.ImpersonatedGroup(ctx)
	require.NoError(t, err)
	require.Empty(t, group)
}

// TestStoreRepo_UnreadableSession tests that a corrupt session document reads as no session
func TestStoreRepo_UnreadableSession(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.Set(ctx, "current", []byte("{not json"), 0))

	s, err := session.NewStoreRepo(st).Load(ctx)

	require.NoError(t, err)
	require.Nil(t, s)
}
