package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-lms-client/store/filestore"
	"github.com/stretchr/testify/require"
)

// TestFileStore_SurvivesReopen tests that values persist across store instances
func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := filestore.New(dir, "session")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "current", []byte(`{"token":"abc"}`), 0))

	reopened, err := filestore.New(dir, "session")
	require.NoError(t, err)
	v, found, err := reopened.Get(ctx, "current")
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, `{"token":"abc"}`, string(v))
}

// TestFileStore_TTLAndClear tests expiry and wholesale clearing
func TestFileStore_TTLAndClear(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s, err := filestore.New(t.TempDir(), "cache", filestore.WithNowFunc(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	now = now.Add(2 * time.Second)
	_, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Clear(ctx))
	_, found, err = s.Get(ctx, "b")
	require.NoError(t, err)
	require.False(t, found)
}

// TestFileStore_CorruptFileIsEmpty tests that garbage on disk reads as an empty store
func TestFileStore_CorruptFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache.json"), []byte("{not json"), 0o600))

	s, err := filestore.New(dir, "cache")
	require.NoError(t, err)
	_, found, err := s.Get(ctx, "x")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set(ctx, "x", []byte("y"), 0))
	v, found, err := s.Get(ctx, "x")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("y"), v)
}
