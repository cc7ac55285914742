package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-lms-client/internal/config"
	"github.com/jrsteele09/go-lms-client/request"
	"github.com/stretchr/testify/require"
)

// TestLocaleFromEnv tests locale extraction from POSIX variables
func TestLocaleFromEnv(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "C")
	t.Setenv("LANG", "fr_FR.UTF-8")
	require.Equal(t, "fr", localeFromEnv())

	t.Setenv("LANG", "")
	require.Equal(t, "", localeFromEnv())
}

// TestAddFile tests file flag parsing, binary keys and repeated keys
func TestAddFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.txt")
	require.NoError(t, os.WriteFile(path, []byte("It was a dark and stormy night."), 0o600))

	input := map[string]any{}
	require.NoError(t, addFile(input, "doc="+path))
	require.NoError(t, addFile(input, "doc="+path))
	require.NoError(t, addFile(input, "scan_binary="+path))

	docs := input["doc"].([]any)
	require.Len(t, docs, 2)
	require.Equal(t, "essay.txt", docs[0].(*request.File).Name)
	scan := input["scan"].(*request.File)
	require.True(t, scan.Binary)
	require.Equal(t, "text/plain; charset=utf-8", scan.ContentType)

	require.Error(t, addFile(input, "nopath"))
	require.Error(t, addFile(input, "doc="+filepath.Join(dir, "missing")))
}

// TestOpenStores_File tests that the file backend keeps namespaces apart on disk
func TestOpenStores_File(t *testing.T) {
	ctx := context.Background()
	cfg := config.New()
	cfg.Store.Dir = t.TempDir()

	sessions, cache, closeFn, err := openStores(ctx, cfg)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, sessions.Set(ctx, "current", []byte("{}"), 0))
	require.NoError(t, cache.Clear(ctx))

	_, found, err := sessions.Get(ctx, "current")
	require.NoError(t, err)
	require.True(t, found)
}

// TestRootCommand_Call tests a full command run against a fake API
func TestRootCommand_Call(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/essays", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("mine"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"e1"}]`))
	}))
	defer srv.Close()

	t.Setenv("ENV", "TEST")
	t.Setenv("LMS_LOG_LEVEL", "error")
	t.Setenv("LMS_API_BASE_URL", srv.URL)
	t.Setenv("LMS_STORE_BACKEND", "memory")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"call", "GET", "/essays", "--data", `{"mine":true}`})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	require.EqualValues(t, 1, hits.Load())

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"call", "GET", "/essays", "--auth"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
	require.EqualValues(t, 1, hits.Load())
}
