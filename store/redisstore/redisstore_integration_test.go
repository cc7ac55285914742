package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jrsteele09/go-lms-client/store/redisstore"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *redisstore.RedisStore {
	t.Helper()
	url := os.Getenv("LMS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LMS_TEST_REDIS_URL not set")
	}
	client, err := redisstore.Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.New(client, "lmsclient-test-"+t.Name())
}

// TestRedisStore_RoundTrip tests get/set/remove against a live server
func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := connect(t)
	t.Cleanup(func() { _ = s.Clear(ctx) })

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, s.Remove(ctx, "k"))
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

// TestRedisStore_ClearOnlyTouchesNamespace tests that Clear leaves other namespaces alone
func TestRedisStore_ClearOnlyTouchesNamespace(t *testing.T) {
	ctx := context.Background()
	s := connect(t)
	client, err := redisstore.Connect(ctx, os.Getenv("LMS_TEST_REDIS_URL"))
	require.NoError(t, err)
	defer client.Close()
	other := redisstore.New(client, "lmsclient-other-"+t.Name())
	t.Cleanup(func() { _ = other.Clear(ctx) })

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, k, []byte(k), 0))
	}
	require.NoError(t, other.Set(ctx, "a", []byte("keep"), 0))

	require.NoError(t, s.Clear(ctx))

	_, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)
	v, found, err := other.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("keep"), v)
}
